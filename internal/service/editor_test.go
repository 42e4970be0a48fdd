package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditor(t *testing.T) {
	tests := map[string]struct {
		env       map[string]string
		installed []string
		want      string
	}{
		"EditorVariable":         {map[string]string{"EDITOR": "hx", "VISUAL": "code"}, []string{"hx", "code", "nano"}, "hx"},
		"EditorNotInstalled":     {map[string]string{"EDITOR": "hx", "VISUAL": "code"}, []string{"code", "nano"}, "code"},
		"FirstInstalledFallback": {nil, []string{"vi", "emacs"}, "vi"},
		"NothingInstalled":       {nil, nil, "nano"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			getenv := func(key string) string { return tc.env[key] }
			lookPath := func(file string) (string, error) {
				for _, p := range tc.installed {
					if p == file {
						return "/usr/bin/" + file, nil
					}
				}
				return "", errors.New("not found")
			}
			assert.Equal(t, tc.want, Editor(getenv, lookPath))
		})
	}
}
