package commit

import (
	"os"
	"path/filepath"
)

func removeFile(dir, rel string) error {
	return os.Remove(filepath.Join(dir, filepath.FromSlash(rel)))
}
