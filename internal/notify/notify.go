package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/bashhack/gitwatch/internal/git"
	"github.com/bashhack/gitwatch/internal/logger"
)

// Notifier delivers a short message to the user.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, title, body string) error

func (f Func) Notify(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// DefaultExpire is how long desktop notifications stay on screen.
const DefaultExpire = 5 * time.Second

// Desktop sends notifications through notify-send.
type Desktop struct {
	executor git.CommandExecutor
	appName  string
	expire   time.Duration
}

// NewDesktop returns a Desktop notifier running notify-send through executor.
func NewDesktop(executor git.CommandExecutor) *Desktop {
	return &Desktop{executor: executor, appName: "gitwatch", expire: DefaultExpire}
}

// WithExpire returns a copy of d whose notifications stay up for expire.
func (d *Desktop) WithExpire(expire time.Duration) *Desktop {
	cp := *d
	cp.expire = expire
	return &cp
}

// Notify implements Notifier
func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	args := []string{
		"-t", strconv.FormatInt(d.expire.Milliseconds(), 10),
		"-a", d.appName,
		title, body,
	}
	return d.executor.ExecuteWithContext(ctx, "notify-send", args...)
}

// Logged wraps n so that failures are logged as warnings and never returned.
func Logged(n Notifier, log logger.Logger) Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return Func(func(ctx context.Context, title, body string) error {
		if err := n.Notify(ctx, title, body); err != nil {
			log.With("title", title).Warning("Failed to send notification: %v", err)
		}
		return nil
	})
}
