package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"metalwatch/internal/alerting"
	"metalwatch/internal/service"
)

// Digest answers the configured digest questions once and prints the
// result. With Send it is also delivered through the enabled channel.
func (a *App) Digest(ctx context.Context, opts DigestOptions, w io.Writer) error {
	var notifier alerting.Notifier
	if opts.Send {
		notifier = a.newNotifier()
		if notifier == nil {
			return errors.New("no digest channel enabled; set alerting.telegram.enabled")
		}
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	asst, closeAssistant, err := a.newAssistant(ctx, store)
	if err != nil {
		return err
	}
	defer closeAssistant()

	svc := service.New(a.Config, nil, nil, nil, asst, notifier, nil, a.Logger)
	note, err := svc.Digest(ctx, a.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, alerting.Render(note))
	return err
}
