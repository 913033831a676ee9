package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Ask answers one question on w, optionally streaming the text as it is
// produced.
func (a *App) Ask(ctx context.Context, opts AskOptions, w io.Writer) error {
	question := strings.TrimSpace(opts.Question)
	if question == "" {
		return errors.New("question must not be empty")
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

	if !opts.Stream {
		reply, err := asst.Ask(ctx, question)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, reply.Answer)
		if opts.Evidence && reply.Evidence != "" {
			fmt.Fprintf(w, "\nEvidence:\n%s\n", reply.Evidence)
		}
		return nil
	}

	reply, err := asst.AskStream(ctx, question)
	if err != nil {
		return err
	}
	for delta := range reply.Deltas {
		fmt.Fprint(w, delta.Text)
	}
	fmt.Fprintln(w)
	if opts.Evidence && reply.Evidence != "" {
		fmt.Fprintf(w, "\nEvidence:\n%s\n", reply.Evidence)
	}
	return ctx.Err()
}
