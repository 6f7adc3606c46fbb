package channel

import (
	"context"
	"log/slog"
)

// Confirmer asks the user a yes/no question. It blocks only the caller.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Notifier shows an error message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// PresentErrors forwards every error notice of the session to n until ctx
// is done. Notifier failures are logged and do not stop the loop.
func PresentErrors(ctx context.Context, sess *Session, n Notifier) error {
	notices, err := sess.Errors.Subscribe(ctx, nil)
	if err != nil {
		return err
	}
	for notice := range notices {
		if err := n.Notify(ctx, notice.Message); err != nil {
			slog.Warn("failed to present error",
				"command", notice.Command,
				"error", err,
			)
		}
	}
	return ctx.Err()
}
