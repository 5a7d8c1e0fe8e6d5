package display

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/errors"
)

// Handler processes updates for one consumer.
type Handler interface {
	HandleUpdate(ctx context.Context, u Update)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, u Update)

func (f HandlerFunc) HandleUpdate(ctx context.Context, u Update) { f(ctx, u) }

// Consume feeds sub into h until ctx is cancelled or the subscription is
// closed.
func Consume(ctx context.Context, sub *Subscription, h Handler) error {
	for {
		u, err := sub.Next(ctx)
		switch {
		case err == nil:
			h.HandleUpdate(ctx, u)
		case errors.HasCode(err, ErrClosed), ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}
