package errorhandler

import (
	"context"

	"git.home.luguber.info/inful/tutorguard/internal/retry"
)

// Retry runs op under policy with the handler's executor. When the sequence
// ends in failure the final error is also routed through Handle, so it is
// logged and listeners see it.
func Retry[T any](ctx context.Context, h *Handler, policy retry.Policy, op func(context.Context) (T, error)) retry.Result[T] {
	if h == nil {
		h = Global()
	}
	res := retry.Do(ctx, h.executor, policy, op)
	if !res.Success {
		h.Handle(res.Error)
	}
	return res
}
