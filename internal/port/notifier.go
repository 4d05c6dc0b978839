package port

import (
	"context"

	"github.com/rl1809/cartstore/internal/core/domain"
)

// Notifier delivers user-visible conditions. Delivery is best effort and
// never reports back to the caller.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// Pinger is implemented by adapters that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
