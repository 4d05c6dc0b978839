package notifier

import (
	"context"

	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/port"
)

// Fanout delivers each notice to every wrapped notifier in order.
type Fanout []port.Notifier

func (f Fanout) Notify(ctx context.Context, notice domain.Notice) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, notice)
		}
	}
}
