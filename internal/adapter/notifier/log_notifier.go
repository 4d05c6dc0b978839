package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/cartstore/internal/core/domain"
)

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notice")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice domain.Notice) {
	n.logger.Info(notice.Message,
		zap.String("notice_id", notice.ID.String()),
		zap.String("kind", string(notice.Kind)),
		zap.String("operation", string(notice.Operation)),
		zap.Int("item_id", notice.ItemID),
	)
}
