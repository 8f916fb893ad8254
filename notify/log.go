package notify

import (
	"context"
	"log/slog"

	"github.com/warp/cashback-engine/generic"
)

// Log writes every message to a logger instead of delivering it.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, text string) error {
	l.logger.InfoContext(ctx, "notification", "text", text)
	return nil
}

// Select returns a Telegram notifier when it is configured, or a Log
// notifier otherwise.
func Select(tg *Telegram, logger *slog.Logger) generic.Notifier {
	if tg != nil && tg.Configured() {
		return tg
	}
	return NewLog(logger)
}

var _ generic.Notifier = (*Log)(nil)
