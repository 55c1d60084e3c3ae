package notify

import (
	"context"
	"log/slog"
)

// LogNotifier records notifications instead of sending them, for local runs
// without a mail service configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, req Request) error {
	n.logger.Info("notification (dry run)",
		"recipient", req.Recipient,
		"subject", req.Subject,
		"template", req.Template)
	return nil
}
