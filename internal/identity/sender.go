package identity

import (
	"context"
	"log/slog"
)

// Sender delivers a verification code to a phone number. Delivery is
// asynchronous: Send enqueues and returns immediately, and delivery failures
// surface as a re-requested code, never as a blocked request.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender is the development Sender: it logs the code instead of
// dispatching an SMS.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, phone, code string) error {
	s.logger.InfoContext(ctx, "verification code issued",
		"phone", redactPhone(phone),
		"code", code,
	)
	return nil
}

// redactPhone keeps only the last two digits for log correlation.
func redactPhone(phone string) string {
	if len(phone) <= 2 {
		return "**"
	}
	return "****" + phone[len(phone)-2:]
}
