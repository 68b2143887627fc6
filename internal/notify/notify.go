package notify

import (
	"context"
	"log/slog"
	"time"
)

// Kind names a lifecycle change that interested parties are told about
type Kind string

const (
	KindReopened         Kind = "assignment_reopened"
	KindWithdrawn        Kind = "assignment_withdrawn"
	KindFinalized        Kind = "assignment_finalized"
	KindReviewEditFailed Kind = "review_edit_failed"
)

// Notification is a single message handed to a Notifier
type Notification struct {
	Kind         Kind
	AssignmentID string
	EmployeeID   string
	By           string
	Reason       string
	At           time.Time
}

// Notifier delivers notifications. Delivery failures never undo the command
// that produced the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a structured logger
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through logger, or the default
// logger when nil
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	l.logger.InfoContext(ctx, "Notification",
		"kind", string(n.Kind),
		"assignment_id", n.AssignmentID,
		"employee_id", n.EmployeeID,
		"by", n.By,
		"reason", n.Reason,
		"at", n.At.Format(time.RFC3339),
	)
	return nil
}

// Nop discards every notification
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
