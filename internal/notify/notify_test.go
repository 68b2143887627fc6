package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestLogNotifierWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Notify(context.Background(), Notification{
		Kind:         KindReopened,
		AssignmentID: "asg-1",
		EmployeeID:   "emp-1",
		By:           "hr-1",
		Reason:       "manager asked for changes",
		At:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Failed to decode log record: %v", err)
	}
	if record["kind"] != "assignment_reopened" {
		t.Errorf("Expected kind assignment_reopened, got %v", record["kind"])
	}
	if record["assignment_id"] != "asg-1" {
		t.Errorf("Expected assignment_id asg-1, got %v", record["assignment_id"])
	}
	if record["at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("Unexpected timestamp %v", record["at"])
	}
}

func TestNewLogNotifierDefaultsLogger(t *testing.T) {
	if NewLogNotifier(nil).logger == nil {
		t.Error("Expected default logger")
	}
	if err := (Nop{}).Notify(context.Background(), Notification{}); err != nil {
		t.Errorf("Nop returned error: %v", err)
	}
}
