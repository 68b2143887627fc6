package main

import (
	"testing"

	"github.com/pwannenmacher/review-flow/internal/assignment"
)

func TestCompareSnapshots(t *testing.T) {
	base := assignment.State{
		Version:       4,
		WorkflowState: assignment.StateInReview,
		Goals:         []assignment.Goal{{GoalID: "g-1"}},
	}

	if drift := compareSnapshots(base, base); len(drift) != 0 {
		t.Fatalf("Identical snapshots should not drift, got %v", drift)
	}

	other := base
	other.Version = 5
	other.Goals = nil
	drift := compareSnapshots(base, other)
	if len(drift) != 2 || drift[0] != "version" || drift[1] != "goals" {
		t.Errorf("Expected version and goals to drift, got %v", drift)
	}
}
