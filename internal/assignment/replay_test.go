package assignment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwannenmacher/review-flow/internal/identity"
)

// roundTrip encodes and decodes events the way the repository does
func roundTrip(t *testing.T, events []Event) []Event {
	t.Helper()
	out := make([]Event, len(events))
	for i, e := range events {
		raw, err := EncodeEventData(e.Data)
		require.NoError(t, err)
		data, err := DecodeEventData(e.Type, raw)
		require.NoError(t, err)
		e.Data = data
		out[i] = e
	}
	return out
}

func TestReplayReproducesState(t *testing.T) {
	a := inReview(t)
	require.NoError(t, a.AddGoal(sampleGoal("g-1", 25), Manager, managerID))
	require.NoError(t, a.AddInReviewNote("n-1", "note", "", managerID))
	require.NoError(t, a.EditAnswerAsManagerDuringReview("e-1", "s", "q", Employee, "v", managerID))
	require.NoError(t, a.LinkFeedback("q", "fb-1", managerID))
	require.NoError(t, a.ReopenWorkflow(StateBothInProgress, "redo self assessment", hrID, identity.RoleHR))

	replayed, err := Replay(a.ID(), roundTrip(t, a.PendingEvents()))
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot(), replayed.Snapshot())
	assert.Empty(t, replayed.PendingEvents())
	assert.Equal(t, a.Version(), replayed.PersistedVersion())
}

func TestReplayRejectsGaps(t *testing.T) {
	a := bothSubmitted(t)
	events := a.PendingEvents()

	_, err := Replay(a.ID(), append(events[:1:1], events[2:]...))
	assert.Error(t, err)

	_, err = Replay(a.ID(), events[1:])
	assert.Error(t, err, "history must start with creation")

	_, err = Replay(a.ID(), nil)
	assert.Error(t, err)
}

func TestSnapshotRoundTripThroughJSON(t *testing.T) {
	a := confirmed(t)
	raw, err := json.Marshal(a.Snapshot())
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal(raw, &st))
	restored := FromSnapshot(st)

	assert.Equal(t, a.Version(), restored.Version())
	assert.Equal(t, StateEmployeeReviewConfirmed, restored.WorkflowState())
	require.NoError(t, restored.FinalizeAsManager(managerID, restored.Version(), ""))
	assert.True(t, restored.IsLocked())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	a := inReview(t)
	require.NoError(t, a.AddInReviewNote("n-1", "original", "", managerID))

	st := a.Snapshot()
	st.Notes[0].Content = "tampered"
	st.PredecessorLinks["q"] = "x"

	again := a.Snapshot()
	assert.Equal(t, "original", again.Notes[0].Content)
	assert.NotContains(t, again.PredecessorLinks, "q")
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := DecodeEventData("Nope", []byte(`{}`))
	assert.Error(t, err)
}

func TestMarkCommitted(t *testing.T) {
	a := initialized(t)
	require.Len(t, a.PendingEvents(), 2)
	a.MarkCommitted()
	assert.Empty(t, a.PendingEvents())
	assert.Equal(t, a.Version(), a.PersistedVersion())
}
