package funnel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTracker captures emitted signals for assertions.
type recordingTracker struct {
	calls []string
}

func (r *recordingTracker) TrackStepView(stepID string, stepIndex int, stepType string) {
	r.calls = append(r.calls, fmt.Sprintf("view:%s:%d:%s", stepID, stepIndex, stepType))
}

func (r *recordingTracker) TrackResponse(stepID string, value any) {
	r.calls = append(r.calls, fmt.Sprintf("response:%s:%v", stepID, value))
}

func (r *recordingTracker) TrackLead(email string) {
	r.calls = append(r.calls, "lead:"+email)
}

func (r *recordingTracker) TrackCompletion(responses map[string]any, email string) {
	r.calls = append(r.calls, fmt.Sprintf("complete:%d:%s", len(responses), email))
}

func TestMachineStartsAtFirstStepWithoutViewSignal(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)

	assert.Equal(t, 0, m.Position())
	step, ok := m.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "welcome", step.ID)
	// the first view is folded into funnel_start by the emitter, not the machine
	assert.Empty(t, tracker.calls)
}

func TestMachineAdvanceEmitsStepView(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)

	m.Advance()

	assert.Equal(t, 1, m.Position())
	assert.Equal(t, []string{"view:pregnancy-status:1:multiple-choice"}, tracker.calls)
}

func TestMachineCompletesAtLastVisibleStep(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)
	m.RecordResponse("pregnancy-status", "trying")

	// welcome -> pregnancy-status -> email-capture -> result
	m.Advance()
	m.Advance()
	m.Advance()
	require.False(t, m.IsComplete())

	m.Advance()
	require.True(t, m.IsComplete())

	completion := m.Completion()
	require.NotNil(t, completion)
	assert.Equal(t, "discover-aurora", completion.FunnelID)
	assert.Equal(t, "trying", completion.Responses["pregnancy-status"])
	assert.False(t, completion.CompletedAt.IsZero())
	assert.False(t, completion.CompletedAt.Before(completion.StartedAt))
}

func TestMachineAdvanceAfterCompleteIsNoOp(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(&Definition{ID: "f", Steps: []Step{{ID: "only", Type: StepWelcome}}}, tracker)

	m.Advance()
	require.True(t, m.IsComplete())
	snapshot := m.Completion()
	emitted := len(tracker.calls)

	m.Advance()
	m.Advance()

	assert.True(t, m.IsComplete())
	assert.Same(t, snapshot, m.Completion())
	assert.Len(t, tracker.calls, emitted)
}

func TestMachineRecordResponseOverwrites(t *testing.T) {
	m := NewMachine(maternityDefinition(), nil)

	m.RecordResponse("pregnancy-status", "pregnant")
	m.RecordResponse("pregnancy-status", "trying")

	value, ok := m.Response("pregnancy-status")
	require.True(t, ok)
	assert.Equal(t, "trying", value)
}

func TestMachineSkipTrackingSuppressesResponseSignal(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)

	m.RecordResponse("pregnancy-status", "trying", SkipTracking())

	assert.Empty(t, tracker.calls)
}

func TestMachineEmailStepCopiesAndEmitsLead(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)

	m.RecordResponse("email-capture", "kai@example.com")

	email, ok := m.Response(EmailKey)
	require.True(t, ok)
	assert.Equal(t, "kai@example.com", email)

	// exactly one response signal and one lead signal; the generic copy is untracked
	assert.Equal(t, []string{
		"response:email-capture:kai@example.com",
		"lead:kai@example.com",
	}, tracker.calls)
}

func TestMachineRepositionsWhenBranchChanges(t *testing.T) {
	m := NewMachine(maternityDefinition(), nil)
	m.RecordResponse("pregnancy-status", "pregnant")

	m.Advance()
	m.Advance()
	step, ok := m.CurrentStep()
	require.True(t, ok)
	require.Equal(t, "trimester", step.ID)

	// changing the earlier answer removes trimester from the projection;
	// the index stays in range and now points at the email step
	m.RecordResponse("pregnancy-status", "trying")

	assert.Len(t, m.VisibleSteps(), 4)
	assert.Equal(t, 2, m.Position())
	step, ok = m.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "email-capture", step.ID)
}

func TestMachineClampsWhenProjectionShrinksBelowPosition(t *testing.T) {
	m := NewMachine(maternityDefinition(), nil)
	m.RecordResponse("pregnancy-status", "pregnant")
	m.JumpTo(4)
	require.Equal(t, 4, m.Position())

	m.RecordResponse("pregnancy-status", "trying")

	visible := m.VisibleSteps()
	assert.Len(t, visible, 4)
	assert.GreaterOrEqual(t, m.Position(), 0)
	assert.Less(t, m.Position(), len(visible))
	assert.Equal(t, 3, m.Position())
}

func TestMachineJumpToIgnoresOutOfRange(t *testing.T) {
	tracker := &recordingTracker{}
	m := NewMachine(maternityDefinition(), tracker)

	m.JumpTo(-1)
	m.JumpTo(99)

	assert.Equal(t, 0, m.Position())
	assert.Empty(t, tracker.calls)
}

func TestMachineRetreatStopsAtFirstStep(t *testing.T) {
	m := NewMachine(maternityDefinition(), nil)

	m.Retreat()
	assert.Equal(t, 0, m.Position())

	m.Advance()
	m.Retreat()
	assert.Equal(t, 0, m.Position())
}

func TestMachineResponsesReturnsCopy(t *testing.T) {
	m := NewMachine(maternityDefinition(), nil)
	m.RecordResponse("pregnancy-status", "trying")

	snapshot := m.Responses()
	snapshot["pregnancy-status"] = "mutated"

	value, _ := m.Response("pregnancy-status")
	assert.Equal(t, "trying", value)
}
