package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maternityDefinition mirrors the shape of the seeded discover-aurora funnel:
// a branching question with a conditional follow-up.
func maternityDefinition() *Definition {
	return &Definition{
		ID:   "discover-aurora",
		Name: "Discover Aurora",
		Steps: []Step{
			{ID: "welcome", Type: StepWelcome},
			{ID: "pregnancy-status", Type: StepMultipleChoice},
			{
				ID:   "trimester",
				Type: StepMultipleChoice,
				ShowIf: &Condition{
					StepID:   "pregnancy-status",
					Operator: OpEquals,
					Value:    "pregnant",
				},
			},
			{ID: "email-capture", Type: StepEmail},
			{ID: "result", Type: StepResult},
		},
	}
}

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

func TestVisibleStepsExcludesFailedConditions(t *testing.T) {
	def := maternityDefinition()

	visible := VisibleSteps(def, ResponseMap{"pregnancy-status": "trying"})

	require.Len(t, visible, 4)
	assert.Equal(t, []string{"welcome", "pregnancy-status", "email-capture", "result"}, stepIDs(visible))
}

func TestVisibleStepsIncludesMatchedConditions(t *testing.T) {
	def := maternityDefinition()

	visible := VisibleSteps(def, ResponseMap{"pregnancy-status": "pregnant"})

	require.Len(t, visible, 5)
	assert.Equal(t, []string{"welcome", "pregnancy-status", "trimester", "email-capture", "result"}, stepIDs(visible))
}

func TestVisibleStepsIsDeterministic(t *testing.T) {
	def := maternityDefinition()
	responses := ResponseMap{"pregnancy-status": "pregnant", "trimester": "second"}

	first := VisibleSteps(def, responses)
	second := VisibleSteps(def, responses)

	assert.Equal(t, first, second)
}

func TestVisibleStepsConditionalStepHiddenBeforeAnswer(t *testing.T) {
	def := maternityDefinition()

	visible := VisibleSteps(def, ResponseMap{})

	// equals on an unanswered step is false, so trimester starts hidden
	assert.Equal(t, []string{"welcome", "pregnancy-status", "email-capture", "result"}, stepIDs(visible))
}

func TestVisibleStepsNilDefinition(t *testing.T) {
	assert.Nil(t, VisibleSteps(nil, ResponseMap{}))
}
