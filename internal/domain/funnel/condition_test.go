package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name      string
		cond      *Condition
		responses ResponseMap
		want      bool
	}{
		{
			name: "nil condition is always visible",
			cond: nil,
			want: true,
		},
		{
			name:      "equals matches",
			cond:      &Condition{StepID: "status", Operator: OpEquals, Value: "pregnant"},
			responses: ResponseMap{"status": "pregnant"},
			want:      true,
		},
		{
			name:      "equals mismatches",
			cond:      &Condition{StepID: "status", Operator: OpEquals, Value: "pregnant"},
			responses: ResponseMap{"status": "trying"},
			want:      false,
		},
		{
			name:      "equals on unanswered step is false",
			cond:      &Condition{StepID: "status", Operator: OpEquals, Value: "pregnant"},
			responses: ResponseMap{},
			want:      false,
		},
		{
			name:      "not_equals on unanswered step is true",
			cond:      &Condition{StepID: "status", Operator: OpNotEquals, Value: "supporting"},
			responses: ResponseMap{},
			want:      true,
		},
		{
			name:      "not_equals mismatching answer is true",
			cond:      &Condition{StepID: "status", Operator: OpNotEquals, Value: "supporting"},
			responses: ResponseMap{"status": "pregnant"},
			want:      true,
		},
		{
			name:      "not_equals matching answer is false",
			cond:      &Condition{StepID: "status", Operator: OpNotEquals, Value: "supporting"},
			responses: ResponseMap{"status": "supporting"},
			want:      false,
		},
		{
			name:      "in with member",
			cond:      &Condition{StepID: "status", Operator: OpIn, Value: []string{"trying", "planning"}},
			responses: ResponseMap{"status": "planning"},
			want:      true,
		},
		{
			name:      "in with non-member",
			cond:      &Condition{StepID: "status", Operator: OpIn, Value: []string{"trying", "planning"}},
			responses: ResponseMap{"status": "pregnant"},
			want:      false,
		},
		{
			name:      "in on unanswered step is false",
			cond:      &Condition{StepID: "status", Operator: OpIn, Value: []string{"trying"}},
			responses: ResponseMap{},
			want:      false,
		},
		{
			name:      "not_in on unanswered step is true",
			cond:      &Condition{StepID: "status", Operator: OpNotIn, Value: []string{"trying"}},
			responses: ResponseMap{},
			want:      true,
		},
		{
			name:      "not_in with member is false",
			cond:      &Condition{StepID: "status", Operator: OpNotIn, Value: []string{"trying"}},
			responses: ResponseMap{"status": "trying"},
			want:      false,
		},
		{
			name:      "in handles json-decoded sequences",
			cond:      &Condition{StepID: "status", Operator: OpIn, Value: []any{"trying", "planning"}},
			responses: ResponseMap{"status": "trying"},
			want:      true,
		},
		{
			name:      "unknown operator fails open",
			cond:      &Condition{StepID: "status", Operator: "matches", Value: "pregnant"},
			responses: ResponseMap{},
			want:      true,
		},
		{
			name:      "no string coercion across types",
			cond:      &Condition{StepID: "count", Operator: OpEquals, Value: "3"},
			responses: ResponseMap{"count": float64(3)},
			want:      false,
		},
		{
			name:      "numeric equality across int and float64",
			cond:      &Condition{StepID: "count", Operator: OpEquals, Value: float64(3)},
			responses: ResponseMap{"count": 3},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.cond, tt.responses))
		})
	}
}
