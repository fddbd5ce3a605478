package funnel

// EvaluateCondition decides whether a step gated by cond is visible for the
// given responses. It is a total function: any condition shape produces a
// boolean, never a panic.
//
// Unanswered policy: an unanswered referenced step is not equal to any
// concrete value and not a member of any sequence, so equals/in evaluate
// false and not_equals/not_in evaluate true.
//
// An unknown operator fails open: the step stays visible.
func EvaluateCondition(cond *Condition, responses ResponseMap) bool {
	if cond == nil {
		return true
	}

	answer, answered := responses[cond.StepID]

	switch cond.Operator {
	case OpEquals:
		return answered && valuesEqual(answer, cond.Value)
	case OpNotEquals:
		return !answered || !valuesEqual(answer, cond.Value)
	case OpIn:
		return answered && sequenceContains(cond.Value, answer)
	case OpNotIn:
		return !answered || !sequenceContains(cond.Value, answer)
	default:
		return true
	}
}

// valuesEqual implements strict, coercion-free scalar equality. Values of
// differing kinds are never equal.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case int:
		bv, ok := toFloat(b)
		return ok && float64(av) == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// sequenceContains reports whether the condition's sequence value contains
// the answer. Conditions decoded from JSON carry []any; definitions built
// in code may carry []string.
func sequenceContains(seq, answer any) bool {
	switch values := seq.(type) {
	case []string:
		for _, v := range values {
			if valuesEqual(answer, v) {
				return true
			}
		}
	case []any:
		for _, v := range values {
			if valuesEqual(answer, v) {
				return true
			}
		}
	}
	return false
}
