package funnel

// VisibleSteps projects the ordered list of steps that exist for the given
// response set. Steps keep their authored order; a step is included iff it
// has no condition or its condition evaluates true.
//
// The projection is deterministic and side-effect-free. Callers recompute
// it fresh on every response change rather than caching across changes;
// cost is linear in step count, which is tens of steps at most.
func VisibleSteps(def *Definition, responses ResponseMap) []Step {
	if def == nil {
		return nil
	}

	visible := make([]Step, 0, len(def.Steps))
	for _, step := range def.Steps {
		if EvaluateCondition(step.ShowIf, responses) {
			visible = append(visible, step)
		}
	}
	return visible
}
