package compile

import (
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/profile"
)

// Rule compiles a full profile core into an engine rule under the given
// engine rule id. It returns ok=false when the profile compiles to an empty
// action; such profiles must not occupy a rule slot.
func Rule(core profile.Core, id int, opts Options) (engine.Rule, bool) {
	act := Action(core)
	if act.IsEmpty() {
		return engine.Rule{}, false
	}
	return engine.Rule{
		ID:        id,
		Priority:  core.EffectivePriority(),
		Condition: Condition(core, opts),
		Action:    act,
	}, true
}
