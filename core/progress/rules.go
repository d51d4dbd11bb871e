package progress

import "github.com/trezcool/tayari/core/catalog"

// predecessor returns the module with the greatest Order below m.Order.
func predecessor(modules []catalog.Module, m catalog.Module) (catalog.Module, bool) {
	var (
		pred  catalog.Module
		found bool
	)
	for _, other := range modules {
		if other.ID == m.ID || other.Order >= m.Order {
			continue
		}
		if !found || other.Order > pred.Order {
			pred, found = other, true
		}
	}
	return pred, found
}

// successor returns the module with the smallest Order above m.Order.
func successor(modules []catalog.Module, m catalog.Module) (catalog.Module, bool) {
	var (
		succ  catalog.Module
		found bool
	)
	for _, other := range modules {
		if other.ID == m.ID || other.Order <= m.Order {
			continue
		}
		if !found || other.Order < succ.Order {
			succ, found = other, true
		}
	}
	return succ, found
}

// CanAccessModule applies sequential unlock gating.
// The first module by Order is always accessible, any other one needs its immediate predecessor completed.
// Computed from the given progress on every call; nothing about locking is stored.
func CanAccessModule(modules []catalog.Module, m catalog.Module, p CourseProgress) bool {
	pred, ok := predecessor(modules, m)
	if !ok {
		return true
	}
	return p.HasCompleted(pred.ID)
}

// StatusOf places a module in the Locked -> Unlocked -> Completed machine.
func StatusOf(modules []catalog.Module, m catalog.Module, p CourseProgress) ModuleStatus {
	switch {
	case p.HasCompleted(m.ID):
		return StatusCompleted
	case CanAccessModule(modules, m, p):
		return StatusUnlocked
	default:
		return StatusLocked
	}
}

// RequiredModuleIDs lists the modules that gate course completion:
// the mandatory ones, or all of them when the course flags none.
func RequiredModuleIDs(modules []catalog.Module) []string {
	ids := catalog.MandatoryModuleIDs(modules)
	if len(ids) > 0 {
		return ids
	}
	ids = make([]string, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	return ids
}

func findModule(modules []catalog.Module, moduleID string) (catalog.Module, bool) {
	for _, m := range modules {
		if m.ID == moduleID {
			return m, true
		}
	}
	return catalog.Module{}, false
}

func moduleStates(modules []catalog.Module, p CourseProgress) []ModuleState {
	states := make([]ModuleState, 0, len(modules))
	for _, m := range modules {
		st := StatusOf(modules, m, p)
		states = append(states, ModuleState{Module: m, Status: st, Locked: st == StatusLocked})
	}
	return states
}
