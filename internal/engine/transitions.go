package engine

import "gadgetry/internal/model"

// transitions captures what changed between an item's old and new state.
// The three flags are independent; a single edit can move an item and close
// its loan at the same time.
type transitions struct {
	Moved       bool
	EnteredLent bool
	ExitedLent  bool
}

// Any reports whether any transition was detected.
func (t transitions) Any() bool {
	return t.Moved || t.EnteredLent || t.ExitedLent
}

// detectTransitions diffs old against new. This is the single place the
// status/open-loan rule is decided; every public entry point funnels
// through it or applies the same writes directly (lend/return).
func detectTransitions(oldItem, newItem *model.Item) transitions {
	return transitions{
		Moved:       !sameLocation(oldItem.LocationID, newItem.LocationID),
		EnteredLent: oldItem.Status != model.StatusLent && newItem.Status == model.StatusLent,
		ExitedLent:  oldItem.Status == model.StatusLent && newItem.Status != model.StatusLent,
	}
}

func sameLocation(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
