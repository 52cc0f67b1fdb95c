package build

import "github.com/hyperengineering/rigbuild/internal/types"

// Action names a store mutation.
type Action string

const (
	ActionAddCandidate         Action = "addCandidate"
	ActionRemoveCandidate      Action = "removeCandidate"
	ActionSetActive            Action = "setActive"
	ActionSetPart              Action = "setPart"
	ActionToggleCompare        Action = "toggleCompare"
	ActionSetBudgetTarget      Action = "setBudgetTarget"
	ActionSetPerformanceTarget Action = "setPerformanceTarget"
	ActionSetTargets           Action = "setTargets"
	ActionApplySetup           Action = "applySetup"
	ActionSaveCurrent          Action = "saveCurrent"
	ActionLoadBuild            Action = "loadBuild"
	ActionDeleteBuild          Action = "deleteBuild"
	ActionResetCurrent         Action = "resetCurrent"
)

// Event describes a mutation that changed the store.
type Event struct {
	Action   Action         `json:"action"`
	Category types.Category `json:"category,omitempty"`
	ID       string         `json:"id,omitempty"`
}

// Subscribe registers fn to be called after every state change. Callbacks
// run synchronously on the mutating goroutine, outside the state lock, so
// they may read the store. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(ev Event) {
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
