// Package build holds the in-progress PC build for one session: candidate
// pools per category, the active pick in each pool, targets, the compare
// tray and saved build snapshots.
//
// Store operations never fail. References to unknown ids are ignored, and
// the last write wins.
package build

import (
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/oklog/ulid/v2"
)

const (
	// MaxCompare is the compare tray capacity.
	MaxCompare = 3
	// DefaultBuildName names snapshots saved without a usable name.
	DefaultBuildName = "Untitled build"
)

// Store is the single owner of a session's build state.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	now func() time.Time
}

// New returns a store with the empty initial state.
func New() *Store {
	return NewFromState(EmptyState())
}

// NewFromState returns a store seeded with s.
func NewFromState(s State) *Store {
	return &Store{
		state: normalize(s),
		subs:  make(map[int]func(Event)),
		now:   time.Now,
	}
}

// Restore rebuilds a store from a persisted session blob. A blob that cannot
// be decoded yields an empty store and the decode error.
func Restore(data []byte) (*Store, error) {
	s, err := DecodeState(data)
	return NewFromState(s), err
}

// mutate applies fn under the write lock and publishes ev if fn reports a change.
func (s *Store) mutate(ev Event, fn func(st *State) bool) bool {
	s.mu.Lock()
	changed := fn(&s.state)
	s.mu.Unlock()

	if changed {
		s.publish(ev)
	}
	return changed
}

// AddCandidate appends part to the category pool. Duplicate ids are kept.
func (s *Store) AddCandidate(cat types.Category, part types.Part) {
	s.mutate(Event{Action: ActionAddCandidate, Category: cat, ID: part.ID}, func(st *State) bool {
		st.Candidates[cat] = append(st.Candidates[cat], part)
		return true
	})
}

// RemoveCandidate drops every pool entry with id. When id was active, the
// new first candidate becomes active, or the slot is cleared.
func (s *Store) RemoveCandidate(cat types.Category, id string) {
	s.mutate(Event{Action: ActionRemoveCandidate, Category: cat, ID: id}, func(st *State) bool {
		pool := st.Candidates[cat]
		kept := make([]types.Part, 0, len(pool))
		for _, p := range pool {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(pool) {
			return false
		}
		st.Candidates[cat] = kept

		if st.Active[cat] == id {
			if len(kept) > 0 {
				st.Active[cat] = kept[0].ID
			} else {
				delete(st.Active, cat)
			}
		}
		return true
	})
}

// SetActive marks id as the active candidate of cat. The id is not checked
// against the pool; an empty id clears the slot.
func (s *Store) SetActive(cat types.Category, id string) {
	s.mutate(Event{Action: ActionSetActive, Category: cat, ID: id}, func(st *State) bool {
		if id == "" {
			delete(st.Active, cat)
			return true
		}
		st.Active[cat] = id
		return true
	})
}

// SetPart records a single pick for cat without using a candidate pool.
func (s *Store) SetPart(cat types.Category, part types.Part) {
	s.mutate(Event{Action: ActionSetPart, Category: cat, ID: part.ID}, func(st *State) bool {
		st.Selected[cat] = part
		return true
	})
}

// ToggleCompare removes part from the compare tray if present, otherwise
// appends it. Adding to a full tray is ignored. Reports whether the tray changed.
func (s *Store) ToggleCompare(part types.Part) bool {
	return s.mutate(Event{Action: ActionToggleCompare, Category: part.Category, ID: part.ID}, func(st *State) bool {
		for i, p := range st.Compare {
			if p.ID == part.ID {
				st.Compare = append(st.Compare[:i:i], st.Compare[i+1:]...)
				return true
			}
		}
		if len(st.Compare) >= MaxCompare {
			return false
		}
		st.Compare = append(st.Compare, part)
		return true
	})
}

// SetBudgetTarget overwrites the budget target.
func (s *Store) SetBudgetTarget(v float64) {
	s.mutate(Event{Action: ActionSetBudgetTarget}, func(st *State) bool {
		st.BudgetTarget = &v
		return true
	})
}

// SetPerformanceTarget overwrites the performance target.
func (s *Store) SetPerformanceTarget(v float64) {
	s.mutate(Event{Action: ActionSetPerformanceTarget}, func(st *State) bool {
		st.PerformanceTarget = &v
		return true
	})
}

// SetTargets overwrites whichever targets are non-nil as a single change.
// Passing two nils is a no-op.
func (s *Store) SetTargets(budget, performance *float64) {
	s.mutate(Event{Action: ActionSetTargets}, func(st *State) bool {
		if budget == nil && performance == nil {
			return false
		}
		if budget != nil {
			st.BudgetTarget = cloneFloat(budget)
		}
		if performance != nil {
			st.PerformanceTarget = cloneFloat(performance)
		}
		return true
	})
}

// SaveCurrent freezes the current selection and targets into a new snapshot.
// Blank names become DefaultBuildName.
func (s *Store) SaveCurrent(name string) Snapshot {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultBuildName
	}

	var snap Snapshot
	s.mutate(Event{Action: ActionSaveCurrent}, func(st *State) bool {
		snap = Snapshot{
			ID:   ulid.Make().String(),
			Name: name,
			Date: s.now().UTC().Format(time.RFC3339),
			Data: SnapshotData{
				Selected:          selectionOf(st),
				BudgetTarget:      cloneFloat(st.BudgetTarget),
				PerformanceTarget: cloneFloat(st.PerformanceTarget),
			},
		}
		st.Builds = append(st.Builds, snap)
		return true
	})
	return cloneSnapshot(snap)
}

// LoadBuild replaces the live selection and targets with the snapshot's and
// clears the compare tray, candidate pools and active picks. Reports whether
// the snapshot exists.
func (s *Store) LoadBuild(id string) bool {
	return s.mutate(Event{Action: ActionLoadBuild, ID: id}, func(st *State) bool {
		for _, b := range st.Builds {
			if b.ID != id {
				continue
			}
			st.Selected = cloneSelected(b.Data.Selected)
			st.BudgetTarget = cloneFloat(b.Data.BudgetTarget)
			st.PerformanceTarget = cloneFloat(b.Data.PerformanceTarget)
			st.Compare = []types.Part{}
			st.Candidates = emptyCandidates()
			st.Active = map[types.Category]string{}
			return true
		}
		return false
	})
}

// DeleteBuild removes the snapshot with id. Reports whether it existed.
func (s *Store) DeleteBuild(id string) bool {
	return s.mutate(Event{Action: ActionDeleteBuild, ID: id}, func(st *State) bool {
		for i, b := range st.Builds {
			if b.ID == id {
				st.Builds = append(st.Builds[:i:i], st.Builds[i+1:]...)
				return true
			}
		}
		return false
	})
}

// ResetCurrent returns the live build to the empty shape. Saved builds are kept.
func (s *Store) ResetCurrent() {
	s.mutate(Event{Action: ActionResetCurrent}, func(st *State) bool {
		builds := st.Builds
		*st = EmptyState()
		st.Builds = builds
		return true
	})
}

// --- reads ---

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Encode serializes the current state as a persisted session blob.
func (s *Store) Encode() ([]byte, error) {
	return EncodeState(s.State())
}

// ActivePart resolves the active id of cat against its candidate pool.
// Its signature matches compat.Lookup.
func (s *Store) ActivePart(cat types.Category) (types.Part, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activePartOf(&s.state, cat)
}

// Candidates returns a copy of the candidate pool for cat.
func (s *Store) Candidates(cat types.Category) []types.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Part{}, s.state.Candidates[cat]...)
}

// Selection returns the effective pick per category: the active candidate
// when one resolves, otherwise the legacy selected part.
func (s *Store) Selection() map[types.Category]types.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectionOf(&s.state)
}

// Compare returns a copy of the compare tray.
func (s *Store) Compare() []types.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Part{}, s.state.Compare...)
}

// Builds returns copies of the saved snapshots in save order.
func (s *Store) Builds() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, len(s.state.Builds))
	for i, b := range s.state.Builds {
		out[i] = cloneSnapshot(b)
	}
	return out
}

func activePartOf(st *State, cat types.Category) (types.Part, bool) {
	id, ok := st.Active[cat]
	if !ok || id == "" {
		return types.Part{}, false
	}
	for _, p := range st.Candidates[cat] {
		if p.ID == id {
			return p, true
		}
	}
	return types.Part{}, false
}

func selectionOf(st *State) map[types.Category]types.Part {
	out := make(map[types.Category]types.Part, len(types.Categories))
	for _, c := range types.Categories {
		if p, ok := activePartOf(st, c); ok {
			out[c] = p
			continue
		}
		if p, ok := st.Selected[c]; ok {
			out[c] = p
		}
	}
	return out
}
