package build

import (
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/rigbuild/internal/types"
)

// State is the serializable shape of a build session. It doubles as the
// persisted session blob, so field names follow the stored JSON schema.
type State struct {
	Selected          map[types.Category]types.Part   `json:"selected"`
	Active            map[types.Category]string       `json:"active"`
	Candidates        map[types.Category][]types.Part `json:"candidates"`
	BudgetTarget      *float64                        `json:"budgetTarget"`
	PerformanceTarget *float64                        `json:"performanceTarget"`
	Compare           []types.Part                    `json:"compare"`
	Builds            []Snapshot                      `json:"builds"`
}

// Snapshot is a named, timestamped copy of a finalized build.
// Snapshots are never mutated after creation.
type Snapshot struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Date string       `json:"date"`
	Data SnapshotData `json:"data"`
}

// SnapshotData holds the selection and targets captured by a snapshot.
type SnapshotData struct {
	Selected          map[types.Category]types.Part `json:"selected"`
	BudgetTarget      *float64                      `json:"budgetTarget"`
	PerformanceTarget *float64                      `json:"performanceTarget"`
}

// EmptyState returns the initial shape: every category has an empty
// candidate pool and nothing is selected.
func EmptyState() State {
	return State{
		Selected:   map[types.Category]types.Part{},
		Active:     map[types.Category]string{},
		Candidates: emptyCandidates(),
		Compare:    []types.Part{},
		Builds:     []Snapshot{},
	}
}

func emptyCandidates() map[types.Category][]types.Part {
	pools := make(map[types.Category][]types.Part, len(types.Categories))
	for _, c := range types.Categories {
		pools[c] = []types.Part{}
	}
	return pools
}

// DecodeState parses a persisted session blob. Missing fields default to
// their empty shapes and unknown categories are dropped. On a parse error
// the empty state is returned together with the error.
func DecodeState(data []byte) (State, error) {
	var raw State
	if err := json.Unmarshal(data, &raw); err != nil {
		return EmptyState(), fmt.Errorf("decode session state: %w", err)
	}
	return normalize(raw), nil
}

// EncodeState serializes a state to the persisted session schema.
func EncodeState(s State) ([]byte, error) {
	data, err := json.Marshal(normalize(s))
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

// normalize fills nil collections and drops keys outside the category set.
func normalize(s State) State {
	out := EmptyState()
	for c, p := range s.Selected {
		if c.Valid() {
			out.Selected[c] = p
		}
	}
	for c, id := range s.Active {
		if c.Valid() && id != "" {
			out.Active[c] = id
		}
	}
	for c, pool := range s.Candidates {
		if c.Valid() && len(pool) > 0 {
			out.Candidates[c] = append([]types.Part(nil), pool...)
		}
	}
	out.BudgetTarget = cloneFloat(s.BudgetTarget)
	out.PerformanceTarget = cloneFloat(s.PerformanceTarget)
	if len(s.Compare) > 0 {
		out.Compare = append(out.Compare, s.Compare...)
	}
	for _, b := range s.Builds {
		out.Builds = append(out.Builds, cloneSnapshot(b))
	}
	return out
}

// clone returns a deep copy of the state's collections. Parts themselves are
// immutable and shared.
func (s State) clone() State {
	out := State{
		Selected:          cloneSelected(s.Selected),
		Active:            make(map[types.Category]string, len(s.Active)),
		Candidates:        make(map[types.Category][]types.Part, len(s.Candidates)),
		BudgetTarget:      cloneFloat(s.BudgetTarget),
		PerformanceTarget: cloneFloat(s.PerformanceTarget),
		Compare:           append([]types.Part{}, s.Compare...),
		Builds:            make([]Snapshot, 0, len(s.Builds)),
	}
	for c, id := range s.Active {
		out.Active[c] = id
	}
	for c, pool := range s.Candidates {
		out.Candidates[c] = append([]types.Part{}, pool...)
	}
	for _, b := range s.Builds {
		out.Builds = append(out.Builds, cloneSnapshot(b))
	}
	return out
}

func cloneSnapshot(b Snapshot) Snapshot {
	b.Data.Selected = cloneSelected(b.Data.Selected)
	b.Data.BudgetTarget = cloneFloat(b.Data.BudgetTarget)
	b.Data.PerformanceTarget = cloneFloat(b.Data.PerformanceTarget)
	return b
}

func cloneSelected(m map[types.Category]types.Part) map[types.Category]types.Part {
	out := make(map[types.Category]types.Part, len(m))
	for c, p := range m {
		out[c] = p
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
