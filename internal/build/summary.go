package build

import (
	"sort"

	"github.com/hyperengineering/rigbuild/internal/types"
)

// SetupPresets maps setup-dialog use cases to their FPS performance target.
var SetupPresets = map[string]float64{
	"1080p60":      60,
	"1440p144":     144,
	"4k60":         60,
	"productivity": 30,
}

// PresetNames returns the known use cases in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(SetupPresets))
	for name := range SetupPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplySetup sets the budget target and the performance target of the named
// use case. An unknown use case only sets the budget and reports false.
// Both targets change in one mutation.
func (s *Store) ApplySetup(budget float64, useCase string) bool {
	fps, ok := SetupPresets[useCase]
	s.mutate(Event{Action: ActionApplySetup, ID: useCase}, func(st *State) bool {
		st.BudgetTarget = &budget
		if ok {
			st.PerformanceTarget = &fps
		}
		return true
	})
	return ok
}

// LineItem is one category row of the build summary.
type LineItem struct {
	Category types.Category `json:"category"`
	Part     *types.Part    `json:"part,omitempty"`
	PriceUSD float64        `json:"price_usd"`
	// Pool is "selected", "candidates" or "missing".
	Pool string `json:"pool"`
}

// Summary is the running total of the effective selection.
type Summary struct {
	Lines             []LineItem `json:"lines"`
	TotalUSD          float64    `json:"total_usd"`
	BudgetTarget      *float64   `json:"budget_target"`
	PerformanceTarget *float64   `json:"performance_target"`
	BudgetUsedPct     *float64   `json:"budget_used_pct,omitempty"`
	OverBudget        bool       `json:"over_budget"`
}

// Summary prices the effective selection in category order.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel := selectionOf(&s.state)
	sum := Summary{
		Lines:             make([]LineItem, 0, len(types.Categories)),
		BudgetTarget:      cloneFloat(s.state.BudgetTarget),
		PerformanceTarget: cloneFloat(s.state.PerformanceTarget),
	}

	for _, c := range types.Categories {
		line := LineItem{Category: c, Pool: "missing"}
		if p, ok := sel[c]; ok {
			part := p
			line.Part = &part
			line.PriceUSD = p.PriceUSD
			line.Pool = "selected"
			sum.TotalUSD += p.PriceUSD
		} else if len(s.state.Candidates[c]) > 0 {
			line.Pool = "candidates"
		}
		sum.Lines = append(sum.Lines, line)
	}

	if b := s.state.BudgetTarget; b != nil && *b > 0 {
		pct := sum.TotalUSD / *b * 100
		sum.BudgetUsedPct = &pct
		sum.OverBudget = sum.TotalUSD > *b
	}
	return sum
}
