// Package compat decides whether a candidate part fits the parts already
// active in a build.
//
// Rules are data: each names the candidate category it applies to, the
// active part it is compared against, the two spec attributes and the
// predicate. Missing reference parts or attributes never fail a rule.
package compat

import (
	"errors"
	"fmt"

	"github.com/hyperengineering/rigbuild/internal/types"
)

// Lookup resolves the active part of a category.
type Lookup func(types.Category) (types.Part, bool)

// Match is the predicate a rule applies to the two attribute values.
type Match int

const (
	// MatchEqual requires the candidate scalar to equal the reference scalar.
	MatchEqual Match = iota
	// MatchMember requires the reference scalar to appear in the candidate list.
	MatchMember
)

func (m Match) String() string {
	switch m {
	case MatchEqual:
		return "equal"
	case MatchMember:
		return "member"
	default:
		return fmt.Sprintf("Match(%d)", int(m))
	}
}

// Rule is one pairwise compatibility constraint.
type Rule struct {
	Name          string
	Candidate     types.Category
	Reference     types.Category
	CandidateAttr string
	ReferenceAttr string
	Match         Match
	// Reason is a format string that receives the reference attribute value.
	Reason string
}

// Result is the outcome of a check. Reason is set only when OK is false.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Conflict reports an active part that violates a rule.
type Conflict struct {
	Rule        string         `json:"rule"`
	Category    types.Category `json:"category"`
	PartID      string         `json:"part_id"`
	Reference   types.Category `json:"reference"`
	ReferenceID string         `json:"reference_id"`
	Reason      string         `json:"reason"`
}

// DefaultRules are the socket and memory rules of a desktop build.
var DefaultRules = []Rule{
	{
		Name:          "mobo-cpu-socket",
		Candidate:     types.CategoryMobo,
		Reference:     types.CategoryCPU,
		CandidateAttr: "socket",
		ReferenceAttr: "socket",
		Match:         MatchEqual,
		Reason:        "Needs %s",
	},
	{
		Name:          "memory-mobo-type",
		Candidate:     types.CategoryMemory,
		Reference:     types.CategoryMobo,
		CandidateAttr: "type",
		ReferenceAttr: "memory_type",
		Match:         MatchEqual,
		Reason:        "Mobo is %s",
	},
	{
		Name:          "cooler-cpu-socket",
		Candidate:     types.CategoryCooler,
		Reference:     types.CategoryCPU,
		CandidateAttr: "socket",
		ReferenceAttr: "socket",
		Match:         MatchMember,
		Reason:        "Lacks %s",
	},
}

// ErrInvalidRule indicates a rule table entry is malformed.
var ErrInvalidRule = errors.New("invalid compatibility rule")

// Checker evaluates a rule table.
type Checker struct {
	rules []Rule
}

// NewChecker validates rules and returns a Checker over them.
func NewChecker(rules []Rule) (*Checker, error) {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("%w: rule %d has no name", ErrInvalidRule, i)
		case seen[r.Name]:
			return nil, fmt.Errorf("%w: duplicate rule %q", ErrInvalidRule, r.Name)
		case !r.Candidate.Valid() || !r.Reference.Valid():
			return nil, fmt.Errorf("%w: rule %q has unknown category", ErrInvalidRule, r.Name)
		case r.CandidateAttr == "" || r.ReferenceAttr == "":
			return nil, fmt.Errorf("%w: rule %q has empty attribute", ErrInvalidRule, r.Name)
		case r.Match != MatchEqual && r.Match != MatchMember:
			return nil, fmt.Errorf("%w: rule %q has unknown match %s", ErrInvalidRule, r.Name, r.Match)
		}
		seen[r.Name] = true
	}
	return &Checker{rules: append([]Rule(nil), rules...)}, nil
}

var defaultChecker = mustChecker(DefaultRules)

func mustChecker(rules []Rule) *Checker {
	c, err := NewChecker(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the Checker over DefaultRules.
func Default() *Checker { return defaultChecker }

// Check evaluates candidate with the default rules.
func Check(active Lookup, candidate types.Part) Result {
	return defaultChecker.Check(active, candidate)
}

// Rules returns a copy of the checker's rule table.
func (c *Checker) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Check evaluates the rules whose candidate category matches the part.
// The first failing rule decides the result.
func (c *Checker) Check(active Lookup, candidate types.Part) Result {
	for _, r := range c.rules {
		if r.Candidate != candidate.Category {
			continue
		}
		if res := r.evaluate(active, candidate); !res.OK {
			return res
		}
	}
	return Result{OK: true}
}

// Conflicts checks every active part against the rules and reports the
// violations in rule order.
func (c *Checker) Conflicts(active Lookup) []Conflict {
	var out []Conflict
	for _, r := range c.rules {
		cand, ok := active(r.Candidate)
		if !ok {
			continue
		}
		res := r.evaluate(active, cand)
		if res.OK {
			continue
		}
		ref, _ := active(r.Reference)
		out = append(out, Conflict{
			Rule:        r.Name,
			Category:    r.Candidate,
			PartID:      cand.ID,
			Reference:   r.Reference,
			ReferenceID: ref.ID,
			Reason:      res.Reason,
		})
	}
	return out
}

// Conflicts scans the active build with the default rules.
func Conflicts(active Lookup) []Conflict {
	return defaultChecker.Conflicts(active)
}

func (r Rule) evaluate(active Lookup, candidate types.Part) Result {
	if active == nil {
		return Result{OK: true}
	}
	ref, ok := active(r.Reference)
	if !ok {
		return Result{OK: true}
	}
	want, ok := ref.SpecString(r.ReferenceAttr)
	if !ok {
		return Result{OK: true}
	}

	switch r.Match {
	case MatchEqual:
		got, ok := candidate.SpecString(r.CandidateAttr)
		if !ok || got == want {
			return Result{OK: true}
		}
	case MatchMember:
		got, ok := candidate.SpecStrings(r.CandidateAttr)
		if !ok || contains(got, want) {
			return Result{OK: true}
		}
	}
	return Result{OK: false, Reason: fmt.Sprintf(r.Reason, want)}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
