package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Category identifies one of the component slots in a build.
type Category string

const (
	CategoryCPU         Category = "cpu"
	CategoryGPU         Category = "gpu"
	CategoryMobo        Category = "mobo"
	CategoryMemory      Category = "memory"
	CategoryStorage     Category = "storage"
	CategoryCooler      Category = "cooler"
	CategoryCase        Category = "case"
	CategoryPSU         Category = "psu"
	CategoryAccessories Category = "accessories"
)

// Categories lists every category in wizard display order.
var Categories = []Category{
	CategoryCPU,
	CategoryGPU,
	CategoryMobo,
	CategoryMemory,
	CategoryStorage,
	CategoryCooler,
	CategoryCase,
	CategoryPSU,
	CategoryAccessories,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryNames returns the category values as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// Part is a single catalog item. Parts are immutable once loaded.
type Part struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Brand     string         `json:"brand"`
	Model     string         `json:"model"`
	PriceUSD  float64        `json:"price_usd"`
	ImagePath string         `json:"image_path"`
	Spec      map[string]any `json:"spec,omitempty"`
}

// SpecString returns a scalar spec attribute rendered as a string.
// Missing, null and empty values report false.
func (p Part) SpecString(key string) (string, bool) {
	v, ok := p.Spec[key]
	if !ok || v == nil {
		return "", false
	}
	s := scalarString(v)
	return s, s != ""
}

// SpecStrings returns a list-valued spec attribute. A scalar value is
// treated as a one-element list.
func (p Part) SpecStrings(key string) ([]string, bool) {
	v, ok := p.Spec[key]
	if !ok || v == nil {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, len(vv) > 0
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	default:
		s := scalarString(v)
		if s == "" {
			return nil, false
		}
		return []string{s}, true
	}
}

// SpecNumber returns a numeric spec attribute.
func (p Part) SpecNumber(key string) (float64, bool) {
	switch v := p.Spec[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func scalarString(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int:
		return strconv.Itoa(vv)
	case bool:
		return strconv.FormatBool(vv)
	case json.Number:
		return vv.String()
	default:
		return fmt.Sprint(vv)
	}
}

// Step is one page of the builder wizard.
type Step struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SummaryStepID is the terminal wizard step that follows the last category.
const SummaryStepID = "summary"

// Steps lists the wizard pages in order.
var Steps = []Step{
	{ID: string(CategoryCPU), Label: "CPU"},
	{ID: string(CategoryGPU), Label: "GPU"},
	{ID: string(CategoryMobo), Label: "Motherboard"},
	{ID: string(CategoryMemory), Label: "Memory"},
	{ID: string(CategoryStorage), Label: "Storage"},
	{ID: string(CategoryCooler), Label: "Cooler"},
	{ID: string(CategoryCase), Label: "Case"},
	{ID: string(CategoryPSU), Label: "PSU"},
	{ID: string(CategoryAccessories), Label: "Accessories"},
	{ID: SummaryStepID, Label: "Summary"},
}

// NextStep returns the step after current, clamped at the summary step.
// Unknown ids start from the first step.
func NextStep(current string) string {
	idx := stepIndex(current)
	if idx+1 >= len(Steps) {
		return Steps[len(Steps)-1].ID
	}
	return Steps[idx+1].ID
}

// PrevStep returns the step before current, clamped at the first step.
func PrevStep(current string) string {
	idx := stepIndex(current)
	if idx <= 0 {
		return Steps[0].ID
	}
	return Steps[idx-1].ID
}

func stepIndex(id string) int {
	for i, s := range Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// --- API payloads ---

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	PartCount int64  `json:"part_count"`
	Sessions  int    `json:"sessions"`
}

// StepsResponse lists the wizard steps in order.
type StepsResponse struct {
	Steps []Step `json:"steps"`
}

// PartsResponse wraps a catalog listing.
type PartsResponse struct {
	Parts []Part `json:"parts"`
	Total int    `json:"total"`
}

// UpsertPartsRequest seeds or refreshes catalog rows.
type UpsertPartsRequest struct {
	Parts []Part `json:"parts"`
}

// UpsertResult represents the outcome of a catalog upsert.
type UpsertResult struct {
	Upserted int      `json:"upserted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// PartRef names the part a session operation applies to: either a full
// part or the id of a catalog part.
type PartRef struct {
	Part   *Part  `json:"part,omitempty"`
	PartID string `json:"part_id,omitempty"`
}

// SetActiveRequest selects the active candidate of a category.
type SetActiveRequest struct {
	ID string `json:"id"`
}

// CompareResponse is the compare tray after a toggle.
type CompareResponse struct {
	Compare []Part `json:"compare"`
	Changed bool   `json:"changed"`
}

// TargetsRequest updates the budget and performance targets. UseCase applies
// a setup preset; explicit values win over the preset.
type TargetsRequest struct {
	BudgetTarget      *float64 `json:"budget_target,omitempty"`
	PerformanceTarget *float64 `json:"performance_target,omitempty"`
	UseCase           string   `json:"use_case,omitempty"`
}

// SaveBuildRequest names a build snapshot.
type SaveBuildRequest struct {
	Name string `json:"name"`
}

// CompatResult is the outcome of checking one part against the active build.
type CompatResult struct {
	PartID string `json:"part_id"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// CompatResponse lists compatibility outcomes for a category. Source is
// "candidates" when the session pool was checked, otherwise "catalog".
type CompatResponse struct {
	Category Category       `json:"category"`
	Source   string         `json:"source"`
	Results  []CompatResult `json:"results"`
}

// ShareResponse carries an encoded build link.
type ShareResponse struct {
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// SharedBuildResponse is a decoded share link.
type SharedBuildResponse struct {
	Active map[Category]string `json:"active"`
}
