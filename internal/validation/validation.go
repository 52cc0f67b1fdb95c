package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/rigbuild/internal/types"
)

const (
	// MaxPartIDLength is the maximum length of a part ID.
	MaxPartIDLength = 128
	// MaxNameLength bounds brand, model and build names.
	MaxNameLength = 200
	// MaxImagePathLength bounds the image path.
	MaxImagePathLength = 500
	// MaxUpsertBatch is the largest number of parts accepted in one upsert.
	MaxUpsertBatch = 1000
	// MaxBudgetUSD is the largest budget target accepted.
	MaxBudgetUSD = 100000
	// MaxPerformanceTarget is the largest FPS target accepted.
	MaxPerformanceTarget = 1000
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{Field: field, Message: "must not contain null bytes"}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{Field: field, Message: "must be a valid ULID (26 characters)"}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range strings.ToUpper(value) {
		if !strings.ContainsRune(crockfordBase32, r) {
			return &ValidationError{Field: field, Message: "must be a valid ULID (invalid character)"}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange returns an error if the value is outside [min, max] or not
// a finite number.
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if math.IsNaN(value) || value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.0f and %.0f", min, max),
		}
	}
	return nil
}

// ValidateCategory returns an error if value is not a known category.
func ValidateCategory(field, value string) *ValidationError {
	return ValidateEnum(field, value, types.CategoryNames())
}

// validateText applies the common checks for a free-text field.
func validateText(c *Collector, field, value string, max int, required bool) {
	if required {
		if err := ValidateRequired(field, value); err != nil {
			c.Add(err)
			return
		}
	}
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

// ValidatePart validates a catalog part. index is the part's position in
// a batch and prefixes field names; pass -1 for a single part.
func ValidatePart(p types.Part, index int) []ValidationError {
	prefix := ""
	if index >= 0 {
		prefix = fmt.Sprintf("parts[%d].", index)
	}

	var c Collector
	validateText(&c, prefix+"id", p.ID, MaxPartIDLength, true)
	c.Add(ValidateCategory(prefix+"category", string(p.Category)))
	validateText(&c, prefix+"brand", p.Brand, MaxNameLength, true)
	validateText(&c, prefix+"model", p.Model, MaxNameLength, true)
	validateText(&c, prefix+"image_path", p.ImagePath, MaxImagePathLength, false)
	if math.IsNaN(p.PriceUSD) || math.IsInf(p.PriceUSD, 0) || p.PriceUSD < 0 {
		c.Add(&ValidationError{Field: prefix + "price_usd", Message: "must be a non-negative number"})
	}
	return c.Errors()
}

// ValidateUpsertRequest validates the request-level fields of a catalog
// upsert. Individual parts are checked with ValidatePart so a batch can be
// partially accepted.
func ValidateUpsertRequest(req types.UpsertPartsRequest) []ValidationError {
	var c Collector
	switch {
	case len(req.Parts) == 0:
		c.Add(&ValidationError{Field: "parts", Message: "must contain at least one part"})
	case len(req.Parts) > MaxUpsertBatch:
		c.Add(&ValidationError{
			Field:   "parts",
			Message: fmt.Sprintf("exceeds maximum batch size of %d", MaxUpsertBatch),
		})
	}
	return c.Errors()
}

// ValidateTargets validates a targets update.
func ValidateTargets(req types.TargetsRequest, presets []string) []ValidationError {
	var c Collector
	if req.BudgetTarget != nil {
		c.Add(ValidateRange("budget_target", *req.BudgetTarget, 0, MaxBudgetUSD))
	}
	if req.PerformanceTarget != nil {
		c.Add(ValidateRange("performance_target", *req.PerformanceTarget, 0, MaxPerformanceTarget))
	}
	if req.UseCase != "" {
		c.Add(ValidateEnum("use_case", req.UseCase, presets))
	}
	return c.Errors()
}

// ValidatePartRefID validates a part id used as a reference to a pool
// entry. Empty is allowed and clears the reference.
func ValidatePartRefID(id string) []ValidationError {
	var c Collector
	validateText(&c, "id", id, MaxPartIDLength, false)
	return c.Errors()
}

// ValidateBuildName validates a snapshot name. Blank names are allowed.
func ValidateBuildName(name string) []ValidationError {
	var c Collector
	validateText(&c, "name", name, MaxNameLength, false)
	return c.Errors()
}
