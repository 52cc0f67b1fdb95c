package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/share"
	"github.com/hyperengineering/rigbuild/internal/validation"
)

const problemTypeBase = "https://rigbuild.dev/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// problemSlugs names the type URI suffix for every status the API emits.
var problemSlugs = map[int]string{
	http.StatusBadRequest:          "bad-request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusNotFound:            "not-found",
	http.StatusUnprocessableEntity: "validation-error",
	http.StatusTooManyRequests:     "rate-limit",
	http.StatusInternalServerError: "internal-error",
	http.StatusServiceUnavailable:  "service-unavailable",
}

func newProblem(r *http.Request, status int, detail string) Problem {
	slug, ok := problemSlugs[status]
	if !ok {
		slug = "unknown"
	}
	return Problem{
		Type:     problemTypeBase + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemBody(w, status, newProblem(r, status, detail))
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: newProblem(r, http.StatusUnprocessableEntity, detail),
		Errors:  errs,
	})
}

// errorProblems is checked in order; the first matching target wins.
var errorProblems = []struct {
	target error
	status int
	detail string
}{
	{catalog.ErrNotFound, http.StatusNotFound, "Part not found"},
	{catalog.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{session.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{session.ErrInvalidSessionID, http.StatusBadRequest, "Invalid session ID"},
	{share.ErrInvalidHash, http.StatusBadRequest, "Invalid share link"},
}

// MapCatalogError converts catalog, session and share errors to Problem
// Details responses. Unrecognised errors become a bare 500 so storage
// details never reach the client.
func MapCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	for _, ep := range errorProblems {
		if errors.Is(err, ep.target) {
			WriteProblem(w, r, ep.status, ep.detail)
			return
		}
	}
	WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
}
