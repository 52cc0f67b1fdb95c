package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/compat"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/share"
	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/hyperengineering/rigbuild/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	catalog      catalog.Catalog
	sessions     *session.Manager
	checker      *compat.Checker
	apiKey       string
	version      string
	shareBaseURL string
}

// NewHandler creates a new Handler over the catalog and session manager.
func NewHandler(c catalog.Catalog, sessions *session.Manager, apiKey, version, shareBaseURL string) *Handler {
	return &Handler{
		catalog:      c,
		sessions:     sessions,
		checker:      compat.Default(),
		apiKey:       apiKey,
		version:      version,
		shareBaseURL: shareBaseURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// decodeJSON decodes the request body into v. An empty body is allowed
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
	return false
}

// categoryParam reads a category from the URL path or query and writes a
// 400 problem when it is unknown.
func categoryParam(w http.ResponseWriter, r *http.Request, value string) (types.Category, bool) {
	cat := types.Category(value)
	if !cat.Valid() {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", value))
		return "", false
	}
	return cat, true
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.CountParts(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Catalog unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		PartCount: count,
		Sessions:  h.sessions.Count(),
	})
}

// Steps handles GET /api/v1/steps
func (h *Handler) Steps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.StepsResponse{Steps: types.Steps})
}

// ListParts handles GET /api/v1/parts?category=X
func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	var (
		parts []types.Part
		err   error
	)
	if q := r.URL.Query().Get("category"); q != "" {
		cat, ok := categoryParam(w, r, q)
		if !ok {
			return
		}
		parts, err = h.catalog.PartsByCategory(r.Context(), cat)
	} else {
		parts, err = h.catalog.ListParts(r.Context())
	}
	if err != nil {
		slog.Error("list parts failed", "component", "api", "error", err)
		MapCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.PartsResponse{Parts: parts, Total: len(parts)})
}

// GetPart handles GET /api/v1/parts/{id}
func (h *Handler) GetPart(w http.ResponseWriter, r *http.Request) {
	part, err := h.catalog.GetPart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

// UpsertParts handles POST /api/v1/parts. Invalid parts are rejected
// individually; the rest are upserted in one transaction.
func (h *Handler) UpsertParts(w http.ResponseWriter, r *http.Request) {
	var req types.UpsertPartsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	// Request-level problems reject the whole batch
	if errs := validation.ValidateUpsertRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	var valid []types.Part
	allErrors := []string{}
	for i, p := range req.Parts {
		if errs := validation.ValidatePart(p, i); len(errs) > 0 {
			for _, err := range errs {
				allErrors = append(allErrors, fmt.Sprintf("%s: %s", err.Field, err.Message))
			}
			continue
		}
		valid = append(valid, p)
	}

	var upserted int
	if len(valid) > 0 {
		n, err := h.catalog.UpsertParts(r.Context(), valid)
		if err != nil {
			slog.Error("upsert failed", "component", "api", "error", err, "parts", len(valid))
			MapCatalogError(w, r, err)
			return
		}
		upserted = n
	}

	slog.Info("catalog upserted",
		"component", "api",
		"action", "parts_upserted",
		"upserted", upserted,
		"rejected", len(req.Parts)-len(valid),
	)

	writeJSON(w, http.StatusOK, types.UpsertResult{
		Upserted: upserted,
		Rejected: len(req.Parts) - len(valid),
		Errors:   allErrors,
	})
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		slog.Error("create session failed", "component", "api", "error", err)
		MapCatalogError(w, r, err)
		return
	}
	sessionsCreated.Inc()
	writeJSON(w, http.StatusCreated, types.SessionResponse{SessionID: sess.ID})
}

// DecodeShare handles GET /api/v1/share/{hash}
func (h *Handler) DecodeShare(w http.ResponseWriter, r *http.Request) {
	active, err := share.Decode(chi.URLParam(r, "hash"))
	if err != nil {
		MapCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SharedBuildResponse{Active: active})
}
