package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/rigbuild/internal/build"
	"github.com/hyperengineering/rigbuild/internal/compat"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/share"
	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/hyperengineering/rigbuild/internal/validation"
)

// SessionMiddleware resolves the {sid} URL parameter to a live session and
// attaches it to the request context.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		sess, err := h.sessions.Get(r.Context(), sid)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, session.ErrInvalidSessionID) {
				slog.Error("load session failed", "component", "api", "session_id", sid, "error", err)
			}
			MapCatalogError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// summaryResponse is the build summary plus any conflicts among active parts.
type summaryResponse struct {
	build.Summary
	Conflicts []compat.Conflict `json:"conflicts"`
}

func mutated(action build.Action) {
	buildMutations.WithLabelValues(string(action)).Inc()
}

// resolvePart turns a part reference into a part. Catalog ids are looked
// up; inline parts are validated. When want is set the part must belong to
// that category.
func (h *Handler) resolvePart(w http.ResponseWriter, r *http.Request, ref types.PartRef, want types.Category) (types.Part, bool) {
	var part types.Part
	switch {
	case ref.PartID != "":
		p, err := h.catalog.GetPart(r.Context(), ref.PartID)
		if err != nil {
			MapCatalogError(w, r, err)
			return types.Part{}, false
		}
		part = *p
	case ref.Part != nil:
		if errs := validation.ValidatePart(*ref.Part, -1); len(errs) > 0 {
			WriteProblemWithErrors(w, r, "Part contains invalid fields", errs)
			return types.Part{}, false
		}
		part = *ref.Part
	default:
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "part", Message: "part or part_id is required"},
		})
		return types.Part{}, false
	}

	if want != "" && part.Category != want {
		WriteProblemWithErrors(w, r, "Part does not belong to this category", []validation.ValidationError{
			{Field: "category", Message: fmt.Sprintf("must be %s", want)},
		})
		return types.Part{}, false
	}
	return part, true
}

// GetSession handles GET /api/v1/sessions/{sid}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// DeleteSession handles DELETE /api/v1/sessions/{sid}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		slog.Error("delete session failed", "component", "api", "session_id", sess.ID, "error", err)
		MapCatalogError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/v1/sessions/{sid}/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())

	conflicts := h.checker.Conflicts(sess.Store.ActivePart)
	if conflicts == nil {
		conflicts = []compat.Conflict{}
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:   sess.Store.Summary(),
		Conflicts: conflicts,
	})
}

// AddCandidate handles POST /api/v1/sessions/{sid}/candidates/{cat}
func (h *Handler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	cat, ok := categoryParam(w, r, chi.URLParam(r, "cat"))
	if !ok {
		return
	}

	var ref types.PartRef
	if !decodeJSON(w, r, &ref, false) {
		return
	}
	part, ok := h.resolvePart(w, r, ref, cat)
	if !ok {
		return
	}

	sess.Store.AddCandidate(cat, part)
	mutated(build.ActionAddCandidate)
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// RemoveCandidate handles DELETE /api/v1/sessions/{sid}/candidates/{cat}/{id}
func (h *Handler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	cat, ok := categoryParam(w, r, chi.URLParam(r, "cat"))
	if !ok {
		return
	}

	sess.Store.RemoveCandidate(cat, chi.URLParam(r, "id"))
	mutated(build.ActionRemoveCandidate)
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// SetActive handles PUT /api/v1/sessions/{sid}/active/{cat}
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	cat, ok := categoryParam(w, r, chi.URLParam(r, "cat"))
	if !ok {
		return
	}

	var req types.SetActiveRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if errs := validation.ValidatePartRefID(req.ID); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	sess.Store.SetActive(cat, req.ID)
	mutated(build.ActionSetActive)
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// SetPart handles PUT /api/v1/sessions/{sid}/selected/{cat}
func (h *Handler) SetPart(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	cat, ok := categoryParam(w, r, chi.URLParam(r, "cat"))
	if !ok {
		return
	}

	var ref types.PartRef
	if !decodeJSON(w, r, &ref, false) {
		return
	}
	part, ok := h.resolvePart(w, r, ref, cat)
	if !ok {
		return
	}

	sess.Store.SetPart(cat, part)
	mutated(build.ActionSetPart)
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// ToggleCompare handles POST /api/v1/sessions/{sid}/compare
func (h *Handler) ToggleCompare(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())

	var ref types.PartRef
	if !decodeJSON(w, r, &ref, false) {
		return
	}
	part, ok := h.resolvePart(w, r, ref, "")
	if !ok {
		return
	}

	changed := sess.Store.ToggleCompare(part)
	mutated(build.ActionToggleCompare)
	writeJSON(w, http.StatusOK, types.CompareResponse{
		Compare: sess.Store.Compare(),
		Changed: changed,
	})
}

// SetTargets handles PUT /api/v1/sessions/{sid}/targets. A use case applies
// its setup preset first; explicit targets in the same request win.
func (h *Handler) SetTargets(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())

	var req types.TargetsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	var c validation.Collector
	for _, err := range validation.ValidateTargets(req, build.PresetNames()) {
		c.Add(&err)
	}
	if req.BudgetTarget == nil && req.PerformanceTarget == nil && req.UseCase == "" {
		c.Add(&validation.ValidationError{
			Field:   "targets",
			Message: "one of budget_target, performance_target or use_case is required",
		})
	}
	budget := req.BudgetTarget
	if budget == nil {
		budget = sess.Store.State().BudgetTarget
	}
	if req.UseCase != "" && budget == nil {
		c.Add(&validation.ValidationError{Field: "budget_target", Message: "is required with use_case"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	// Each request is one store mutation, so one save and one event.
	switch {
	case req.UseCase != "" && req.PerformanceTarget == nil:
		sess.Store.ApplySetup(*budget, req.UseCase)
		mutated(build.ActionApplySetup)
	case req.UseCase != "":
		// An explicit performance target wins over the preset.
		sess.Store.SetTargets(budget, req.PerformanceTarget)
		mutated(build.ActionSetTargets)
	default:
		sess.Store.SetTargets(req.BudgetTarget, req.PerformanceTarget)
		mutated(build.ActionSetTargets)
	}

	writeJSON(w, http.StatusOK, sess.Store.State())
}

// SaveBuild handles POST /api/v1/sessions/{sid}/builds
func (h *Handler) SaveBuild(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())

	var req types.SaveBuildRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if errs := validation.ValidateBuildName(req.Name); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	snap := sess.Store.SaveCurrent(req.Name)
	mutated(build.ActionSaveCurrent)

	slog.Info("build saved",
		"component", "api",
		"action", "build_saved",
		"session_id", sess.ID,
		"build_id", snap.ID,
	)

	writeJSON(w, http.StatusCreated, snap)
}

// BuildActionResponse is the session state after a load or delete of a
// saved build. Changed is false when no saved build had the id.
type BuildActionResponse struct {
	build.State
	Changed bool `json:"changed"`
}

// buildIDParam reads the {bid} URL parameter. Snapshot ids are upper-case
// ULIDs, so anything that parses as a ULID is canonicalised to match.
// Other values pass through unchanged and simply match no build.
func buildIDParam(r *http.Request) string {
	bid := chi.URLParam(r, "bid")
	if validation.ValidateULID("build_id", bid) == nil {
		return strings.ToUpper(bid)
	}
	return bid
}

// LoadBuild handles POST /api/v1/sessions/{sid}/builds/{bid}/load
// An unknown id leaves the session untouched.
func (h *Handler) LoadBuild(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	bid := buildIDParam(r)

	changed := sess.Store.LoadBuild(bid)
	if changed {
		mutated(build.ActionLoadBuild)
	}
	writeJSON(w, http.StatusOK, BuildActionResponse{State: sess.Store.State(), Changed: changed})
}

// DeleteBuild handles DELETE /api/v1/sessions/{sid}/builds/{bid}
// Deleting an absent build is a no-op.
func (h *Handler) DeleteBuild(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	bid := buildIDParam(r)

	changed := sess.Store.DeleteBuild(bid)
	if changed {
		mutated(build.ActionDeleteBuild)
		slog.Info("build deleted",
			"component", "api",
			"action", "build_deleted",
			"session_id", sess.ID,
			"build_id", bid,
		)
	}

	writeJSON(w, http.StatusOK, BuildActionResponse{State: sess.Store.State(), Changed: changed})
}

// Reset handles POST /api/v1/sessions/{sid}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	sess.Store.ResetCurrent()
	mutated(build.ActionResetCurrent)
	writeJSON(w, http.StatusOK, sess.Store.State())
}

// Compat handles GET /api/v1/sessions/{sid}/compat?category=X. It checks
// the session's candidates for X, or the catalog parts of X when the pool
// is empty.
func (h *Handler) Compat(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	q := r.URL.Query().Get("category")
	if q == "" {
		WriteProblem(w, r, http.StatusBadRequest, "category query parameter is required")
		return
	}
	cat, ok := categoryParam(w, r, q)
	if !ok {
		return
	}

	source := "candidates"
	parts := sess.Store.Candidates(cat)
	if len(parts) == 0 {
		source = "catalog"
		var err error
		parts, err = h.catalog.PartsByCategory(r.Context(), cat)
		if err != nil {
			slog.Error("list parts failed", "component", "api", "error", err)
			MapCatalogError(w, r, err)
			return
		}
	}

	results := make([]types.CompatResult, 0, len(parts))
	for _, p := range parts {
		res := h.checker.Check(sess.Store.ActivePart, p)
		recordCompat(string(cat), res.OK)
		results = append(results, types.CompatResult{PartID: p.ID, OK: res.OK, Reason: res.Reason})
	}

	writeJSON(w, http.StatusOK, types.CompatResponse{
		Category: cat,
		Source:   source,
		Results:  results,
	})
}

// Share handles GET /api/v1/sessions/{sid}/share
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	active := sess.Store.State().Active

	hash, err := share.Encode(active)
	if err != nil {
		slog.Error("encode share link failed", "component", "api", "session_id", sess.ID, "error", err)
		MapCatalogError(w, r, err)
		return
	}
	link, err := share.Link(h.shareBaseURL, active)
	if err != nil {
		slog.Error("build share link failed", "component", "api", "session_id", sess.ID, "error", err)
		MapCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ShareResponse{Hash: hash, URL: link})
}
