package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/share"
	"github.com/hyperengineering/rigbuild/internal/validation"
)

func TestWriteProblem_Format(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/parts/nope", nil)
	rec := httptest.NewRecorder()

	WriteProblem(rec, req, http.StatusNotFound, "Part not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}

	p := decodeProblem(t, rec)
	if p.Type != "https://rigbuild.dev/errors/not-found" {
		t.Errorf("type = %q", p.Type)
	}
	if p.Title != "Not Found" || p.Status != 404 || p.Detail != "Part not found" {
		t.Errorf("problem = %+v", p.Problem)
	}
	if p.Instance != "/api/v1/parts/nope" {
		t.Errorf("instance = %q, want request path", p.Instance)
	}
}

func TestWriteProblem_TypesByStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantType string
	}{
		{http.StatusBadRequest, "https://rigbuild.dev/errors/bad-request"},
		{http.StatusUnauthorized, "https://rigbuild.dev/errors/unauthorized"},
		{http.StatusUnprocessableEntity, "https://rigbuild.dev/errors/validation-error"},
		{http.StatusTooManyRequests, "https://rigbuild.dev/errors/rate-limit"},
		{http.StatusServiceUnavailable, "https://rigbuild.dev/errors/service-unavailable"},
		{http.StatusConflict, "https://rigbuild.dev/errors/unknown"},
		{http.StatusTeapot, "https://rigbuild.dev/errors/unknown"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			WriteProblem(rec, req, tt.status, "detail")

			if p := decodeProblem(t, rec); p.Type != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type, tt.wantType)
			}
		})
	}
}

func TestWriteProblemWithErrors_422(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parts", nil)
	rec := httptest.NewRecorder()
	errs := []validation.ValidationError{
		{Field: "parts[0].price_usd", Message: "must be a non-negative number"},
	}

	WriteProblemWithErrors(rec, req, "Request contains invalid fields", errs)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	p := decodeProblem(t, rec)
	if len(p.Errors) != 1 || p.Errors[0].Field != "parts[0].price_usd" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestMapCatalogError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"part not found", fmt.Errorf("get: %w", catalog.ErrNotFound), http.StatusNotFound, "Part not found"},
		{"stored session not found", catalog.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
		{"session not found", session.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
		{"invalid session", session.ErrInvalidSessionID, http.StatusBadRequest, "Invalid session ID"},
		{"invalid share", share.ErrInvalidHash, http.StatusBadRequest, "Invalid share link"},
		{"unknown", errors.New("disk I/O error at /var/lib/secret"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			MapCatalogError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if p := decodeProblem(t, rec); p.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", p.Detail, tt.wantDetail)
			}
		})
	}
}
