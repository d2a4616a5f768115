package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// claimAction is a lifecycle operation taken by the acting user on a job.
type claimAction func(ctx context.Context, jobID, username string) (domain.Claim, error)

// handleAction runs act for the acting user and writes the resulting claim.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, act claimAction) {
	username, err := actingUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	claim, err := act(r.Context(), chi.URLParam(r, "jobId"), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, claim)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.deps.Claims.Claim)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.deps.Claims.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.deps.Claims.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.deps.Claims.Cancel)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.deps.Claims.Complete)
}

// handleActiveClaim returns the claim currently holding the job.
func (s *Server) handleActiveClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.deps.Claims.ActiveForJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, claim)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Claims.History(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, history)
}

// handleGetClaim looks a claim up by job, username and claim time.
func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	key, err := claimKeyParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	claim, err := s.deps.Claims.Get(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, claim)
}

func (s *Server) handleActiveClaims(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Claims.ActiveClaims(r.Context(),
		parseIntParam(r, "page", 1),
		parseIntParam(r, "size", 0),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// handleUserClaims lists a user's claims, optionally filtered by a
// comma-separated status list.
func (s *Server) handleUserClaims(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	page, err := s.deps.Claims.ClaimsByUser(r.Context(),
		chi.URLParam(r, "username"),
		statuses,
		parseIntParam(r, "page", 1),
		parseIntParam(r, "size", 0),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) handleMyClaims(w http.ResponseWriter, r *http.Request) {
	username, err := actingUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	mine, err := s.deps.Claims.MyClaims(r.Context(), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, mine)
}

// claimKeyParam reads the compound claim key from the route. claimedAt is
// RFC 3339 with optional fractional seconds.
func claimKeyParam(r *http.Request) (domain.ClaimKey, error) {
	raw := chi.URLParam(r, "claimedAt")
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return domain.ClaimKey{}, fmt.Errorf("claimedAt %q: %w", raw, domain.ErrBadParameter)
	}
	return domain.ClaimKey{
		JobID:     chi.URLParam(r, "jobId"),
		Username:  chi.URLParam(r, "username"),
		ClaimedAt: at,
	}, nil
}

func parseStatuses(raw string) ([]domain.Status, error) {
	if raw == "" {
		return nil, nil
	}
	var out []domain.Status
	for _, part := range strings.Split(raw, ",") {
		st, err := domain.ParseStatus(part)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrBadParameter)
		}
		out = append(out, st)
	}
	return out, nil
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
