package main

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/engine"
	"github.com/kimhsiao/memostream/internal/identity"
)

// apiServer exposes the core's operation surface to the local presentation
// layer. Only validation failures are surfaced; everything else degrades to
// "accepted, last good state preserved".
type apiServer struct {
	engine   *engine.Engine
	provider *identity.TokenProvider
	hub      *wsHub
}

func newAPIServer(eng *engine.Engine, provider *identity.TokenProvider, hub *wsHub) *apiServer {
	return &apiServer{engine: eng, provider: provider, hub: hub}
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/records", s.handleView)
	mux.HandleFunc("POST /api/records", s.handleSubmit)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)
	mux.Handle("GET /ws", s.hub)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "memostream",
	})
}

func (s *apiServer) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loading": s.engine.Loading(),
		"records": s.engine.View(),
	})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := s.engine.Submit(r.Context(), body.Content); err != nil {
		status := http.StatusInternalServerError
		if apperrors.Is(err, apperrors.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// Failures leave the last good view in place and are not surfaced.
	go s.engine.Refresh(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *apiServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := s.provider.SetToken(body.Token); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_in"})
}

func (s *apiServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.engine.SignOut()
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
