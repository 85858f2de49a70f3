// Package httpapi implements the spec §6 HTTP surface: a bearer-protected
// net/http.ServeMux using Go 1.22+ method-pattern routing, the same shape
// as the teacher's internal/gateway/server.go and internal/http/*.go.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/chanmirror/internal/events"
	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
)

// Core is the subset of orchestration state the HTTP surface reads and
// mutates. Kept as an interface so tests can substitute a fake.
type Core interface {
	Status() StatusView
	Upsert(ctx context.Context, req UpsertJobRequest) (*mirror.Job, error)
	DeleteAllForSource(ctx context.Context, source mirror.ChannelRef) error
	UploadSession(ctx context.Context, name, token string) error
	DeleteSession(name string) error
	DownloadSession(name string) ([]byte, error)
}

// Server wires Core plus the login stub and WS event fan-out behind a
// bearer-token middleware.
type Server struct {
	core   Core
	bearer string
	bus    *events.Bus
	logins *loginStub

	mux *http.ServeMux
}

func NewServer(core Core, bearer string, bus *events.Bus) *Server {
	s := &Server{
		core:   core,
		bearer: bearer,
		bus:    bus,
		logins: newLoginStub(),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.authenticate(s.mux).ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /status/stream", s.handleStatusStream)
	s.mux.HandleFunc("POST /add", s.handleAdd)
	s.mux.HandleFunc("POST /sessions/upload", s.handleSessionsUpload)
	s.mux.HandleFunc("POST /sessions/delete", s.handleSessionsDelete)
	s.mux.HandleFunc("GET /session/download", s.handleSessionDownload)
	s.mux.HandleFunc("POST /session/start", s.logins.handleStart)
	s.mux.HandleFunc("POST /session/code", s.logins.handleContinue)
	s.mux.HandleFunc("POST /session/password", s.logins.handleContinue)
	s.mux.HandleFunc("POST /session/resend", s.logins.handleContinue)
	s.mux.HandleFunc("POST /session/cancel", s.logins.handleCancel)
	s.mux.HandleFunc("GET /session/status", s.logins.handleStatus)
}

// authenticate enforces the bearer token when API_BEARER is configured
// (spec §6: "bearer-protected when API_BEARER set").
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.bearer == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" || got != s.bearer {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Status())
}

type UpsertJobRequest struct {
	Source          mirror.ChannelRef `json:"source"`
	Dest            mirror.ChannelRef `json:"dest"`
	PostMode        mirror.PostMode   `json:"post_mode"`
	PostSessionName string            `json:"post_session_name,omitempty"`
	BotToken        string            `json:"bot_token,omitempty"`
	PreferredPollSession string       `json:"preferred_poll_session,omitempty"`
	TextStrip       string            `json:"text_strip,omitempty"`
	CaptionAppend   string            `json:"caption_append,omitempty"`
	Delete          string            `json:"delete,omitempty"` // "all" removes every job for Source
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req UpsertJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.Delete == "all" {
		if err := s.core.DeleteAllForSource(r.Context(), req.Source); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}

	job, err := s.core.Upsert(r.Context(), req)
	if err != nil {
		writeError(w, statusForCoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type sessionsUploadRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (s *Server) handleSessionsUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10 MB cap per §6

	var req sessionsUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body or file exceeds 10MB")
		return
	}
	if err := s.core.UploadSession(r.Context(), req.Name, req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

type sessionsDeleteRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSessionsDelete(w http.ResponseWriter, r *http.Request) {
	var req sessionsDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.core.DeleteSession(req.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSessionDownload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name query parameter")
		return
	}
	data, err := s.core.DownloadSession(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+".zip\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func statusForCoreError(err error) int {
	switch {
	case errors.Is(err, mirror.ErrRoleConflict):
		return http.StatusConflict
	case errors.Is(err, mirror.ErrNoPollSession):
		return http.StatusServiceUnavailable
	case errors.Is(err, mirror.ErrUnknownSession):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// StatusView is the /status response shape.
type StatusView struct {
	Sessions []mirror.SessionSnapshot                  `json:"sessions"`
	Pollers  []*mirror.Poller                          `json:"pollers"`
	Jobs     []*mirror.Job                              `json:"jobs"`
	Dead     map[string]string                          `json:"dead_sessions"`
	Recent   map[string][]mirror.RecentPublish          `json:"recent"`
	AsOf     time.Time                                  `json:"as_of"`
}
