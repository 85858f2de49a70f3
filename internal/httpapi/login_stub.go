package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// loginStub is the minimal interactive-login surface required to keep the
// spec §6 endpoint table complete. The login state machine itself is out
// of scope (spec.md §1 Non-goals); this issues a login_id and reports
// "unimplemented" for every continuation call, while still exercising the
// pending-login map's own mutex boundary named in spec §5.
type loginStub struct {
	mu     sync.Mutex
	logins map[string]bool
}

func newLoginStub() *loginStub {
	return &loginStub{logins: make(map[string]bool)}
}

func (l *loginStub) handleStart(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	l.mu.Lock()
	l.logins[id] = true
	l.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"login_id": id, "status": "unimplemented"})
}

func (l *loginStub) handleContinue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoginID string `json:"login_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	l.mu.Lock()
	_, exists := l.logins[req.LoginID]
	l.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "unknown login_id")
		return
	}
	writeError(w, http.StatusBadRequest, "interactive login is not implemented")
}

func (l *loginStub) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoginID string `json:"login_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	l.mu.Lock()
	delete(l.logins, req.LoginID)
	l.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (l *loginStub) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("login_id")
	l.mu.Lock()
	_, exists := l.logins[id]
	l.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "unknown login_id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"login_id": id, "status": "unimplemented"})
}
