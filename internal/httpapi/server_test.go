package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
)

// fakeCore is a minimal Core double for exercising routing, auth, and
// error-to-status-code mapping without a real mirror.Core.
type fakeCore struct {
	upsertErr error
	job       *mirror.Job
	deleteErr error
}

func (f *fakeCore) Status() StatusView { return StatusView{} }

func (f *fakeCore) Upsert(ctx context.Context, req UpsertJobRequest) (*mirror.Job, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return f.job, nil
}

func (f *fakeCore) DeleteAllForSource(ctx context.Context, source mirror.ChannelRef) error {
	return f.deleteErr
}

func (f *fakeCore) UploadSession(ctx context.Context, name, token string) error { return nil }
func (f *fakeCore) DeleteSession(name string) error                            { return nil }
func (f *fakeCore) DownloadSession(name string) ([]byte, error)                { return []byte("zip"), nil }

func TestAuthenticateRejectsMissingBearer(t *testing.T) {
	srv := NewServer(&fakeCore{}, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no bearer token, got %d", rec.Code)
	}
}

func TestAuthenticateAcceptsCorrectBearer(t *testing.T) {
	srv := NewServer(&fakeCore{}, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct bearer token, got %d", rec.Code)
	}
}

func TestAuthenticateSkippedWhenNoBearerConfigured(t *testing.T) {
	srv := NewServer(&fakeCore{}, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when API_BEARER unset, got %d", rec.Code)
	}
}

func TestHandleAddRoleConflictReturns409(t *testing.T) {
	srv := NewServer(&fakeCore{upsertErr: mirror.ErrRoleConflict}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(`{"source":{"id":1},"dest":{"id":2},"post_mode":"user","post_session_name":"x"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on role conflict, got %d", rec.Code)
	}
}

func TestHandleAddNoPollSessionReturns503(t *testing.T) {
	srv := NewServer(&fakeCore{upsertErr: mirror.ErrNoPollSession}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(`{"source":{"id":1},"dest":{"id":2},"post_mode":"bot","bot_token":"t"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no poll session available, got %d", rec.Code)
	}
}

func TestHandleAddInvalidJSONReturns400(t *testing.T) {
	srv := NewServer(&fakeCore{}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on invalid json, got %d", rec.Code)
	}
}

func TestHandleAddDeleteAll(t *testing.T) {
	srv := NewServer(&fakeCore{}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(`{"source":{"id":1},"delete":"all"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete:all, got %d", rec.Code)
	}
}

func TestHandleSessionDownloadMissingNameReturns400(t *testing.T) {
	srv := NewServer(&fakeCore{}, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/session/download", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with no name query param, got %d", rec.Code)
	}
}
