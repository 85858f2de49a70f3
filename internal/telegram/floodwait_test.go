package telegram

import (
	"errors"
	"testing"
	"time"
)

func TestFloodWaitParsesRetryAfter(t *testing.T) {
	err := errors.New("telego: too many requests: retry after 30")
	d, ok := FloodWait(err)
	if !ok {
		t.Fatal("expected flood-wait to be recognized")
	}
	if d != 30*time.Second {
		t.Errorf("FloodWait() = %v, want 30s", d)
	}
}

func TestFloodWaitIgnoresUnrelatedErrors(t *testing.T) {
	if _, ok := FloodWait(errors.New("chat not found")); ok {
		t.Error("non-flood-wait error must not be recognized as one")
	}
	if _, ok := FloodWait(nil); ok {
		t.Error("nil error must not be recognized as flood-wait")
	}
}

func TestIsAdminRequiredError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("Bad Request: CHAT_ADMIN_REQUIRED"), true},
		{errors.New("Forbidden: bot have no rights to send a message"), true},
		{errors.New("Bad Request: chat not found"), true},
		{errors.New("connection reset by peer"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsAdminRequiredError(tt.err); got != tt.want {
			t.Errorf("IsAdminRequiredError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsTerminalAuthError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("Unauthorized"), true},
		{errors.New("Forbidden: bot was blocked by the user"), true},
		{errors.New("flood wait, retry after 5"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTerminalAuthError(tt.err); got != tt.want {
			t.Errorf("IsTerminalAuthError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
