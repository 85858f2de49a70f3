package mirror

import (
	"testing"
	"time"
)

func TestAlertSinkNilIsNoOp(t *testing.T) {
	var a *AlertSink
	a.Send("key", "text") // must not panic
}

func TestNewAlertSinkWithEmptyTokenReturnsNilSink(t *testing.T) {
	sink, err := NewAlertSink("", 0, 0, time.Second, nil)
	if err != nil {
		t.Fatalf("NewAlertSink() error = %v", err)
	}
	if sink != nil {
		t.Error("an empty alert token must yield a nil sink, not a configured one")
	}
}

func TestAlertSinkThrottlesRepeatedKey(t *testing.T) {
	sink, err := NewAlertSink("123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", 1, 0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewAlertSink() error = %v", err)
	}

	sink.Send("dup", "first")
	firstSent := sink.lastSent["dup"]
	if firstSent.IsZero() {
		t.Fatal("expected lastSent to be recorded after first Send")
	}

	sink.Send("dup", "second")
	if got := sink.lastSent["dup"]; !got.Equal(firstSent) {
		t.Error("a second Send within the throttle window must not update lastSent")
	}
}

func TestAlertSinkDistinctKeysAreIndependent(t *testing.T) {
	sink, err := NewAlertSink("123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", 1, 0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewAlertSink() error = %v", err)
	}

	sink.Send("a", "text")
	sink.Send("b", "text")
	if len(sink.lastSent) != 2 {
		t.Errorf("expected two independently throttled keys, got %d", len(sink.lastSent))
	}
}
