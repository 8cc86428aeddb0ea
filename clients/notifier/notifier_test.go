package notifier

import (
	"errors"
	"testing"
	"time"
)

type recordingNotifier struct {
	alerts   []ConnectionAlert
	closed   bool
	closeErr error
}

func (r *recordingNotifier) SendConnectionAlert(alert ConnectionAlert) {
	r.alerts = append(r.alerts, alert)
}

func (r *recordingNotifier) Close() error {
	r.closed = true
	return r.closeErr
}

func TestNewMultiNotifier_FiltersNil(t *testing.T) {
	a := &recordingNotifier{}
	m := NewMultiNotifier(nil, a, nil)

	if m.Count() != 1 {
		t.Errorf("expected 1 active notifier, got %d", m.Count())
	}
}

func TestMultiNotifier_Broadcast(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	m := NewMultiNotifier(a, b)

	alert := ConnectionAlert{
		Kind:      AlertKindDisconnected,
		Message:   "stream lost",
		CloseCode: 1006,
		Attempt:   2,
		RetryIn:   4 * time.Second,
		Timestamp: time.Now(),
	}
	m.SendConnectionAlert(alert)

	for i, r := range []*recordingNotifier{a, b} {
		if len(r.alerts) != 1 {
			t.Fatalf("notifier %d: expected 1 alert, got %d", i, len(r.alerts))
		}
		got := r.alerts[0]
		if got.Kind != AlertKindDisconnected || got.CloseCode != 1006 || got.RetryIn != 4*time.Second {
			t.Errorf("notifier %d: unexpected alert %+v", i, got)
		}
	}
}

func TestMultiNotifier_CloseReturnsLastError(t *testing.T) {
	wantErr := errors.New("session close failed")
	a := &recordingNotifier{closeErr: wantErr}
	b := &recordingNotifier{}
	m := NewMultiNotifier(a, b)

	err := m.Close()
	if !errors.Is(err, wantErr) {
		t.Errorf("expected close error surfaced, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("expected all notifiers closed despite error")
	}
}

func TestMultiNotifier_Empty(t *testing.T) {
	m := NewMultiNotifier()

	if m.Count() != 0 {
		t.Errorf("expected 0 notifiers, got %d", m.Count())
	}
	// Must be safe with no targets.
	m.SendConnectionAlert(ConnectionAlert{Kind: AlertKindConnected})
	if err := m.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
