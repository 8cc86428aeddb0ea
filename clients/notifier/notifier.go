package notifier

import (
	"time"
)

// AlertKind indicates what connection event an alert describes.
type AlertKind string

const (
	AlertKindConnected    AlertKind = "connected"    // stream opened
	AlertKindDisconnected AlertKind = "disconnected" // stream lost, retry scheduled
	AlertKindGaveUp       AlertKind = "gave_up"      // stream closed without retry
	AlertKindBotOffline   AlertKind = "bot_offline"  // liveness probe reports offline
	AlertKindError        AlertKind = "error"        // error message from the bot stream
)

// ConnectionAlert carries the data for a connection event notification.
type ConnectionAlert struct {
	Kind      AlertKind
	Message   string
	CloseCode int           // websocket close code, disconnect alerts only
	Attempt   int           // consecutive failed attempts so far
	RetryIn   time.Duration // countdown until the next attempt, if scheduled
	Timestamp time.Time
}

// Notifier is the interface for sending connection alerts to a channel.
type Notifier interface {
	// SendConnectionAlert sends a connection event notification.
	SendConnectionAlert(alert ConnectionAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendConnectionAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendConnectionAlert(alert ConnectionAlert) {
	for _, n := range m.notifiers {
		n.SendConnectionAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
