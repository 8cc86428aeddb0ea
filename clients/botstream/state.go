package botstream

import (
	"net/url"
	"strings"
	"time"
)

// State is the lifecycle state of the stream connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Close codes used by the stream connection.
const (
	CloseNormal           = 1000 // owner-initiated shutdown; never retried
	CloseNoStatus         = 1005 // closed without a status code; never retried
	CloseSuperseded       = 4000 // replaced by a newer attempt; never retried
	CloseHeartbeatTimeout = 4001 // no liveness signal within the timeout; always retried
)

// Event describes a connection state change.
type Event struct {
	State     State
	Code      int           // close code when State is StateClosed
	Attempt   int           // consecutive failed attempts since the last open
	WillRetry bool          // a reconnection attempt has been scheduled
	RetryIn   time.Duration // backoff delay of the scheduled attempt
	Err       error         // cause, when the transition was failure-driven
}

// shouldRetry reports whether a closure with the given code schedules a
// reconnection attempt.
func shouldRetry(code int) bool {
	switch code {
	case CloseNormal, CloseNoStatus, CloseSuperseded:
		return false
	}
	return true
}

// backoffDelay computes the delay before reconnection attempt n:
// min(base * 2^n, max).
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// StreamURL derives the log stream endpoint from the bot's HTTP base URL by
// swapping the scheme (http -> ws, https -> wss) and appending /ws/logs.
// An empty or unparsable base falls back to the local default.
func StreamURL(base string) string {
	const fallback = "ws://localhost:8000/ws/logs"

	if strings.TrimSpace(base) == "" {
		return fallback
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return fallback
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/logs"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
