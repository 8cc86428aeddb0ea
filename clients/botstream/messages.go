package botstream

import (
	"encoding/json"
	"time"
)

// Kind discriminates inbound stream messages by their "type" field.
type Kind string

const (
	KindPing              Kind = "ping"
	KindPong              Kind = "pong"
	KindConnection        Kind = "connection" // server acknowledgement
	KindLog               Kind = "log"
	KindOrder             Kind = "order"
	KindError             Kind = "error"
	KindMarketData        Kind = "market_data"
	KindPositionUpdate    Kind = "position_update"
	KindPerformanceUpdate Kind = "performance_update"
	KindUnknown           Kind = "unknown"
)

// Message is one inbound stream message after classification.
// Raw always carries the original frame so domain payloads (market data,
// position and performance updates) pass through opaquely.
type Message struct {
	Kind       Kind            `json:"kind"`
	ReceivedAt time.Time       `json:"received_at"`
	Level      string          `json:"level,omitempty"` // log messages: info|warning|error
	Text       string          `json:"text,omitempty"`  // log/error text, or opaque fallback
	Order      *OrderInfo      `json:"order,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// OrderInfo is the payload of an order message.
type OrderInfo struct {
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
	Symbol string  `json:"symbol"`
}

// envelope is the wire shape shared by all inbound messages.
type envelope struct {
	Type    string          `json:"type"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// pingFrame is the outbound heartbeat message.
type pingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// parseFrame classifies an inbound frame. Parsing is tolerant: a frame that
// is not valid JSON, or has no recognizable type, is forwarded as opaque text
// rather than dropped - a malformed message must never cost the connection.
func parseFrame(data []byte, now time.Time) Message {
	raw := json.RawMessage(append([]byte(nil), data...))

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return Message{
			Kind:       KindUnknown,
			ReceivedAt: now,
			Text:       string(data),
			Raw:        raw,
		}
	}

	msg := Message{
		Kind:       Kind(env.Type),
		ReceivedAt: now,
		Raw:        raw,
	}

	switch msg.Kind {
	case KindPong, KindConnection:
		// Liveness-bearing, no payload required.

	case KindLog:
		msg.Level = env.Level
		if msg.Level == "" {
			msg.Level = "info"
		}
		msg.Text = env.Message

	case KindOrder:
		var info OrderInfo
		if err := json.Unmarshal(env.Data, &info); err == nil {
			msg.Order = &info
		} else {
			msg.Text = string(env.Data)
		}

	case KindError:
		var text string
		if err := json.Unmarshal(env.Data, &text); err == nil {
			msg.Text = text
		} else {
			msg.Text = string(env.Data)
		}
		msg.Level = "error"

	case KindPing, KindMarketData, KindPositionUpdate, KindPerformanceUpdate:
		// Forwarded opaquely via Raw.

	default:
		msg.Kind = KindUnknown
		msg.Text = string(data)
	}

	return msg
}
