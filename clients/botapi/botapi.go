// Package botapi is the HTTP liveness prober for the trading bot. It asks
// the bot's status endpoint whether the backend is reachable and what state
// it reports, and publishes the answer to subscribers on a fixed cadence.
package botapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"botwatch/config"
)

// Status is a snapshot of the bot's reported state. IsOnline and LastUpdated
// are stamped locally; Status and Message come from the endpoint body, or
// from local error classification when the endpoint is unreachable.
type Status struct {
	Status      string    `json:"status"` // running|stopped|offline
	Message     string    `json:"message"`
	IsOnline    bool      `json:"is_online"`
	LastUpdated time.Time `json:"last_updated"`
}

// Client issues single status probes. Each call is one attempt; retry
// cadence belongs to the Poller.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a status client for the configured bot base URL.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Probe.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
	}
}

// CheckStatus performs one probe of GET {base}/trading/status. Failures are
// never returned to the caller: they are classified into an offline snapshot.
func (c *Client) CheckStatus(ctx context.Context) Status {
	url := c.baseURL + "/trading/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.offline("connection error", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.offline("connection error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return c.offline("endpoint not found", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.offline("connection error", fmt.Errorf("status %d", resp.StatusCode))
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return c.offline("connection error", fmt.Errorf("decode status body: %w", err))
	}

	st.IsOnline = true
	st.LastUpdated = time.Now()
	return st
}

func (c *Client) offline(message string, cause error) Status {
	c.logger.Debug("status probe failed",
		zap.String("classification", message),
		zap.Error(cause))

	return Status{
		Status:      "offline",
		Message:     message,
		IsOnline:    false,
		LastUpdated: time.Now(),
	}
}
