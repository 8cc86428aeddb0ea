package app

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	clts "botwatch/clients"
	"botwatch/clients/botapi"
	"botwatch/clients/botstream"
	"botwatch/clients/notifier"
	"botwatch/config"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Runner wires the liveness prober, the stream connection, the notifiers,
// and the dashboard server together and owns their lifecycle.
type Runner struct {
	clients *clts.Clients
	cfg     *config.Config
	poller  *botapi.Poller
	hub     *Hub

	dashboard *http.Server
	startTime time.Time

	mu         sync.Mutex
	lastOnline bool
	sawStatus  bool
}

// NewRunner creates a runner over the given clients and configuration.
func NewRunner(clients *clts.Clients, cfg *config.Config) *Runner {
	return &Runner{
		clients: clients,
		cfg:     cfg,
		poller:  botapi.NewPoller(clients.Logger, clients.BotAPI, cfg.Probe.Interval),
		hub:     NewHub(clients.Logger),
	}
}

// Run starts all components and blocks until ctx is cancelled, then tears
// everything down in order: no timer or handle survives shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()
	logger := r.clients.Logger

	r.clients.Stream.OnMessage(func(msg botstream.Message) {
		r.handleStreamMessage(msg)
	})
	r.clients.Stream.OnStateChange(func(ev botstream.Event) {
		r.handleStreamEvent(ctx, ev)
	})
	r.poller.Subscribe(func(st botapi.Status) {
		r.handleStatus(ctx, st)
	})

	if r.cfg.Dashboard.Enabled {
		r.startDashboard(r.cfg.Dashboard.Port)
	}

	r.poller.Start(ctx)

	logger.Info("botwatch running",
		zap.String("backend", r.cfg.Backend.BaseURL),
		zap.String("stream", r.clients.Stream.URL()),
		zap.Duration("probe_interval", r.cfg.Probe.Interval),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	r.poller.Stop()
	if err := r.clients.Stream.Close(); err != nil {
		logger.Warn("stream close failed", zap.Error(err))
	}
	r.hub.CloseAll()

	if r.dashboard != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.dashboard.Shutdown(shutdownCtx); err != nil {
			logger.Warn("dashboard shutdown failed", zap.Error(err))
		}
	}

	if err := r.clients.Notifier.Close(); err != nil {
		logger.Warn("notifier close failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// handleStatus gates the stream on the prober's online signal and alerts on
// the online -> offline edge.
func (r *Runner) handleStatus(ctx context.Context, st botapi.Status) {
	r.mu.Lock()
	wasOnline := r.lastOnline
	seen := r.sawStatus
	r.lastOnline = st.IsOnline
	r.sawStatus = true
	r.mu.Unlock()

	if st.IsOnline {
		r.clients.Stream.EnsureConnected(ctx)
		return
	}

	if seen && wasOnline {
		r.clients.Notifier.SendConnectionAlert(notifier.ConnectionAlert{
			Kind:      notifier.AlertKindBotOffline,
			Message:   st.Message,
			Timestamp: time.Now(),
		})
	}
}

func (r *Runner) handleStreamEvent(ctx context.Context, ev botstream.Event) {
	switch ev.State {
	case botstream.StateOpen:
		// Resync the displayed bot status off the event path.
		go r.poller.CheckNow(ctx)

		r.clients.Notifier.SendConnectionAlert(notifier.ConnectionAlert{
			Kind:      notifier.AlertKindConnected,
			Message:   "log stream established",
			Timestamp: time.Now(),
		})

	case botstream.StateClosed:
		if ev.Code == botstream.CloseNormal && !ev.WillRetry {
			// Owner-initiated shutdown, nothing to announce.
			return
		}

		kind := notifier.AlertKindGaveUp
		msg := "log stream closed, not retrying"
		if ev.WillRetry {
			kind = notifier.AlertKindDisconnected
			msg = "log stream lost"
		}
		if ev.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, ev.Err)
		}

		r.clients.Notifier.SendConnectionAlert(notifier.ConnectionAlert{
			Kind:      kind,
			Message:   msg,
			CloseCode: ev.Code,
			Attempt:   ev.Attempt,
			RetryIn:   ev.RetryIn,
			Timestamp: time.Now(),
		})
	}
}

func (r *Runner) handleStreamMessage(msg botstream.Message) {
	r.hub.Broadcast(msg)

	if msg.Kind == botstream.KindError {
		r.clients.Notifier.SendConnectionAlert(notifier.ConnectionAlert{
			Kind:      notifier.AlertKindError,
			Message:   msg.Text,
			Timestamp: time.Now(),
		})
	}
}

// ServiceStats holds service statistics for the dashboard.
type ServiceStats struct {
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	Stream botstream.Stats `json:"stream"`

	Probe struct {
		Status      botapi.Status `json:"status"`
		LastChecked string        `json:"last_checked,omitempty"`
	} `json:"probe"`

	DashboardClients int `json:"dashboard_clients"`
}

// GetStats collects current service statistics.
func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	uptime := time.Since(r.startTime)
	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	stats.Stream = r.clients.Stream.Stats()

	last, checked := r.poller.Last()
	stats.Probe.Status = last
	if !checked.IsZero() {
		stats.Probe.LastChecked = checked.UTC().Format(time.RFC3339)
	}

	stats.DashboardClients = r.hub.Count()

	return stats
}
