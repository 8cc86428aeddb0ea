package botapi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller runs the status probe on a fixed interval and publishes each
// snapshot to subscribers. Stop cancels the interval timer; nothing runs
// after Stop returns.
type Poller struct {
	logger   *zap.Logger
	client   *Client
	interval time.Duration

	mu          sync.Mutex
	subs        []func(Status)
	last        Status
	lastChecked time.Time

	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPoller creates a poller over client with the given interval.
func NewPoller(logger *zap.Logger, client *Client, interval time.Duration) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Poller{
		logger:   logger,
		client:   client,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a callback invoked with every published snapshot.
// Register before Start.
func (p *Poller) Subscribe(fn func(Status)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Start probes immediately, then on every interval tick until Stop or ctx
// cancellation.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)

		p.CheckNow(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.CheckNow(ctx)
			}
		}
	}()
}

// CheckNow performs one on-demand probe and publishes the result.
func (p *Poller) CheckNow(ctx context.Context) Status {
	st := p.client.CheckStatus(ctx)

	p.mu.Lock()
	p.last = st
	p.lastChecked = time.Now()
	subs := make([]func(Status), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	p.logger.Debug("status probe",
		zap.String("status", st.Status),
		zap.Bool("online", st.IsOnline))

	for _, fn := range subs {
		fn(st)
	}
	return st
}

// Last returns the most recently published snapshot and when it was taken.
func (p *Poller) Last() (Status, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.lastChecked
}

// Stop cancels the interval timer and waits for the poll loop to exit.
// Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.done
	}
}
