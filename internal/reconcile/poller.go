package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// DefaultPollInterval is how often the Poller re-reads the ledger.
const DefaultPollInterval = 10 * time.Second

// Snapshot is one complete, immutable set of read models.
type Snapshot struct {
	Assets          []model.AssetRecord `json:"assets"`
	Events          []model.EventRecord `json:"events"`
	Tickets         []model.TicketView  `json:"tickets"`
	Height          uint64              `json:"height"`
	HeightEstimated bool                `json:"height_estimated"`
	RefreshedAt     time.Time           `json:"refreshed_at"`
}

// Poller refreshes a Snapshot on an interval. It is the only owner of the
// refresh timer.
type Poller struct {
	rec       *Reconciler
	heights   *Heights
	publisher events.Publisher
	interval  time.Duration
	owner     string
	logger    *slog.Logger

	mu      sync.RWMutex
	snap    *Snapshot
	lastErr error

	// refreshMu serializes refresh passes between the ticker and Refresh.
	refreshMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller. owner selects whose tickets are joined; empty
// skips tickets.
func NewPoller(rec *Reconciler, heights *Heights, publisher events.Publisher, interval time.Duration, owner string, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		rec:       rec,
		heights:   heights,
		publisher: publisher,
		interval:  interval,
		owner:     owner,
		logger:    logger,
	}
}

// Start begins periodic refresh. It runs one refresh immediately, then on
// each tick.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop cancels the poller and waits for the current refresh (if any) to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	p.Refresh(ctx) //nolint:errcheck // logged and kept in LastError

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx) //nolint:errcheck
		}
	}
}

// Snapshot returns the latest snapshot, or nil before the first success.
func (p *Poller) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// LastError returns the error of the most recent refresh, if it failed.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Refresh re-reads every collection and swaps in a new snapshot. On failure
// the previous snapshot stays in place.
func (p *Poller) Refresh(ctx context.Context) (*Snapshot, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := time.Now()
	snap, err := p.collect(ctx)
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.snap = snap
	}
	p.mu.Unlock()

	done := events.ReconcileCompleted{Duration: time.Since(start).String(), At: time.Now().UTC()}
	if err != nil {
		p.logger.Error("reconcile failed", "err", err)
		done.Error = err.Error()
	} else {
		done.Assets, done.Events, done.Tickets = len(snap.Assets), len(snap.Events), len(snap.Tickets)
		done.Height, done.HeightEstimated = snap.Height, snap.HeightEstimated
		p.logger.Info("reconcile completed",
			"assets", done.Assets, "events", done.Events, "tickets", done.Tickets,
			"height", done.Height, "height_estimated", done.HeightEstimated, "duration", done.Duration)
	}
	if perr := p.publisher.Publish(ctx, events.TopicReconcileCompleted, done); perr != nil {
		p.logger.Warn("publish reconcile event", "err", perr)
	}
	return snap, err
}

func (p *Poller) collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	if snap.Assets, err = p.rec.ListAssets(ctx); err != nil {
		return nil, err
	}
	if snap.Events, err = p.rec.ListEvents(ctx); err != nil {
		return nil, err
	}
	if p.owner != "" {
		if snap.Tickets, err = p.rec.ListTickets(ctx, p.owner); err != nil {
			return nil, err
		}
	}
	if p.heights != nil {
		snap.Height, snap.HeightEstimated = p.heights.Current(ctx)
	}
	snap.RefreshedAt = time.Now().UTC()
	return snap, nil
}
