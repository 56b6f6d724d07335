package engine

import (
	"context"
	"sync"
	"time"

	"github.com/richardliu001/pos-sync/internal/model"
	"go.uber.org/zap"
)

// PendingSource is the backend surface the poller needs: a cheap
// pending count and the batch fetch.
type PendingSource interface {
	Heartbeat(ctx context.Context) (int, error)
	FetchUpdates(ctx context.Context) ([]model.ChangeEvent, error)
}

// PollerStatus is the last tick's outcome, for the status API.
type PollerStatus struct {
	LastTick     time.Time `json:"last_tick"`
	LastError    string    `json:"last_error,omitempty"`
	PendingCount int       `json:"pending_count"`
	LastBatch    int       `json:"last_batch"`
}

// Poller asks the backend on a fixed interval whether change events
// are waiting and, if so, pulls one batch and feeds the dispatcher.
// A bad tick is logged and swallowed; the loop never stops. Only one
// batch is pulled per tick: the backend retains anything undelivered
// until acknowledged, so no local backpressure is needed.
type Poller struct {
	source   PendingSource
	sink     *Dispatcher
	interval time.Duration
	log      *zap.SugaredLogger

	mu     sync.Mutex
	status PollerStatus
}

// NewPoller constructs poller.
func NewPoller(source PendingSource, sink *Dispatcher, interval time.Duration, logger *zap.SugaredLogger) *Poller {
	return &Poller{source: source, sink: sink, interval: interval, log: logger}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infof("heartbeat poller started (interval %s)", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("heartbeat poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	count, err := p.source.Heartbeat(ctx)
	if err != nil {
		p.log.Errorf("heartbeat: %v", err)
		p.record(0, 0, err)
		return
	}
	if count == 0 {
		p.record(0, 0, nil)
		return
	}

	evts, err := p.source.FetchUpdates(ctx)
	if err != nil {
		p.log.Errorf("fetch updates: %v", err)
		p.record(count, 0, err)
		return
	}
	p.sink.Enqueue(evts...)
	p.log.Infof("queued %d change event(s)", len(evts))
	p.record(count, len(evts), nil)
}

func (p *Poller) record(pending, batch int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = PollerStatus{LastTick: time.Now(), PendingCount: pending, LastBatch: batch}
	if err != nil {
		p.status.LastError = err.Error()
	}
}

// Status returns the last tick's outcome.
func (p *Poller) Status() PollerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
