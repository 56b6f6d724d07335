// Package engine is the offline-first synchronization core: heartbeat
// polling, ordered update dispatch, temporal entity fetches and the
// shadow-document mechanism that keeps an open sale isolated from
// concurrent catalog edits.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/richardliu001/pos-sync/internal/store"
	"go.uber.org/zap"
)

// BackendClient is the backend surface the engine consumes.
// *backend.Client implements it.
type BackendClient interface {
	Heartbeat(ctx context.Context) (int, error)
	FetchUpdates(ctx context.Context) ([]model.ChangeEvent, error)
	ReportOutcome(ctx context.Context, token string, ack bool, reasonCode, message string) error
	FetchEntityAt(ctx context.Context, entityType, entityID string, asOf time.Time) (string, error)
}

// Engine owns the poller, the dispatcher and the shadow manager, with
// an explicit start/stop lifecycle. Callers hold the value; there is
// no global instance.
type Engine struct {
	poller     *Poller
	dispatcher *Dispatcher
	shadows    *ShadowManager
	store      store.StoreInterface
	log        *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles the engine.
func New(client BackendClient, st store.StoreInterface, gate TransactionGate, heartbeatInterval time.Duration, logger *zap.SugaredLogger) *Engine {
	shadows := NewShadowManager(st, gate, logger)
	dispatcher := NewDispatcher(client, client, shadows, logger)
	poller := NewPoller(client, dispatcher, heartbeatInterval, logger)
	return &Engine{
		poller:     poller,
		dispatcher: dispatcher,
		shadows:    shadows,
		store:      st,
		log:        logger,
	}
}

// Start launches the background loops. Shadows left over from a
// previous run are swept first if no sale is open; if the cart flag
// survived the restart and still reports an open sale, they stay
// pinned until that sale closes.
func (e *Engine) Start(ctx context.Context) {
	if _, err := e.shadows.SweepIfClosed(ctx); err != nil {
		e.log.Errorf("startup sweep: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.dispatcher.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.poller.Run(runCtx)
	}()
}

// Stop halts scheduling of new ticks and waits for the loops to exit.
// An in-flight network call finishes or hits its client timeout.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// OnTransactionClosed is the hook the checkout flow calls when a sale
// reaches a terminal state (completed, held or voided): staged shadows
// are promoted now that nothing depends on the old values.
func (e *Engine) OnTransactionClosed(ctx context.Context) (int, error) {
	return e.shadows.SweepIfClosed(ctx)
}

// Status aggregates engine state for the operator API.
type Status struct {
	QueueDepth  int          `json:"queue_depth"`
	ShadowCount int64        `json:"shadow_count"`
	Heartbeat   PollerStatus `json:"heartbeat"`
}

// Status reports queue depth, staged shadow count and the last
// heartbeat outcome.
func (e *Engine) Status(ctx context.Context) Status {
	shadows, err := e.store.CountShadows(ctx)
	if err != nil {
		e.log.Warnf("count shadows: %v", err)
	}
	return Status{
		QueueDepth:  e.dispatcher.QueueDepth(),
		ShadowCount: shadows,
		Heartbeat:   e.poller.Status(),
	}
}
