package engine

import (
	"context"
	"errors"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/model"
	"go.uber.org/zap"
)

// Nack reason codes reported back to the backend.
const (
	ReasonUnsupportedEntity = "unsupported_entity"
	ReasonNetworkError      = "network_error"
	ReasonInvalidPayload    = "invalid_payload"
	ReasonStorageError      = "storage_error"
)

// Reporter acks or nacks one change event so the backend stops
// redelivering it.
type Reporter interface {
	ReportOutcome(ctx context.Context, token string, ack bool, reasonCode, message string) error
}

// Dispatcher drains the event queue FIFO with a single consumer and
// routes each event to its entity handler. One consumer is the whole
// ordering guarantee: events for the same entity apply in delivery
// order because nothing ever processes two events concurrently.
type Dispatcher struct {
	queue    *eventQueue
	handlers map[string]*entityHandler
	fetch    Fetcher
	reporter Reporter
	shadows  *ShadowManager
	log      *zap.SugaredLogger
}

// NewDispatcher constructs dispatcher with the default entity routing.
func NewDispatcher(fetch Fetcher, reporter Reporter, shadows *ShadowManager, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		queue:    newEventQueue(),
		handlers: defaultHandlers(),
		fetch:    fetch,
		reporter: reporter,
		shadows:  shadows,
		log:      logger,
	}
}

// Enqueue hands a batch of change events to the consumer, preserving
// delivery order.
func (d *Dispatcher) Enqueue(evts ...model.ChangeEvent) {
	for _, evt := range evts {
		if !d.queue.Enqueue(evt) {
			d.log.Warnf("queue closed, dropping event %s/%s", evt.EntityType, evt.EntityID)
		}
	}
}

// QueueDepth reports how many events await processing.
func (d *Dispatcher) QueueDepth() int { return d.queue.Len() }

// Run is the consumer loop. It exits when ctx is cancelled; an
// in-flight fetch finishes or times out first.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("update dispatcher started")
	for {
		evt, ok := d.queue.TryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				d.queue.Close()
				d.log.Info("update dispatcher stopped")
				return
			case <-d.queue.Wait():
				continue
			}
		}
		d.process(ctx, evt)
	}
}

// process applies one event and reports its outcome. Exactly one
// report is issued per event, success or failure. A failure to send
// the report is logged only; the backend redelivers the event on a
// later heartbeat because it was never acked.
func (d *Dispatcher) process(ctx context.Context, evt model.ChangeEvent) {
	h, ok := d.handlers[evt.EntityType]
	if !ok {
		d.log.Warnf("unsupported entity type %q (id=%s)", evt.EntityType, evt.EntityID)
		d.report(ctx, evt, false, ReasonUnsupportedEntity, "no handler for entity type "+evt.EntityType)
		return
	}

	err := h.handle(ctx, d.fetch, d.shadows, evt)
	if err == nil {
		d.report(ctx, evt, true, "", "")
		return
	}

	reason := ReasonStorageError
	switch {
	case backend.IsRetryable(err):
		reason = ReasonNetworkError
	case errors.Is(err, ErrInvalidPayload):
		reason = ReasonInvalidPayload
	}
	d.log.Errorf("apply %s/%s: %v", evt.EntityType, evt.EntityID, err)
	d.report(ctx, evt, false, reason, err.Error())
}

func (d *Dispatcher) report(ctx context.Context, evt model.ChangeEvent, ack bool, reason, msg string) {
	if err := d.reporter.ReportOutcome(ctx, evt.DeliveryToken, ack, reason, msg); err != nil {
		d.log.Errorf("report outcome token=%s: %v", evt.DeliveryToken, err)
	}
}
