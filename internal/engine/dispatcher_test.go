package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/richardliu001/pos-sync/internal/store"
	"github.com/stretchr/testify/assert"
)

func newTestDispatcher(t *testing.T, fb *fakeBackend, gate *fakeGate) (*Dispatcher, *store.Store) {
	st, log := newTestStore(t)
	shadows := NewShadowManager(st, gate, log)
	return NewDispatcher(fb, fb, shadows, log), st
}

// drain processes everything queued, synchronously, in FIFO order.
func drain(ctx context.Context, d *Dispatcher) {
	for {
		evt, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		d.process(ctx, evt)
	}
}

func evt(entityType, id, token string) model.ChangeEvent {
	return model.ChangeEvent{EntityType: entityType, EntityID: id, Timestamp: time.Now(), DeliveryToken: token}
}

func TestDispatcher_OneReportPerEvent(t *testing.T) {
	fb := newFakeBackend()
	fb.entities["Product/a"] = `{"id":"a","price":"1.00"}`
	fb.entities["Tax/c"] = `{"id":"c","rate":"0.05"}`
	// Product/b left unset: fetch yields gone, applied as a delete

	d, _ := newTestDispatcher(t, fb, &fakeGate{})
	d.Enqueue(evt("Product", "a", "t1"), evt("Product", "b", "t2"), evt("Tax", "c", "t3"))
	drain(context.Background(), d)

	reports := fb.reported()
	assert.Len(t, reports, 3)
	assert.Equal(t, "t1", reports[0].Token)
	assert.Equal(t, "t2", reports[1].Token)
	assert.Equal(t, "t3", reports[2].Token)
	for _, r := range reports {
		assert.True(t, r.Ack)
	}
}

func TestDispatcher_UnknownEntityTypeNacksAndContinues(t *testing.T) {
	fb := newFakeBackend()
	fb.entities["Product/a"] = `{"id":"a"}`

	d, st := newTestDispatcher(t, fb, &fakeGate{})
	d.Enqueue(evt("Hologram", "x", "t1"), evt("Product", "a", "t2"))
	drain(context.Background(), d)

	reports := fb.reported()
	assert.Len(t, reports, 2)
	assert.False(t, reports[0].Ack)
	assert.Equal(t, ReasonUnsupportedEntity, reports[0].Reason)
	assert.True(t, reports[1].Ack)

	// the queue kept going: Product/a landed
	_, err := st.GetDocument(context.Background(), "product", "a")
	assert.NoError(t, err)
}

func TestDispatcher_GoneSignalDeletesEvenIfAbsent(t *testing.T) {
	fb := newFakeBackend()
	fb.gone["Product/ghost"] = true

	d, st := newTestDispatcher(t, fb, &fakeGate{})
	d.Enqueue(evt("Product", "ghost", "t1"))
	drain(context.Background(), d)

	reports := fb.reported()
	assert.Len(t, reports, 1)
	assert.True(t, reports[0].Ack)
	_, err := st.GetDocument(context.Background(), "product", "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatcher_NetworkErrorNacksRetryable(t *testing.T) {
	fb := newFakeBackend()
	fb.fetchErr = &backend.RequestError{Op: "temporal fetch", Err: errors.New("timeout")}

	d, st := newTestDispatcher(t, fb, &fakeGate{})
	d.Enqueue(evt("Product", "a", "t1"))
	drain(context.Background(), d)

	reports := fb.reported()
	assert.Len(t, reports, 1)
	assert.False(t, reports[0].Ack)
	assert.Equal(t, ReasonNetworkError, reports[0].Reason)

	// nothing was written; recovery relies on backend redelivery
	_, err := st.GetDocument(context.Background(), "product", "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatcher_InvalidPayloadNack(t *testing.T) {
	fb := newFakeBackend()
	fb.entities["Product/a"] = `not json at all`

	d, _ := newTestDispatcher(t, fb, &fakeGate{})
	d.Enqueue(evt("Product", "a", "t1"))
	drain(context.Background(), d)

	reports := fb.reported()
	assert.Len(t, reports, 1)
	assert.False(t, reports[0].Ack)
	assert.Equal(t, ReasonInvalidPayload, reports[0].Reason)
}

func TestDispatcher_InOrderReplayIsDeterministic(t *testing.T) {
	fb := newFakeBackend()
	d, st := newTestDispatcher(t, fb, &fakeGate{})
	ctx := context.Background()

	// same entity updated three times; each fetch returns the state as
	// of that event
	for i, payload := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
		fb.mu.Lock()
		fb.entities["Product/p1"] = payload
		fb.mu.Unlock()
		d.Enqueue(evt("Product", "p1", "t"+string(rune('1'+i))))
		drain(ctx, d)
	}

	doc, err := st.GetDocument(ctx, "product", "p1")
	assert.NoError(t, err)
	assert.Equal(t, `{"v":3}`, doc.Payload)
	assert.Len(t, fb.reported(), 3)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	fb := newFakeBackend()
	fb.entities["Product/a"] = `{"id":"a"}`
	d, st := newTestDispatcher(t, fb, &fakeGate{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Enqueue(evt("Product", "a", "t1"))
	assert.Eventually(t, func() bool {
		_, err := st.GetDocument(context.Background(), "product", "a")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
