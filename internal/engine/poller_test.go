package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/stretchr/testify/assert"
)

func newTestPoller(t *testing.T, fb *fakeBackend) (*Poller, *Dispatcher) {
	d, _ := newTestDispatcher(t, fb, &fakeGate{})
	_, log := newTestStore(t)
	return NewPoller(fb, d, time.Minute, log), d
}

func TestPoller_TickQueuesBatch(t *testing.T) {
	fb := newFakeBackend()
	fb.pending = 3
	fb.batch = []model.ChangeEvent{
		{EntityType: "Product", EntityID: "a", DeliveryToken: "t1"},
		{EntityType: "Product", EntityID: "b", DeliveryToken: "t2"},
		{EntityType: "Tax", EntityID: "c", DeliveryToken: "t3"},
	}
	p, d := newTestPoller(t, fb)

	p.tick(context.Background())
	assert.Equal(t, 3, d.QueueDepth())

	st := p.Status()
	assert.Equal(t, 3, st.PendingCount)
	assert.Equal(t, 3, st.LastBatch)
	assert.Empty(t, st.LastError)
}

func TestPoller_ZeroPendingSkipsFetch(t *testing.T) {
	fb := newFakeBackend()
	fb.fetchUpdErr = errors.New("must not be called")
	p, d := newTestPoller(t, fb)

	p.tick(context.Background())
	assert.Equal(t, 0, d.QueueDepth())
	assert.Empty(t, p.Status().LastError)
}

func TestPoller_BadTickIsSwallowed(t *testing.T) {
	fb := newFakeBackend()
	fb.heartbeatErr = errors.New("no route to host")
	p, d := newTestPoller(t, fb)

	// must not panic or stop; outcome recorded for the status API
	p.tick(context.Background())
	assert.Equal(t, 0, d.QueueDepth())
	assert.Contains(t, p.Status().LastError, "no route to host")

	// next tick recovers on its own
	fb.mu.Lock()
	fb.heartbeatErr = nil
	fb.pending = 1
	fb.batch = []model.ChangeEvent{{EntityType: "Product", EntityID: "a", DeliveryToken: "t1"}}
	fb.mu.Unlock()

	p.tick(context.Background())
	assert.Equal(t, 1, d.QueueDepth())
	assert.Empty(t, p.Status().LastError)
}
