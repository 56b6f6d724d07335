package engine

import (
	"context"
	"testing"
	"time"

	"github.com/richardliu001/pos-sync/internal/store"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/richardliu001/pos-sync/internal/logger"
)

func TestEngine_StartupSweepWhenNoSaleOpen(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, store.Migrate(db))
	log, _ := logger.NewLogger("error")
	st := store.NewStore(db, nil, log)
	ctx := context.Background()

	// a previous run crashed with a shadow staged
	assert.NoError(t, st.PutDocument(ctx, "product", "123", `{"price":"1.00"}`))
	assert.NoError(t, st.StageShadow(ctx, "product", "123", `{"price":"2.00"}`, false))

	fb := newFakeBackend()
	e := New(fb, st, &fakeGate{}, time.Minute, log)
	e.Start(ctx)
	defer e.Stop()

	doc, err := st.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"2.00"}`, doc.Payload)
	n, _ := st.CountShadows(ctx)
	assert.Equal(t, int64(0), n)
}

func TestEngine_StartupShadowPinnedWhileSaleStillOpen(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, store.Migrate(db))
	log, _ := logger.NewLogger("error")
	st := store.NewStore(db, nil, log)
	ctx := context.Background()

	assert.NoError(t, st.StageShadow(ctx, "product", "123", `{"price":"2.00"}`, false))

	// the cart flag survived the restart and still reports open
	gate := &fakeGate{open: true}
	fb := newFakeBackend()
	e := New(fb, st, gate, time.Minute, log)
	e.Start(ctx)

	n, _ := st.CountShadows(ctx)
	assert.Equal(t, int64(1), n)

	// the sale finally closes
	gate.set(false)
	swept, err := e.OnTransactionClosed(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, swept)

	e.Stop()
}

func TestEngine_StatusAggregates(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, store.Migrate(db))
	log, _ := logger.NewLogger("error")
	st := store.NewStore(db, nil, log)
	ctx := context.Background()

	fb := newFakeBackend()
	e := New(fb, st, &fakeGate{open: true}, time.Minute, log)

	assert.NoError(t, st.StageShadow(ctx, "product", "1", `{}`, false))
	status := e.Status(ctx)
	assert.Equal(t, int64(1), status.ShadowCount)
	assert.Equal(t, 0, status.QueueDepth)
}
