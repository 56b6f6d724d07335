package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/richardliu001/pos-sync/internal/logger"
	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, Migrate(db))

	log, _ := logger.NewLogger("error")
	return NewStore(db, nil, log), context.Background()
}

func TestDocument_PutGetDelete(t *testing.T) {
	s, ctx := newTestStore(t)

	_, err := s.GetDocument(ctx, "product", "123")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.PutDocument(ctx, "product", "123", `{"price":"1.99"}`))
	doc, err := s.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"1.99"}`, doc.Payload)

	// full overwrite, last write wins
	assert.NoError(t, s.PutDocument(ctx, "product", "123", `{"price":"2.49"}`))
	doc, err = s.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"2.49"}`, doc.Payload)

	assert.NoError(t, s.DeleteDocument(ctx, "product", "123"))
	_, err = s.GetDocument(ctx, "product", "123")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again is a no-op
	assert.NoError(t, s.DeleteDocument(ctx, "product", "123"))
}

func TestDocument_OneLiveVersionPerKey(t *testing.T) {
	s, ctx := newTestStore(t)

	assert.NoError(t, s.PutDocument(ctx, "product", "1", `{"v":1}`))
	assert.NoError(t, s.PutDocument(ctx, "product", "1", `{"v":2}`))
	assert.NoError(t, s.PutDocument(ctx, "product", "1", `{"v":3}`))

	var n int64
	s.DB(ctx).Model(&model.Document{}).
		Where("collection = ? AND doc_id = ?", "product", "1").Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestShadow_OverwriteNotDuplicate(t *testing.T) {
	s, ctx := newTestStore(t)

	assert.NoError(t, s.StageShadow(ctx, "product", "123", `{"price":"2.00"}`, false))
	assert.NoError(t, s.StageShadow(ctx, "product", "123", `{"price":"3.00"}`, false))

	recs, err := s.ListShadows(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, `{"price":"3.00"}`, recs[0].Payload)
}

func TestShadow_InvisibleToLookups(t *testing.T) {
	s, ctx := newTestStore(t)

	assert.NoError(t, s.PutDocument(ctx, "product", "123", `{"price":"1.00"}`))
	assert.NoError(t, s.StageShadow(ctx, "product", "123", `{"price":"9.99"}`, false))

	doc, err := s.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"1.00"}`, doc.Payload)
}

func TestSweep_PromotesAndIsIdempotent(t *testing.T) {
	s, ctx := newTestStore(t)

	assert.NoError(t, s.PutDocument(ctx, "product", "123", `{"price":"1.00"}`))
	assert.NoError(t, s.StageShadow(ctx, "product", "123", `{"price":"9.99"}`, false))

	n, err := s.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := s.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"9.99"}`, doc.Payload)

	count, err := s.CountShadows(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// second sweep with no new shadows is a no-op
	n, err = s.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	doc, err = s.GetDocument(ctx, "product", "123")
	assert.NoError(t, err)
	assert.Equal(t, `{"price":"9.99"}`, doc.Payload)
}

func TestSweep_StagedTombstoneDeletesLive(t *testing.T) {
	s, ctx := newTestStore(t)

	assert.NoError(t, s.PutDocument(ctx, "tax", "9", `{"rate":"0.0825"}`))
	assert.NoError(t, s.StageShadow(ctx, "tax", "9", "", true))

	n, err := s.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetDocument(ctx, "tax", "9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentWriters_NoTornWrites(t *testing.T) {
	s, ctx := newTestStore(t)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.PutDocument(ctx, "product", "1", fmt.Sprintf(`{"v":%d}`, n))
		}(i)
	}
	wg.Wait()

	// exactly one live version, and its payload is one whole write
	var count int64
	s.DB(ctx).Model(&model.Document{}).
		Where("collection = ? AND doc_id = ?", "product", "1").Count(&count)
	assert.Equal(t, int64(1), count)

	doc, err := s.GetDocument(ctx, "product", "1")
	assert.NoError(t, err)
	var out map[string]int
	assert.NoError(t, json.Unmarshal([]byte(doc.Payload), &out))
	assert.Contains(t, doc.Payload, `"v":`)
}

func TestCursor_RoundTrip(t *testing.T) {
	s, ctx := newTestStore(t)

	last, err := s.GetCursor(ctx, "product")
	assert.NoError(t, err)
	assert.Equal(t, "", last)

	assert.NoError(t, s.PutCursor(ctx, "product", "p-200"))
	assert.NoError(t, s.PutCursor(ctx, "product", "p-400"))

	last, err = s.GetCursor(ctx, "product")
	assert.NoError(t, err)
	assert.Equal(t, "p-400", last)
}
