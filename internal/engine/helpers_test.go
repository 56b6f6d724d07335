package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/logger"
	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/richardliu001/pos-sync/internal/store"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*store.Store, *zap.SugaredLogger) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, store.Migrate(db))
	log, _ := logger.NewLogger("error")
	return store.NewStore(db, nil, log), log
}

type fakeGate struct {
	mu   sync.Mutex
	open bool
	err  error
}

func (g *fakeGate) IsOpen(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.err
}

func (g *fakeGate) set(open bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = open
}

type outcome struct {
	Token  string
	Ack    bool
	Reason string
}

// fakeBackend implements BackendClient for dispatcher and poller tests.
type fakeBackend struct {
	mu           sync.Mutex
	pending      int
	batch        []model.ChangeEvent
	entities     map[string]string // entityType+"/"+id -> payload
	gone         map[string]bool
	fetchErr     error
	heartbeatErr error
	fetchUpdErr  error
	reports      []outcome
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entities: make(map[string]string),
		gone:     make(map[string]bool),
	}
}

func (f *fakeBackend) Heartbeat(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, f.heartbeatErr
}

func (f *fakeBackend) FetchUpdates(ctx context.Context) ([]model.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchUpdErr != nil {
		return nil, f.fetchUpdErr
	}
	batch := f.batch
	f.batch = nil
	return batch, nil
}

func (f *fakeBackend) ReportOutcome(ctx context.Context, token string, ack bool, reason, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, outcome{Token: token, Ack: ack, Reason: reason})
	return nil
}

func (f *fakeBackend) FetchEntityAt(ctx context.Context, entityType, entityID string, asOf time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	key := entityType + "/" + entityID
	if f.gone[key] {
		return "", backend.ErrGone
	}
	payload, ok := f.entities[key]
	if !ok {
		return "", backend.ErrGone
	}
	return payload, nil
}

func (f *fakeBackend) reported() []outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outcome, len(f.reports))
	copy(out, f.reports)
	return out
}
