package engine

import (
	"context"
	"fmt"

	"github.com/richardliu001/pos-sync/internal/store"
	"go.uber.org/zap"
)

// TransactionGate is the one thing the engine reads from the checkout
// side: whether a sale is currently open on this terminal.
type TransactionGate interface {
	IsOpen(ctx context.Context) (bool, error)
}

// ShadowManager decides, per incoming update, whether to write the live
// document or stage a shadow copy, and promotes shadows once the open
// sale reaches a terminal state. A sale in progress must never see its
// price or tax basis change underneath it.
type ShadowManager struct {
	store store.StoreInterface
	gate  TransactionGate
	log   *zap.SugaredLogger
}

// NewShadowManager constructs manager.
func NewShadowManager(st store.StoreInterface, gate TransactionGate, logger *zap.SugaredLogger) *ShadowManager {
	return &ShadowManager{store: st, gate: gate, log: logger}
}

// ApplyUpdate writes the fetched snapshot: straight to the live slot
// when no sale is open, to the shadow slot otherwise. If the gate
// cannot be read the update is staged; staging is always safe, a live
// write mid-sale is not.
func (m *ShadowManager) ApplyUpdate(ctx context.Context, collection, id, payload string) error {
	if m.saleOpen(ctx) {
		m.log.Debugf("sale open, staging %s/%s", collection, id)
		return m.store.StageShadow(ctx, collection, id, payload, false)
	}
	return m.store.PutDocument(ctx, collection, id, payload)
}

// ApplyDelete applies a server-side tombstone the same way an update
// is applied: live delete when idle, staged tombstone when a sale is
// open. Deleting an absent document is a no-op.
func (m *ShadowManager) ApplyDelete(ctx context.Context, collection, id string) error {
	if m.saleOpen(ctx) {
		m.log.Debugf("sale open, staging tombstone %s/%s", collection, id)
		return m.store.StageShadow(ctx, collection, id, "", true)
	}
	return m.store.DeleteDocument(ctx, collection, id)
}

// SweepIfClosed promotes all staged shadows when no sale is open.
// Called when a sale reaches a terminal state and once on engine
// startup, so shadows left by a crash are resumed correctly. The sweep
// itself is idempotent.
func (m *ShadowManager) SweepIfClosed(ctx context.Context) (int, error) {
	open, err := m.gate.IsOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("read transaction gate: %w", err)
	}
	if open {
		return 0, nil
	}
	n, err := m.store.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Infof("swept %d shadow document(s) into live store", n)
	}
	return n, nil
}

func (m *ShadowManager) saleOpen(ctx context.Context) bool {
	open, err := m.gate.IsOpen(ctx)
	if err != nil {
		m.log.Warnf("read transaction gate: %v (staging to be safe)", err)
		return true
	}
	return open
}
