// Package uploader is the durable transaction upload queue: a
// completed sale is persisted locally before any network call, then
// uploaded immediately and retried on a fixed schedule until synced or
// abandoned.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/richardliu001/pos-sync/internal/store"
	"go.uber.org/zap"
)

// Submitter uploads one sale payload. *backend.Client implements it.
type Submitter interface {
	SubmitTransaction(ctx context.Context, payload string) error
}

// Uploader owns the queue. It shares the store with the sync engine
// but runs on its own schedule; neither ever blocks the other.
type Uploader struct {
	store        store.StoreInterface
	submit       Submitter
	interval     time.Duration
	maxPermanent int
	log          *zap.SugaredLogger
}

// NewUploader constructs uploader. maxPermanent bounds how many
// permanent-class rejections a sale survives before it is abandoned
// for operator review.
func NewUploader(st store.StoreInterface, submit Submitter, interval time.Duration, maxPermanent int, logger *zap.SugaredLogger) *Uploader {
	return &Uploader{
		store:        st,
		submit:       submit,
		interval:     interval,
		maxPermanent: maxPermanent,
		log:          logger,
	}
}

// Enqueue persists the completed sale as pending and then tries an
// immediate upload. The write happens before any network call: a crash
// between completion and a successful upload never loses the sale. The
// returned GUID identifies the queue entry.
func (u *Uploader) Enqueue(ctx context.Context, sale *model.Sale) (string, error) {
	if sale.GUID == "" {
		sale.GUID = uuid.NewString()
	}
	payload, err := json.Marshal(sale)
	if err != nil {
		return "", fmt.Errorf("marshal sale %s: %w", sale.GUID, err)
	}
	qt := &model.QueuedTransaction{GUID: sale.GUID, Payload: string(payload)}
	if err := u.store.EnqueueTransaction(ctx, qt); err != nil {
		return "", err
	}
	u.attempt(ctx, qt)
	return sale.GUID, nil
}

// Run retries every pending entry on a fixed interval until ctx is
// cancelled. The schedule is deliberately flat: no backoff, no jitter.
// Entries a crash left marked in-flight are returned to the pool
// before the first tick, so a restart never strands a sale.
func (u *Uploader) Run(ctx context.Context) {
	u.recoverStranded(ctx)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.log.Infof("upload retry job started (interval %s)", u.interval)
	for {
		select {
		case <-ctx.Done():
			u.log.Info("upload retry job stopped")
			return
		case <-ticker.C:
			u.retryPending(ctx)
		}
	}
}

// recoverStranded resets entries stuck IN_FLIGHT from an interrupted
// attempt. Re-submission under the same GUID is safe; the backend
// dedupes on it.
func (u *Uploader) recoverStranded(ctx context.Context) {
	n, err := u.store.RecoverInFlight(ctx)
	if err != nil {
		u.log.Errorf("recover in-flight transactions: %v", err)
		return
	}
	if n > 0 {
		u.log.Warnf("returned %d transaction(s) left in-flight by an earlier shutdown to the retry pool", n)
	}
}

func (u *Uploader) retryPending(ctx context.Context) {
	qts, err := u.store.ListPendingTransactions(ctx)
	if err != nil {
		u.log.Errorf("list pending transactions: %v", err)
		return
	}
	for i := range qts {
		u.attempt(ctx, &qts[i])
	}
}

// attempt runs one upload. On success the local record is deleted; on
// failure the entry returns to pending, except that a permanent-class
// rejection past the bound parks it as abandoned.
func (u *Uploader) attempt(ctx context.Context, qt *model.QueuedTransaction) {
	if err := u.store.MarkTransactionInFlight(ctx, qt.GUID); err != nil {
		u.log.Errorf("mark in-flight %s: %v", qt.GUID, err)
		return
	}

	err := u.submit.SubmitTransaction(ctx, qt.Payload)
	if err == nil {
		if err := u.store.MarkTransactionSynced(ctx, qt.GUID); err != nil {
			u.log.Errorf("mark synced %s: %v", qt.GUID, err)
			return
		}
		u.log.Infof("transaction %s synced", qt.GUID)
		return
	}

	if backend.IsPermanent(err) {
		if qt.PermanentFailures+1 >= u.maxPermanent {
			u.log.Errorf("transaction %s abandoned after %d permanent failure(s): %v",
				qt.GUID, qt.PermanentFailures+1, err)
			if aerr := u.store.AbandonTransaction(ctx, qt.GUID, err.Error()); aerr != nil {
				u.log.Errorf("abandon %s: %v", qt.GUID, aerr)
			}
			return
		}
		u.log.Warnf("transaction %s rejected (permanent %d/%d): %v",
			qt.GUID, qt.PermanentFailures+1, u.maxPermanent, err)
		if rerr := u.store.RequeueTransaction(ctx, qt.GUID, err.Error(), true); rerr != nil {
			u.log.Errorf("requeue %s: %v", qt.GUID, rerr)
		}
		return
	}

	u.log.Warnf("transaction %s upload failed, will retry: %v", qt.GUID, err)
	if rerr := u.store.RequeueTransaction(ctx, qt.GUID, err.Error(), false); rerr != nil {
		u.log.Errorf("requeue %s: %v", qt.GUID, rerr)
	}
}

// RetryAbandoned puts an abandoned entry back into the automatic retry
// pool after operator review.
func (u *Uploader) RetryAbandoned(ctx context.Context, guid string) error {
	return u.store.ReviveTransaction(ctx, guid)
}

// ListAbandoned surfaces entries awaiting operator review.
func (u *Uploader) ListAbandoned(ctx context.Context) ([]model.QueuedTransaction, error) {
	return u.store.ListAbandonedTransactions(ctx)
}

// Status is the aggregate the UI is allowed to see: counts, never
// internals.
type Status struct {
	Pending   int64 `json:"pending"`
	InFlight  int64 `json:"in_flight"`
	Abandoned int64 `json:"abandoned"`
}

// Status counts queue entries per state.
func (u *Uploader) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error
	if st.Pending, err = u.store.CountTransactions(ctx, model.TxStatusPending); err != nil {
		return st, err
	}
	if st.InFlight, err = u.store.CountTransactions(ctx, model.TxStatusInFlight); err != nil {
		return st, err
	}
	if st.Abandoned, err = u.store.CountTransactions(ctx, model.TxStatusAbandoned); err != nil {
		return st, err
	}
	return st, nil
}
