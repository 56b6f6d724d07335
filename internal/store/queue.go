package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/pos-sync/internal/model"
	"gorm.io/gorm"
)

// EnqueueTransaction persists a completed sale as PENDING. This runs
// before any upload attempt so a crash after completion never loses
// the sale.
func (s *Store) EnqueueTransaction(ctx context.Context, qt *model.QueuedTransaction) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	qt.Status = model.TxStatusPending
	if err := s.db.WithContext(ctx).Create(qt).Error; err != nil {
		return fmt.Errorf("enqueue transaction %s: %w", qt.GUID, err)
	}
	return nil
}

// GetTransaction fetches one queue entry.
func (s *Store) GetTransaction(ctx context.Context, guid string) (*model.QueuedTransaction, error) {
	var qt model.QueuedTransaction
	err := s.db.WithContext(ctx).Where("guid = ?", guid).First(&qt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &qt, nil
}

// ListPendingTransactions returns entries eligible for an upload
// attempt, oldest first.
func (s *Store) ListPendingTransactions(ctx context.Context) ([]model.QueuedTransaction, error) {
	var qts []model.QueuedTransaction
	err := s.db.WithContext(ctx).
		Where("status = ?", model.TxStatusPending).
		Order("created_at").
		Find(&qts).Error
	return qts, err
}

// ListAbandonedTransactions returns entries awaiting operator review.
func (s *Store) ListAbandonedTransactions(ctx context.Context) ([]model.QueuedTransaction, error) {
	var qts []model.QueuedTransaction
	err := s.db.WithContext(ctx).
		Where("status = ?", model.TxStatusAbandoned).
		Order("created_at").
		Find(&qts).Error
	return qts, err
}

// MarkTransactionInFlight flags the entry while an upload attempt is
// running.
func (s *Store) MarkTransactionInFlight(ctx context.Context, guid string) error {
	return s.setStatus(ctx, guid, model.TxStatusInFlight, nil)
}

// RecoverInFlight returns every IN_FLIGHT entry to PENDING. Rows only
// stay in that state when a crash interrupted an upload attempt; the
// outcome of the interrupted upload is unknown, so the entries rejoin
// the retry pool and are submitted again under the same GUID.
func (s *Store) RecoverInFlight(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res := s.db.WithContext(ctx).
		Model(&model.QueuedTransaction{}).
		Where("status = ?", model.TxStatusInFlight).
		Update("status", model.TxStatusPending)
	if res.Error != nil {
		return 0, fmt.Errorf("recover in-flight transactions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkTransactionSynced deletes the local record; the backend has
// accepted the sale and the terminal no longer owns it.
func (s *Store) MarkTransactionSynced(ctx context.Context, guid string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res := s.db.WithContext(ctx).Where("guid = ?", guid).Delete(&model.QueuedTransaction{})
	if res.Error != nil {
		return fmt.Errorf("mark synced %s: %w", guid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// RequeueTransaction returns a failed entry to PENDING for the next
// retry cycle, recording the error and bumping the attempt counters.
func (s *Store) RequeueTransaction(ctx context.Context, guid, lastErr string, permanent bool) error {
	updates := map[string]interface{}{
		"status":     model.TxStatusPending,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": truncateErr(lastErr),
	}
	if permanent {
		updates["permanent_failures"] = gorm.Expr("permanent_failures + 1")
	}
	return s.setStatus(ctx, guid, "", updates)
}

// AbandonTransaction parks the entry for manual review; automatic
// retries stop here.
func (s *Store) AbandonTransaction(ctx context.Context, guid, lastErr string) error {
	return s.setStatus(ctx, guid, "", map[string]interface{}{
		"status":     model.TxStatusAbandoned,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": truncateErr(lastErr),
	})
}

// ReviveTransaction puts an abandoned entry back into the retry pool
// with a clean permanent-failure count.
func (s *Store) ReviveTransaction(ctx context.Context, guid string) error {
	return s.setStatus(ctx, guid, "", map[string]interface{}{
		"status":             model.TxStatusPending,
		"permanent_failures": 0,
	})
}

// CountTransactions counts queue entries in a given status.
func (s *Store) CountTransactions(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.QueuedTransaction{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (s *Store) setStatus(ctx context.Context, guid, status string, updates map[string]interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if updates == nil {
		updates = map[string]interface{}{"status": status}
	}
	res := s.db.WithContext(ctx).
		Model(&model.QueuedTransaction{}).
		Where("guid = ?", guid).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update transaction %s: %w", guid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func truncateErr(msg string) string {
	if len(msg) > 1024 {
		return msg[:1024]
	}
	return msg
}
