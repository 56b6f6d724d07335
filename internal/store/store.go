package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/pos-sync/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no live document exists for the key.
var ErrNotFound = errors.New("document not found")

// ErrTransactionNotFound is returned for unknown queue GUIDs.
var ErrTransactionNotFound = errors.New("queued transaction not found")

// StoreInterface restricts Store methods (方便单元测试 mock)
type StoreInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetDocument(ctx context.Context, collection, id string) (*model.Document, error)
	PutDocument(ctx context.Context, collection, id, payload string) error
	DeleteDocument(ctx context.Context, collection, id string) error

	StageShadow(ctx context.Context, collection, id, payload string, deleted bool) error
	ListShadows(ctx context.Context) ([]model.ShadowRecord, error)
	CountShadows(ctx context.Context) (int64, error)
	Sweep(ctx context.Context) (int, error)

	EnqueueTransaction(ctx context.Context, qt *model.QueuedTransaction) error
	GetTransaction(ctx context.Context, guid string) (*model.QueuedTransaction, error)
	ListPendingTransactions(ctx context.Context) ([]model.QueuedTransaction, error)
	ListAbandonedTransactions(ctx context.Context) ([]model.QueuedTransaction, error)
	MarkTransactionInFlight(ctx context.Context, guid string) error
	RecoverInFlight(ctx context.Context) (int64, error)
	MarkTransactionSynced(ctx context.Context, guid string) error
	RequeueTransaction(ctx context.Context, guid, lastErr string, permanent bool) error
	AbandonTransaction(ctx context.Context, guid, lastErr string) error
	ReviveTransaction(ctx context.Context, guid string) error
	CountTransactions(ctx context.Context, status string) (int64, error)

	GetCursor(ctx context.Context, collection string) (string, error)
	PutCursor(ctx context.Context, collection, lastID string) error
}

// Store is the terminal's durable local store: live documents, staged
// shadows, the upload queue and load cursors, all in one sqlite file.
// Every mutation runs under writeMu so concurrent background tasks
// never interleave a partial write.
type Store struct {
	db      *gorm.DB
	rdb     *redis.Client
	log     *zap.SugaredLogger
	writeMu sync.Mutex
}

// NewStore constructs store. rdb may be nil; the read cache is then
// disabled.
func NewStore(db *gorm.DB, rdb *redis.Client, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, rdb: rdb, log: logger}
}

// Migrate creates the local tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Document{},
		&model.ShadowRecord{},
		&model.QueuedTransaction{},
		&model.LoadCursor{},
	)
}

// DB returns underlying *gorm.DB
func (s *Store) DB(ctx context.Context) *gorm.DB { return s.db.WithContext(ctx) }

// GetDocument reads the live version, consulting the redis cache first.
// Shadows are never visible through this path.
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*model.Document, error) {
	if doc, ok := s.cacheGet(ctx, collection, id); ok {
		return doc, nil
	}
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, &doc)
	return &doc, nil
}

// PutDocument overwrites the live version (full snapshot, last write
// wins).
func (s *Store) PutDocument(ctx context.Context, collection, id, payload string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := model.Document{Collection: collection, DocID: id, Payload: payload, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			UpdateAll: true,
		}).
		Create(&doc).Error
	if err != nil {
		return fmt.Errorf("put document %s/%s: %w", collection, id, err)
	}
	s.cacheDel(ctx, collection, id)
	return nil
}

// DeleteDocument removes the live version. Deleting an absent document
// is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&model.Document{}).Error
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	s.cacheDel(ctx, collection, id)
	return nil
}

// StageShadow upserts the staged copy for (collection, id). A second
// update for the same id overwrites the first; there is never more
// than one shadow per key.
func (s *Store) StageShadow(ctx context.Context, collection, id, payload string, deleted bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec := model.ShadowRecord{
		Collection: collection,
		DocID:      id,
		Payload:    payload,
		Deleted:    deleted,
		StagedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("stage shadow %s/%s: %w", collection, id, err)
	}
	return nil
}

// ListShadows returns all staged records.
func (s *Store) ListShadows(ctx context.Context) ([]model.ShadowRecord, error) {
	var recs []model.ShadowRecord
	err := s.db.WithContext(ctx).Order("collection, doc_id").Find(&recs).Error
	return recs, err
}

// CountShadows returns the number of staged records.
func (s *Store) CountShadows(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ShadowRecord{}).Count(&n).Error
	return n, err
}

// Sweep promotes every staged shadow into the live slot and clears the
// staging table, all inside one db transaction. Staged tombstones
// remove the live row. With no shadows present it is a no-op, so
// running it twice is safe.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var swept []model.ShadowRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []model.ShadowRecord
		if err := tx.Find(&recs).Error; err != nil {
			return err
		}
		for _, rec := range recs {
			if err := tx.Where("collection = ? AND doc_id = ?", rec.Collection, rec.DocID).
				Delete(&model.Document{}).Error; err != nil {
				return err
			}
			if !rec.Deleted {
				doc := model.Document{
					Collection: rec.Collection,
					DocID:      rec.DocID,
					Payload:    rec.Payload,
					UpdatedAt:  time.Now(),
				}
				if err := tx.Create(&doc).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("collection = ? AND doc_id = ?", rec.Collection, rec.DocID).
				Delete(&model.ShadowRecord{}).Error; err != nil {
				return err
			}
		}
		swept = recs
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep shadows: %w", err)
	}
	for _, rec := range swept {
		s.cacheDel(ctx, rec.Collection, rec.DocID)
	}
	return len(swept), nil
}

// GetCursor returns the last paged id for a collection, or "" if the
// collection has never been loaded.
func (s *Store) GetCursor(ctx context.Context, collection string) (string, error) {
	var cur model.LoadCursor
	err := s.db.WithContext(ctx).Where("collection = ?", collection).First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cur.LastID, nil
}

// PutCursor records load progress for a collection.
func (s *Store) PutCursor(ctx context.Context, collection, lastID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := model.LoadCursor{Collection: collection, LastID: lastID, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}},
			UpdateAll: true,
		}).
		Create(&cur).Error
}
