// Package loader performs the initial bulk load of reference
// collections: plain cursor paging, no concurrency. It shares the
// local store with the sync engine but none of its machinery.
package loader

import (
	"context"
	"fmt"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/store"
	"go.uber.org/zap"
)

// Lister pages a reference collection. *backend.Client implements it.
type Lister interface {
	ListEntities(ctx context.Context, collection, afterID string, pageSize int) ([]backend.ListItem, error)
}

// Loader pulls each collection page by page with a last-seen-id
// cursor. The cursor is persisted per page, so an aborted load resumes
// where it stopped instead of silently continuing with stale data.
type Loader struct {
	store    store.StoreInterface
	source   Lister
	pageSize int
	log      *zap.SugaredLogger
}

// NewLoader constructs loader.
func NewLoader(st store.StoreInterface, source Lister, pageSize int, logger *zap.SugaredLogger) *Loader {
	return &Loader{store: st, source: source, pageSize: pageSize, log: logger}
}

// Run loads every collection. A failure aborts that one collection;
// the rest still load.
func (l *Loader) Run(ctx context.Context, collections []string) error {
	failed := 0
	for _, col := range collections {
		if err := l.LoadCollection(ctx, col); err != nil {
			l.log.Errorf("load %s: %v", col, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d collections failed to load", failed, len(collections))
	}
	return nil
}

// LoadCollection pages one collection until a short page signals the
// end.
func (l *Loader) LoadCollection(ctx context.Context, collection string) error {
	afterID, err := l.store.GetCursor(ctx, collection)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	total := 0
	for {
		items, err := l.source.ListEntities(ctx, collection, afterID, l.pageSize)
		if err != nil {
			return fmt.Errorf("list after %q: %w", afterID, err)
		}
		for _, it := range items {
			if err := l.store.PutDocument(ctx, collection, it.ID, string(it.Payload)); err != nil {
				return err
			}
			afterID = it.ID
		}
		if len(items) > 0 {
			if err := l.store.PutCursor(ctx, collection, afterID); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
			total += len(items)
		}
		if len(items) < l.pageSize {
			break
		}
	}
	l.log.Infof("loaded %d document(s) into %s", total, collection)
	return nil
}
