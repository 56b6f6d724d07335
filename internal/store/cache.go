package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richardliu001/pos-sync/internal/model"
)

// The redis layer is a best-effort read cache in front of sqlite. A
// cache failure never fails the caller; lookups fall back to disk.

const cacheTTL = 5 * time.Minute

func cacheKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func (s *Store) cacheGet(ctx context.Context, collection, id string) (*model.Document, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, cacheKey(collection, id)).Result()
	if err != nil {
		return nil, false
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.log.Warnf("cache decode %s/%s: %v", collection, id, err)
		return nil, false
	}
	return &doc, true
}

func (s *Store) cachePut(ctx context.Context, doc *model.Document) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(doc.Collection, doc.DocID), raw, cacheTTL).Err(); err != nil {
		s.log.Warnf("cache set %s/%s: %v", doc.Collection, doc.DocID, err)
	}
}

func (s *Store) cacheDel(ctx context.Context, collection, id string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey(collection, id)).Err(); err != nil {
		s.log.Warnf("cache del %s/%s: %v", collection, id, err)
	}
}
