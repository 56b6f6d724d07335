package cart

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Session tracks whether a sale is currently open on this terminal.
// The flag lives in redis so it survives a restart of the sync daemon:
// a shadow record staged for a still-open sale stays pinned across the
// restart. The sync engine only ever reads the flag; the checkout flow
// owns the writes.
type Session struct {
	rdb        *redis.Client
	terminalID string
	log        *zap.SugaredLogger
}

// NewSession constructs session.
func NewSession(rdb *redis.Client, terminalID string, logger *zap.SugaredLogger) *Session {
	return &Session{rdb: rdb, terminalID: terminalID, log: logger}
}

func (s *Session) key() string {
	return fmt.Sprintf("cart:open:%s", s.terminalID)
}

// Open marks a sale as in progress.
func (s *Session) Open(ctx context.Context) error {
	if err := s.rdb.Set(ctx, s.key(), "1", 0).Err(); err != nil {
		return err
	}
	s.log.Debugf("sale opened on terminal %s", s.terminalID)
	return nil
}

// Close marks the sale terminal-state (completed, held or voided).
func (s *Session) Close(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key()).Err(); err != nil {
		return err
	}
	s.log.Debugf("sale closed on terminal %s", s.terminalID)
	return nil
}

// IsOpen reports whether a sale is in progress.
func (s *Session) IsOpen(ctx context.Context) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
