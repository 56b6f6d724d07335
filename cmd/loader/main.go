package main

import (
	"context"
	"fmt"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/config"
	"github.com/richardliu001/pos-sync/internal/loader"
	"github.com/richardliu001/pos-sync/internal/logger"
	"github.com/richardliu001/pos-sync/internal/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// One-shot bulk load of the reference collections into the terminal's
// local store. Run before first use or to rebuild a terminal.
func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(sqlite.Open(cfg.Sqlite.Path), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	if err := store.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	st := store.NewStore(gdb, nil, log)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout.Std(), log)

	l := loader.NewLoader(st, client, cfg.Loader.PageSize, log)
	log.Infof("bulk load starting (%d collections)", len(cfg.Loader.Collections))
	if err := l.Run(context.Background(), cfg.Loader.Collections); err != nil {
		log.Fatalf("bulk load: %v", err)
	}
	log.Info("bulk load complete")
}
