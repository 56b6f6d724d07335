package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/cart"
	"github.com/richardliu001/pos-sync/internal/config"
	"github.com/richardliu001/pos-sync/internal/engine"
	"github.com/richardliu001/pos-sync/internal/logger"
	"github.com/richardliu001/pos-sync/internal/store"
	httptransport "github.com/richardliu001/pos-sync/internal/transport/http"
	"github.com/richardliu001/pos-sync/internal/uploader"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. local sqlite store
	gdb, err := gorm.Open(sqlite.Open(cfg.Sqlite.Path), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	if err := store.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis (lookup cache + cart flag)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. store, backend client, cart session
	st := store.NewStore(gdb, rdb, log)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout.Std(), log)
	session := cart.NewSession(rdb, cfg.Terminal.ID, log)

	// 6. sync engine + upload queue
	eng := engine.New(client, st, session, cfg.Sync.HeartbeatInterval.Std(), log)
	up := uploader.NewUploader(st, client, cfg.Upload.RetryInterval.Std(), cfg.Upload.MaxPermanentAttempts, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	go up.Run(ctx)

	// 7. local operator API
	api := &httptransport.API{Engine: eng, Uploader: up, Cart: session, Log: log}
	router := httptransport.NewRouter(api, cfg.RateLimit)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("terminald listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %v", err)
	}

	eng.Stop()
	log.Info("terminald stopped")
}
