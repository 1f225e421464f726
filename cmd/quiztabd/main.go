// Command quiztabd serves the question bank over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/quiztab/internal/api/http"
	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/cache"
	"github.com/mind-engage/quiztab/internal/config"
	"github.com/mind-engage/quiztab/internal/db"
	"github.com/mind-engage/quiztab/internal/logger"
	"github.com/mind-engage/quiztab/internal/storage"
	syncx "github.com/mind-engage/quiztab/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
	}
	defer dbh.Close()

	ready := []func(context.Context) error{dbh.PingContext}

	// --- Instance cache ---
	var instances cache.Instances = cache.NewMemory(cfg.InstanceTTL)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(openCtx, cfg.RedisURL, cfg.InstanceTTL)
		if err != nil {
			log.Fatal("redis connect failed", "error", err)
		}
		defer rc.Close()
		instances = rc
		ready = append(ready, rc.HealthCheck)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal("blob store", "path", cfg.BlobBasePath, "error", err)
	}

	svc := bank.NewService(bank.NewSQLStore(dbh),
		bank.WithCache(instances),
		bank.WithBlobStore(bs),
		bank.WithEventLog(syncx.NewEventRepo(dbh, "local")),
		bank.WithLogger(log),
	)

	// --- Auth (local JWT) ---
	users, err := auth.ParseLocalUsers(cfg.LocalUsers)
	if err != nil {
		log.Fatal("LOCAL_USERS", "error", err)
	}
	if cfg.EnableLocalAuth && len(users) == 0 {
		log.Warn("local auth enabled without LOCAL_USERS; nobody can log in")
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret, users)

	r := api.NewRouter(api.Deps{
		Bank:            svc,
		Auth:            authSvc,
		Blobs:           bs,
		EnableLocalAuth: cfg.EnableLocalAuth,
		CORSOrigins:     cfg.CORSOrigins(),
		GradeLatency:    cfg.GradeLatency,
		Ready:           ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "redis", cfg.RedisURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
