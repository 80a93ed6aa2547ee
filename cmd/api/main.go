package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/devroom-labs/devroom-backend/config"
	"github.com/devroom-labs/devroom-backend/internal/ai"
	"github.com/devroom-labs/devroom-backend/internal/auth"
	"github.com/devroom-labs/devroom-backend/internal/bootstrap"
	"github.com/devroom-labs/devroom-backend/internal/collab"
	cronjob "github.com/devroom-labs/devroom-backend/internal/cron"
	"github.com/devroom-labs/devroom-backend/internal/db"
	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/projects"
	"github.com/devroom-labs/devroom-backend/internal/realtime"
	"github.com/devroom-labs/devroom-backend/internal/redisconn"
	"github.com/devroom-labs/devroom-backend/internal/sandbox"
)

// sandboxBasePort is the first port handed to local sandbox instances.
const sandboxBasePort = 9100

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	rdb, err := redisconn.Open(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	authClient, err := auth.InitializeFirebase(&cfg.Firebase)
	if err != nil {
		log.Fatalf("firebase: %v", err)
	}

	orchestrator, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("ai orchestrator: %v", err)
	}

	projectRepo := projects.NewRepo(database.Pool)
	trees := filetree.NewStore(projectRepo)
	if cfg.Archive.Bucket != "" {
		objectStore, err := filetree.NewS3ObjectStore(ctx, cfg.Archive.Bucket)
		if err != nil {
			log.Fatalf("snapshot archive: %v", err)
		}
		trees.WithArchiver(filetree.NewSnapshotArchiver(objectStore, cfg.Archive.Prefix))
	}

	hub := realtime.NewHub().WithEventMirror(realtime.NewEventMirror(rdb))

	var registry *collab.Registry

	var nextPort int64 = sandboxBasePort
	pool := sandbox.NewPool(func(projectID string) (sandbox.Runtime, error) {
		port := int(atomic.AddInt64(&nextPort, 1))
		return sandbox.NewLocalRuntime(cfg.Sandbox.WorkDir, projectID, port, func(port int, url string) {
			registry.SandboxReady(projectID, port, url)
		})
	})

	registry = collab.NewRegistry(collab.Deps{
		Broadcast:  hub,
		Generator:  orchestrator,
		Trees:      trees,
		Sandboxes:  pool,
		GenTimeout: cfg.AI.GenTimeout,
	})
	defer registry.Close()
	defer pool.TeardownAll()

	scheduler := cronjob.NewScheduler(cfg.Sandbox.IdleTTL, registry, pool, orchestrator)
	scheduler.Start()
	defer scheduler.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    "devroom-backend",
		Version:        cfg.App.Version,
		DB:             database.Pool,
		Redis:          rdb,
		AuthClient:     authClient,
		Hub:            hub,
		Registry:       registry,
		Trees:          trees,
		CallbackSecret: cfg.Sandbox.CallbackSecret,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("devroom-backend listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
