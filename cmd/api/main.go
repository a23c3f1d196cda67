package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facefind/internal/api"
	"github.com/your-org/facefind/internal/api/ws"
	"github.com/your-org/facefind/internal/config"
	"github.com/your-org/facefind/internal/extract"
	"github.com/your-org/facefind/internal/indexer"
	"github.com/your-org/facefind/internal/match"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/observability"
	"github.com/your-org/facefind/internal/queue"
	"github.com/your-org/facefind/internal/reindex"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facefind API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcast indexed-photo events from the worker via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create photo event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumePhotoEvents(ctx, "api-photo-events", func(ctx context.Context, msg jetstream.Msg) error {
		var indexed models.PhotoIndexed
		if err := json.Unmarshal(msg.Data(), &indexed); err != nil {
			return err
		}
		if indexed.Private {
			return nil
		}
		hub.BroadcastEvent(&dto.WSEvent{
			Type:    "photo_indexed",
			EventID: indexed.EventID,
			Data: dto.PhotoResponse{
				ID:        indexed.PhotoID,
				EventID:   indexed.EventID,
				URL:       indexed.URL,
				Private:   indexed.Private,
				CreatedAt: indexed.Timestamp.Format("2006-01-02T15:04:05Z"),
			},
		})
		return nil
	})
	if err != nil {
		slog.Warn("start photo event consumer", "error", err)
	}

	// Matching engine and ingest pipeline
	engine := match.NewEngine(cfg.Matching.Threshold)
	pipeline := indexer.NewPipeline(db, minioStore, cfg.Ingest.MaxImageWidth)

	// Server-side reindex, progress mirrored to WebSocket clients
	extractor := extract.NewClient(cfg.Extractor.URL, cfg.Matching.Dimension)
	coordinator := reindex.NewCoordinator(db, minioStore, extractor, func(s reindex.Status) {
		if s.EventID == nil {
			return
		}
		hub.BroadcastEvent(&dto.WSEvent{
			Type:    "reindex_progress",
			EventID: *s.EventID,
			Data:    s,
		})
	})

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		Store:       db,
		MinIO:       minioStore,
		Producer:    producer,
		Hub:         hub,
		Engine:      engine,
		Pipeline:    pipeline,
		Coordinator: coordinator,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	coordinator.Abort()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
