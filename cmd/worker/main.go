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
	"path"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facefind/internal/config"
	"github.com/your-org/facefind/internal/extract"
	"github.com/your-org/facefind/internal/indexer"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/observability"
	"github.com/your-org/facefind/internal/queue"
	"github.com/your-org/facefind/internal/storage"
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

	slog.Info("starting facefind ingest worker",
		"workers", cfg.Ingest.WorkerCount,
		"extractor", cfg.Extractor.URL,
	)

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	extractor := extract.NewClient(cfg.Extractor.URL, cfg.Matching.Dimension)
	pipeline := indexer.NewPipeline(db, minioStore, cfg.Ingest.MaxImageWidth)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming bulk ingest tasks
	err = consumer.ConsumeIngestTasks(ctx, "ingest-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.IngestTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal ingest task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := processTask(ctx, task, minioStore, extractor, pipeline, producer); err != nil {
			return fmt.Errorf("process task %s: %w", task.TaskID, err)
		}

		return nil
	}, cfg.Ingest.WorkerCount)
	if err != nil {
		slog.Error("start ingest consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// processTask fetches the uploaded object, extracts its faces, and
// indexes photo plus embeddings in one commit.
func processTask(ctx context.Context, task models.IngestTask, minioStore *storage.MinIOStore, extractor extract.Extractor, pipeline *indexer.Pipeline, producer *queue.Producer) error {
	data, err := minioStore.GetObject(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch object %s: %w", task.ObjectKey, err)
	}

	faces, err := extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract faces: %w", err)
	}

	embeddings := make([]models.NewEmbedding, 0, len(faces))
	for _, f := range faces {
		embeddings = append(embeddings, models.NewEmbedding{
			Vector:      f.Embedding,
			QualityHash: f.QualityHash,
		})
	}

	photo, err := pipeline.Index(ctx, indexer.Image{
		EventID:     task.EventID,
		Filename:    path.Base(task.ObjectKey),
		ContentType: task.ContentType,
		Data:        data,
		Embeddings:  embeddings,
		Private:     task.Private,
	})
	if err != nil {
		return fmt.Errorf("index photo: %w", err)
	}

	indexed := models.PhotoIndexed{
		PhotoID:   photo.ID,
		EventID:   photo.EventID,
		URL:       photo.URL,
		FaceCount: len(embeddings),
		Private:   photo.Private,
		Timestamp: time.Now(),
	}
	if err := producer.PublishPhotoIndexed(ctx, photo.EventID.String(), indexed); err != nil {
		slog.Warn("publish photo indexed", "photo_id", photo.ID, "error", err)
	}

	return nil
}
