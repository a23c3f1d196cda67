package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facefind/internal/api/handlers"
	"github.com/your-org/facefind/internal/api/ws"
	"github.com/your-org/facefind/internal/auth"
	"github.com/your-org/facefind/internal/indexer"
	"github.com/your-org/facefind/internal/match"
	"github.com/your-org/facefind/internal/queue"
	"github.com/your-org/facefind/internal/reindex"
	"github.com/your-org/facefind/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	Store       storage.Store
	MinIO       *storage.MinIOStore
	Producer    *queue.Producer
	Hub         *ws.Hub
	Engine      *match.Engine
	Pipeline    *indexer.Pipeline
	Coordinator *reindex.Coordinator
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Store, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// A nil *MinIOStore must stay a nil interface for the handlers' checks.
	var objects handlers.ObjectStore
	if cfg.MinIO != nil {
		objects = cfg.MinIO
	}

	// Events
	eventH := handlers.NewEventHandler(cfg.Store, objects)
	v1.POST("/events", eventH.Create)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.DELETE("/events/:id", eventH.Delete)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.Store, objects, cfg.Pipeline)
	if cfg.Producer != nil {
		photoH.SetProducer(cfg.Producer)
	}
	if cfg.Hub != nil {
		photoH.SetHub(cfg.Hub)
	}
	v1.POST("/photos", photoH.Ingest)
	v1.GET("/photos/proxy", photoH.Proxy)
	v1.DELETE("/photos/:id", photoH.Delete)
	v1.GET("/events/:id/photos", photoH.List)
	v1.POST("/events/:id/photos/bulk", photoH.BulkIngest)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Store, cfg.Engine)
	v1.POST("/search", searchH.Search)

	// Reindex
	reindexH := handlers.NewReindexHandler(cfg.Store, cfg.Coordinator)
	v1.PUT("/photos/:id/embeddings", reindexH.ReplacePhoto)
	v1.POST("/events/:id/reindex", reindexH.StartRun)
	v1.GET("/reindex/status", reindexH.RunStatus)
	v1.POST("/reindex/abort", reindexH.AbortRun)

	return r
}
