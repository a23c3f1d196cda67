package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facefind",
		Name:      "photos_indexed_total",
		Help:      "Total number of photos added to the index",
	}, []string{"event_id"})

	FacesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facefind",
		Name:      "faces_indexed_total",
		Help:      "Total number of face embeddings stored",
	}, []string{"event_id"})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facefind",
		Name:      "ingest_failures_total",
		Help:      "Total number of images that failed ingestion",
	}, []string{"event_id"})

	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facefind",
		Name:      "searches_total",
		Help:      "Total number of probe searches",
	}, []string{"event_id"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facefind",
		Name:      "search_duration_seconds",
		Help:      "Duration of candidate scan and matching",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	ReindexProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facefind",
		Name:      "reindex_progress",
		Help:      "Photos processed so far in the active reindex run",
	}, []string{"event_id"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facefind",
		Name:      "queue_depth",
		Help:      "Number of pending ingest tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facefind",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facefind",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
