package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesComposed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagepress",
			Name:      "pages_composed_total",
			Help:      "Total pages composed by result (success, warning, failure)",
		},
		[]string{"result"},
	)

	batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagepress",
			Name:      "batches_total",
			Help:      "Total compose batches by result (ok, empty, cancelled, writer_error)",
		},
		[]string{"result"},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagepress",
			Name:      "batch_duration_seconds",
			Help:      "Duration of compose batches",
			Buckets:   prometheus.DefBuckets,
		},
	)

	overflowPercent = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagepress",
			Name:      "overflow_percent",
			Help:      "Cropped share of scaled image height for warning pages",
			Buckets:   []float64{1, 5, 10, 25, 50, 75, 90},
		},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagepress",
			Name:      "jobs_processed_total",
			Help:      "Compose jobs processed by the dispatcher, by result (success, retry, dlq)",
		},
		[]string{"result"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagepress",
			Name:      "result_uploads_total",
			Help:      "Result uploads to S3 by result",
		},
		[]string{"result"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pagepress",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesComposed, batches, batchDuration, overflowPercent, jobsProcessed, uploads, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncPage(result string)  { pagesComposed.WithLabelValues(result).Inc() }
func IncBatch(result string) { batches.WithLabelValues(result).Inc() }

func ObserveBatchDuration(d time.Duration) { batchDuration.Observe(d.Seconds()) }
func ObserveOverflow(pct float64)          { overflowPercent.Observe(pct) }

func IncJob(result string)    { jobsProcessed.WithLabelValues(result).Inc() }
func IncUpload(result string) { uploads.WithLabelValues(result).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
