package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagepress/internal/compose"
	cfgpkg "github.com/local/pagepress/internal/config"
	"github.com/local/pagepress/internal/imaging"
	"github.com/local/pagepress/internal/layout"
	"github.com/local/pagepress/internal/limiter"
	"github.com/local/pagepress/internal/metrics"
	"github.com/local/pagepress/internal/pdfverify"
	"github.com/local/pagepress/internal/pdfwriter"
	"github.com/local/pagepress/internal/queue"
	"github.com/local/pagepress/internal/scan"
	"github.com/local/pagepress/internal/storage"
	"github.com/local/pagepress/internal/store"
)

// Queue is the slice of the job queue the workers need.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Enqueue(ctx context.Context, payload []byte) error
	EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	Depths(ctx context.Context) (int64, int64, int64, error)
}

// StatusStore persists per-job status.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// ReportStore persists the finished report of each job.
type ReportStore interface {
	Save(ctx context.Context, jobID string, r *compose.Report) error
}

type Dependencies struct {
	Queue    Queue
	Status   StatusStore
	Reports  ReportStore
	Guard    *limiter.Guard
	Uploader *storage.S3Client // nil when no bucket is configured
}

type Worker struct {
	cfg  cfgpkg.Config
	deps Dependencies
	stop chan struct{}
}

func New(cfg cfgpkg.Config, deps Dependencies) *Worker {
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 2
	}
	return &Worker{cfg: cfg, deps: deps, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Worker.Concurrency; i++ {
		go w.loop(i)
	}
	go w.gauges()
	go Janitor(w.stop, w.cfg.Worker.JanitorMaxAge)
}

func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	return nil
}

func (w *Worker) loop(id int) {
	consumer := fmt.Sprintf("worker-%d", id)
	log.Info().Int("worker", id).Msg("compose worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("compose worker stopped")
			return
		default:
		}

		_, data, err := w.deps.Queue.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if data == nil {
			continue
		}

		var job queue.Job
		if err := json.Unmarshal(data, &job); err != nil {
			log.Error().Err(err).Msg("malformed job payload, dropping to DLQ")
			_ = w.deps.Queue.AddDLQ(context.Background(), data, "malformed payload")
			continue
		}

		if cancelled, _ := w.deps.Queue.IsCancelled(context.Background(), job.JobID); cancelled {
			log.Warn().Int("worker", id).Str("job_id", job.JobID).Msg("job cancelled before processing; skipping")
			continue
		}

		w.handle(id, job, data)
	}
}

func (w *Worker) handle(id int, job queue.Job, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Worker.JobTimeout)
	defer cancel()

	if w.deps.Guard != nil {
		if w.deps.Guard.InCooldown(ctx, job.InputDir) {
			log.Warn().Str("job_id", job.JobID).Str("input", job.InputDir).Msg("input in cooldown, deferring")
			_ = w.deps.Queue.EnqueueDelayed(ctx, raw, time.Now().Add(w.cfg.Worker.RetryBaseDelay))
			return
		}
		release, ok := w.deps.Guard.Allow(job.OutputPath)
		if !ok {
			log.Warn().Str("job_id", job.JobID).Str("output", job.OutputPath).Msg("output busy, deferring")
			_ = w.deps.Queue.EnqueueDelayed(ctx, raw, time.Now().Add(w.cfg.Worker.RetryBaseDelay))
			return
		}
		defer release()
	}

	start := time.Now()
	_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "processing", Progress: 0, Message: "composing", Start: &start,
		Metadata: map[string]any{"input_dir": job.InputDir, "output_path": job.OutputPath, "attempt": job.Attempt}})

	report, err := w.composeJob(ctx, job)
	if report != nil {
		_ = w.deps.Reports.Save(ctx, job.JobID, report)
	}
	if err != nil {
		w.fail(ctx, job, raw, report, err)
		return
	}

	if w.deps.Guard != nil {
		w.deps.Guard.Reset(ctx, job.InputDir)
	}

	meta := map[string]any{
		"input_dir":   job.InputDir,
		"output_path": job.OutputPath,
		"pages":       report.PagesWritten,
		"warnings":    report.Warnings,
		"failures":    report.Failures,
	}

	if job.UploadTo != "" || (w.deps.Uploader != nil && w.cfg.Storage.Bucket != "") {
		if url, uerr := w.upload(ctx, job); uerr != nil {
			log.Error().Err(uerr).Str("job_id", job.JobID).Msg("result upload failed")
			metrics.IncUpload("error")
			meta["upload_error"] = uerr.Error()
		} else if url != "" {
			metrics.IncUpload("ok")
			meta["result_s3_url"] = url
		}
	}

	end := time.Now()
	_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "success", Progress: 100, Message: "completed", End: &end, Metadata: meta})
	metrics.IncJob("success")
	log.Info().Int("worker", id).Str("job_id", job.JobID).Int("pages", report.PagesWritten).Msg("job completed")
}

// composeJob runs the actual batch for one job. Decoding is not parallelized:
// pages must hit the writer in input order and the writer is a single
// append-only stream.
func (w *Worker) composeJob(ctx context.Context, job queue.Job) (*compose.Report, error) {
	sizeName := job.PageSize
	if sizeName == "" {
		sizeName = w.cfg.Page.Size
	}
	size, err := layout.ParsePageSize(sizeName)
	if err != nil {
		return nil, err
	}
	area := layout.NewPageArea(size, job.Margin)

	paths, err := scan.ListImages(job.InputDir)
	if err != nil {
		return nil, err
	}

	doc, err := pdfwriter.New(job.OutputPath, area, pdfwriter.Options{MaxEdge: w.cfg.Page.MaxEdge})
	if err != nil {
		return nil, err
	}

	comp := compose.New(imaging.NewProber())
	comp.OnPage = func(done, total int, _ compose.PageOutcome) {
		if total > 0 {
			_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "processing",
				Progress: done * 100 / total, Message: fmt.Sprintf("page %d/%d", done, total)})
		}
	}

	report, err := comp.Run(ctx, area, paths, doc)
	if err != nil {
		return report, err
	}

	diag, verr := pdfverify.Verify(job.OutputPath, report.PagesWritten)
	if verr != nil {
		log.Error().Err(verr).Str("job_id", job.JobID).Msg("output verification failed")
		return report, verr
	}
	log.Debug().Str("job_id", job.JobID).Int64("ms", diag.DurationMs).Msg("output verified")
	return report, nil
}

func (w *Worker) upload(ctx context.Context, job queue.Job) (string, error) {
	if w.deps.Uploader == nil {
		return "", fmt.Errorf("upload requested but no bucket configured")
	}
	key := job.UploadTo
	if key == "" {
		key = fmt.Sprintf("%s/%s/%s", w.cfg.Storage.Prefix, job.JobID, filepath.Base(job.OutputPath))
	} else if bucket, k, err := storage.ParseURL(key); err == nil {
		if bucket != w.cfg.Storage.Bucket {
			log.Warn().Str("bucket", bucket).Msg("upload bucket differs from configured bucket, using configured one")
		}
		key = k
	}
	f, err := os.Open(job.OutputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return w.deps.Uploader.UploadPDF(ctx, key, f, w.cfg.Storage.Passphrase)
}

func (w *Worker) fail(ctx context.Context, job queue.Job, raw []byte, report *compose.Report, err error) {
	end := time.Now()
	meta := map[string]any{"input_dir": job.InputDir, "output_path": job.OutputPath, "error": err.Error()}
	if report != nil {
		meta["failures"] = report.Failures
	}

	switch {
	case isFatalError(err):
		_ = w.deps.Queue.AddDLQ(ctx, raw, err.Error())
		_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "failed", Progress: 100, Message: err.Error(), End: &end, Metadata: meta})
		metrics.IncJob("dlq")
		log.Error().Err(err).Str("job_id", job.JobID).Msg("job failed permanently")

	case job.Attempt < w.cfg.Worker.MaxAttempts:
		if w.deps.Guard != nil && !isTimeoutError(err) {
			w.deps.Guard.Cooldown(ctx, job.InputDir)
		}
		job.Attempt++
		payload, _ := json.Marshal(job)
		delay := w.cfg.Worker.RetryBaseDelay * time.Duration(1<<(job.Attempt-1))
		_ = w.deps.Queue.EnqueueDelayed(ctx, payload, time.Now().Add(delay))
		_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "retrying", Progress: 0,
			Message: fmt.Sprintf("attempt %d failed: %v", job.Attempt-1, err), Metadata: meta})
		metrics.IncJob("retry")
		log.Warn().Err(err).Str("job_id", job.JobID).Int("attempt", job.Attempt).Dur("delay", delay).Msg("job scheduled for retry")

	default:
		_ = w.deps.Queue.AddDLQ(ctx, raw, err.Error())
		_ = w.deps.Status.Set(ctx, job.JobID, store.Status{Status: "failed", Progress: 100,
			Message: fmt.Sprintf("gave up after %d attempts: %v", job.Attempt, err), End: &end, Metadata: meta})
		metrics.IncJob("dlq")
		log.Error().Err(err).Str("job_id", job.JobID).Int("attempts", job.Attempt).Msg("job exhausted retries")
	}
}

// gauges periodically exports queue depths.
func (w *Worker) gauges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if s, d, q, err := w.deps.Queue.Depths(ctx); err == nil {
				metrics.SetQueueDepth("stream", s)
				metrics.SetQueueDepth("delayed", d)
				metrics.SetQueueDepth("dlq", q)
			}
			cancel()
		}
	}
}
