package compose

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagepress/internal/layout"
	"github.com/local/pagepress/internal/metrics"
)

// Prober inspects a source image and yields its descriptor. Decoding is an
// external concern; the composer only ever sees dimensions.
type Prober interface {
	Probe(path string) (layout.ImageDescriptor, error)
}

// Writer is the external document writer. It is an append-only stream with a
// single active document: Draw paints onto the current page, NewPage closes
// it, Finalize closes the document. The composer is its sole caller.
type Writer interface {
	Draw(path string, pl layout.Placement) error
	NewPage() error
	Finalize() error
}

// Composer runs one batch: one output page per input image, in input order.
type Composer struct {
	prober Prober

	// OnPage, when set, is called after each outcome is recorded. Used for
	// CLI progress and job status updates.
	OnPage func(done, total int, outcome PageOutcome)
}

func New(prober Prober) *Composer {
	return &Composer{prober: prober}
}

// Run composes paths onto pages of area through w.
//
// Per-image failures (probe errors, invalid dimensions) are recorded in the
// report and never abort the batch. Batch-level failures do: zero inputs
// return ErrNoImages, writer failures return a WriterError because the output
// stream is in an unknown state afterwards. The pages written preserve the
// order of paths; the caller supplies them already sorted and Run never
// reorders.
func (c *Composer) Run(ctx context.Context, area layout.PageArea, paths []string, w Writer) (*Report, error) {
	report := &Report{Started: time.Now()}

	if err := area.Validate(); err != nil {
		report.Finished = time.Now()
		return report, err
	}
	if len(paths) == 0 {
		report.Finished = time.Now()
		metrics.IncBatch("empty")
		return report, ErrNoImages
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			report.Finished = time.Now()
			metrics.IncBatch("cancelled")
			return report, err
		}

		outcome, err := c.composeOne(area, path, w)
		report.append(outcome)
		if c.OnPage != nil {
			c.OnPage(i+1, len(paths), outcome)
		}
		if err != nil {
			// Writer failure: the stream is unusable, stop here.
			report.Finished = time.Now()
			metrics.IncBatch("writer_error")
			return report, err
		}
		if outcome.Status != StatusFailure {
			report.PagesWritten++
		}
	}

	if err := w.Finalize(); err != nil {
		report.Finished = time.Now()
		metrics.IncBatch("writer_error")
		return report, &WriterError{Op: "finalize", Err: err}
	}

	report.Finished = time.Now()
	metrics.IncBatch("ok")
	metrics.ObserveBatchDuration(report.Finished.Sub(report.Started))
	log.Info().
		Int("images", len(paths)).
		Int("pages", report.PagesWritten).
		Int("warnings", report.Warnings).
		Int("failures", report.Failures).
		Msg("batch composed")
	return report, nil
}

// composeOne processes a single image. It returns a non-nil error only for
// writer failures; probe and placement problems come back as a Failure
// outcome.
func (c *Composer) composeOne(area layout.PageArea, path string, w Writer) (PageOutcome, error) {
	img, err := c.prober.Probe(path)
	if err != nil {
		log.Error().Err(err).Str("image", path).Msg("probe failed, skipping image")
		metrics.IncPage("failure")
		return PageOutcome{Identifier: path, Status: StatusFailure, ErrorDetail: (&DecodeError{Identifier: path, Err: err}).Error()}, nil
	}

	pl, err := layout.ComputePlacement(area, img)
	if err != nil {
		log.Error().Err(err).Str("image", path).Msg("placement failed, skipping image")
		metrics.IncPage("failure")
		ierr := &InvalidImageError{Identifier: img.Identifier, Width: img.PixelWidth, Height: img.PixelHeight}
		return PageOutcome{Identifier: path, Status: StatusFailure, ErrorDetail: ierr.Error()}, nil
	}

	status, pct := Classify(pl)
	outcome := PageOutcome{Identifier: path, Status: status, OverflowPercent: pct}
	if status == StatusWarning {
		log.Warn().
			Str("image", path).
			Float64("overflow_percent", *pct).
			Msg("image cropped from bottom to fit page")
		metrics.ObserveOverflow(*pct)
	}

	if err := w.Draw(path, pl); err != nil {
		return outcome, &WriterError{Op: "draw", Identifier: path, Err: err}
	}
	if err := w.NewPage(); err != nil {
		return outcome, &WriterError{Op: "new page", Identifier: path, Err: err}
	}
	metrics.IncPage(string(status))
	log.Debug().Str("image", path).Float64("render_h", pl.RenderHeight).Msg("page written")
	return outcome, nil
}
