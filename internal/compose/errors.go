package compose

import (
	"errors"
	"fmt"
)

// ErrNoImages is returned when a batch is started with zero input images.
// It is a batch-level failure, distinct from per-image failures recorded in
// the report.
var ErrNoImages = errors.New("no image files found")

// InvalidImageError marks an image whose reported pixel dimensions make the
// scale computation undefined. Fatal to that image only.
type InvalidImageError struct {
	Identifier string
	Width      int
	Height     int
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image %s: pixel dimensions %dx%d", e.Identifier, e.Width, e.Height)
}

// DecodeError wraps a failure of the external image prober. Fatal to that
// image only.
type DecodeError struct {
	Identifier string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Identifier, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriterError wraps a failure of the page writer. The output stream is in an
// unknown state afterwards, so it aborts the remaining batch.
type WriterError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *WriterError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("writer %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("writer %s (%s): %v", e.Op, e.Identifier, e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }
