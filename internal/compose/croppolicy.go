package compose

import (
	"math"

	"github.com/local/pagepress/internal/layout"
)

// Status classifies the outcome of one page.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailure Status = "failure"
)

// Classify decides whether a placement overflows the available page height.
// An overflowing image is still drawn (the writer clips it from the bottom);
// classification only records how much of it is lost. Classify never fails.
//
// The returned percent is the cropped share of the scaled height, rounded to
// one decimal place. It is nil for StatusSuccess.
func Classify(pl layout.Placement) (Status, *float64) {
	if pl.OverflowHeight <= 0 {
		return StatusSuccess, nil
	}
	pct := math.Round(pl.OverflowHeight/pl.ScaledHeight*1000) / 10
	return StatusWarning, &pct
}
