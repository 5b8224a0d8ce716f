package compose

import "time"

// PageOutcome records what happened to a single input image.
type PageOutcome struct {
	Identifier      string   `json:"identifier"`
	Status          Status   `json:"status"`
	OverflowPercent *float64 `json:"overflow_percent,omitempty"`
	ErrorDetail     string   `json:"error_detail,omitempty"`
}

// Report is the ordered, append-only log of per-image outcomes produced by one
// batch run. It is the single source of truth for what happened to each image.
type Report struct {
	Outcomes     []PageOutcome `json:"outcomes"`
	PagesWritten int           `json:"pages_written"`
	Warnings     int           `json:"warnings"`
	Failures     int           `json:"failures"`
	Started      time.Time     `json:"started"`
	Finished     time.Time     `json:"finished"`
}

func (r *Report) append(o PageOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusWarning:
		r.Warnings++
	case StatusFailure:
		r.Failures++
	}
}

// Clean reports whether every image made it onto a page without cropping.
func (r *Report) Clean() bool { return r.Warnings == 0 && r.Failures == 0 }
