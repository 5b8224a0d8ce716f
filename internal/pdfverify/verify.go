package pdfverify

import (
	"errors"
	"fmt"
	"time"
)

// PageProbe captures the result of probing a single output page.
type PageProbe struct {
	PageIndex int     `json:"page_index"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Err       string  `json:"err,omitempty"`
}

// Diagnostics describes one verification run over a written PDF.
type Diagnostics struct {
	FilePath   string      `json:"file_path"`
	TotalPages int         `json:"total_pages"`
	WantPages  int         `json:"want_pages"`
	Probes     []PageProbe `json:"probes"`
	OK         bool        `json:"ok"`
	DurationMs int64       `json:"duration_ms"`
}

// Doc abstracts an opened PDF document.
type Doc interface {
	NumPage() int
	PageSize(i int) (w, h float64, err error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in doc_open_fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the default opener, useful for tests or alternate backends.
func setDefaultOpener(o Opener) { defaultOpener = o }

// Verify opens the written PDF and checks that it holds exactly wantPages
// pages and that every page is readable. It is a sanity pass over the writer's
// output, not a full validation.
func Verify(path string, wantPages int) (*Diagnostics, error) {
	if defaultOpener == nil {
		return nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := defaultOpener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	diag := &Diagnostics{
		FilePath:   path,
		TotalPages: total,
		WantPages:  wantPages,
		OK:         total == wantPages,
	}

	for i := 0; i < total; i++ {
		probe := PageProbe{PageIndex: i}
		w, h, perr := d.PageSize(i)
		if perr != nil {
			probe.Err = perr.Error()
			diag.OK = false
		} else {
			probe.Width = w
			probe.Height = h
		}
		diag.Probes = append(diag.Probes, probe)
	}

	diag.DurationMs = time.Since(start).Milliseconds()
	if !diag.OK {
		return diag, fmt.Errorf("verification failed: %d pages, want %d", total, wantPages)
	}
	return diag, nil
}
