package pdfwriter

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/pagepress/internal/imaging"
	"github.com/local/pagepress/internal/layout"
)

// Document writes one PDF with a fixed page size, one image per page. It
// implements compose.Writer. The underlying stream is append-only and owned by
// a single composer; Draw paints onto the current page, NewPage closes it,
// Finalize writes the file.
type Document struct {
	pdf      *gofpdf.Fpdf
	area     layout.PageArea
	outPath  string
	maxEdge  int
	pageOpen bool
	pages    int
}

// Options configures a Document.
type Options struct {
	// MaxEdge bounds the pixel size of embedded images; larger sources are
	// downscaled before embedding. Zero disables the bound.
	MaxEdge int
}

// New creates a writer targeting outPath with pages sized by area.
func New(outPath string, area layout.PageArea, opts Options) (*Document, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: area.Width, Ht: area.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	return &Document{pdf: pdf, area: area, outPath: outPath, maxEdge: opts.MaxEdge}, nil
}

// Draw paints the image at pl onto the current page, opening one if needed.
// The image is painted at its full scaled height and clipped to the printable
// rect, so any overflow is cropped from the bottom.
func (d *Document) Draw(path string, pl layout.Placement) error {
	if !d.pageOpen {
		d.pdf.AddPage()
		d.pageOpen = true
	}

	embedPath, cleanup, err := imaging.PrepareForEmbed(path, d.maxEdge)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", path, err)
	}
	defer cleanup()

	// Engine placement uses a bottom-left origin; gofpdf measures from the
	// top-left. The clip top coincides with the image top.
	top := d.area.Height - pl.Y - pl.RenderHeight

	d.pdf.ClipRect(pl.X, top, pl.RenderWidth, pl.RenderHeight, false)
	d.pdf.ImageOptions(embedPath, pl.X, top, pl.RenderWidth, pl.ScaledHeight, false,
		gofpdf.ImageOptions{ReadDpi: false}, 0, "")
	d.pdf.ClipEnd()

	if d.pdf.Err() {
		return d.pdf.Error()
	}
	return nil
}

// NewPage closes the current page. The next Draw opens a fresh one.
func (d *Document) NewPage() error {
	if d.pdf.Err() {
		return d.pdf.Error()
	}
	d.pageOpen = false
	d.pages++
	return nil
}

// Finalize writes the document to disk and cross-checks the page count with
// pdfcpu. Must be called exactly once.
func (d *Document) Finalize() error {
	if err := d.pdf.OutputFileAndClose(d.outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if d.pages > 0 {
		n, err := api.PageCountFile(d.outPath)
		if err != nil {
			return fmt.Errorf("pdf page count failed: %w", err)
		}
		if n != d.pages {
			return fmt.Errorf("output has %d pages, expected %d", n, d.pages)
		}
	}
	log.Info().Str("output", d.outPath).Int("pages", d.pages).Msg("pdf written")
	return nil
}

// Pages returns the number of pages closed so far.
func (d *Document) Pages() int { return d.pages }
