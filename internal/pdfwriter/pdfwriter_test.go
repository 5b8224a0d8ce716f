package pdfwriter

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/image/bmp"

	"github.com/local/pagepress/internal/compose"
	"github.com/local/pagepress/internal/imaging"
	"github.com/local/pagepress/internal/layout"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 3), B: 120, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentWritesPages(t *testing.T) {
	dir := t.TempDir()
	img1 := filepath.Join(dir, "one.png")
	img2 := filepath.Join(dir, "two.png")
	writePNG(t, img1, 120, 80)
	writePNG(t, img2, 60, 200)
	out := filepath.Join(dir, "out.pdf")

	area := layout.NewPageArea(layout.Letter, 20)
	doc, err := New(out, area, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, p := range []string{img1, img2} {
		pl, err := layout.ComputePlacement(area, probe(t, p))
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Draw(p, pl); err != nil {
			t.Fatalf("Draw(%s): %v", p, err)
		}
		if err := doc.NewPage(); err != nil {
			t.Fatalf("NewPage: %v", err)
		}
	}
	if err := doc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if doc.Pages() != 2 {
		t.Errorf("Pages() = %d, want 2", doc.Pages())
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 2 {
		t.Errorf("output has %d pages, want 2", n)
	}
}

func TestDocumentCropsOverflow(t *testing.T) {
	dir := t.TempDir()
	tall := filepath.Join(dir, "tall.png")
	writePNG(t, tall, 100, 600)
	out := filepath.Join(dir, "out.pdf")

	area := layout.NewPageArea(layout.Letter, 20)
	doc, err := New(out, area, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pl, err := layout.ComputePlacement(area, probe(t, tall))
	if err != nil {
		t.Fatal(err)
	}
	if pl.OverflowHeight <= 0 {
		t.Fatalf("test image does not overflow: %+v", pl)
	}
	if err := doc.Draw(tall, pl); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := doc.NewPage(); err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := doc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestDocumentEmbedsBMP(t *testing.T) {
	dir := t.TempDir()
	// bmp goes through the re-encode path before embedding
	src := filepath.Join(dir, "src.png")
	writePNG(t, src, 50, 50)
	bmpPath := filepath.Join(dir, "pic.bmp")
	reencodeToBMP(t, src, bmpPath)
	out := filepath.Join(dir, "out.pdf")

	area := layout.NewPageArea(layout.Letter, 0)
	doc, err := New(out, area, Options{MaxEdge: 4096})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pl, err := layout.ComputePlacement(area, probe(t, bmpPath))
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Draw(bmpPath, pl); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := doc.NewPage(); err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := doc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestDocumentEmptyFinalize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.pdf")
	doc, err := New(out, layout.NewPageArea(layout.Letter, 20), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// zero pages: gofpdf still writes a file, the count check is skipped
	if err := doc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if doc.Pages() != 0 {
		t.Errorf("Pages() = %d, want 0", doc.Pages())
	}
}

func TestDocumentZeroMargins(t *testing.T) {
	// placement owns the margins; the underlying pdf must not add its own
	doc, err := New(filepath.Join(t.TempDir(), "m.pdf"), layout.NewPageArea(layout.Letter, 20), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l, top, r, b := doc.pdf.GetMargins()
	if l != 0 || top != 0 || r != 0 || b != 0 {
		t.Errorf("pdf margins = %g/%g/%g/%g, want all zero", l, top, r, b)
	}
}

func TestDocumentRejectsInvalidArea(t *testing.T) {
	bad := layout.PageArea{Width: 100, Height: 100, MarginLeft: 60}
	if _, err := New(filepath.Join(t.TempDir(), "x.pdf"), bad, Options{}); err == nil {
		t.Fatal("New with invalid area expected error")
	}
}

// TestDocumentWithComposer drives the writer through the real composer, the
// way the CLI does.
func TestDocumentWithComposer(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)
	writePNG(t, filepath.Join(dir, "b.png"), 100, 900)
	out := filepath.Join(dir, "out.pdf")

	area := layout.NewPageArea(layout.Letter, 20)
	doc, err := New(out, area, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	paths := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	report, err := compose.New(imaging.NewProber()).Run(context.Background(), area, paths, doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PagesWritten != 2 {
		t.Errorf("pages written = %d, want 2", report.PagesWritten)
	}
	if report.Warnings != 1 {
		t.Errorf("warnings = %d, want 1 (tall image crops)", report.Warnings)
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 2 {
		t.Errorf("output has %d pages, want 2", n)
	}
}

func probe(t *testing.T, path string) layout.ImageDescriptor {
	t.Helper()
	desc, err := imaging.NewProber().Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	return desc
}

func reencodeToBMP(t *testing.T, srcPath, dstPath string) {
	t.Helper()
	f, err := os.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if err := bmp.Encode(out, img); err != nil {
		t.Fatal(err)
	}
}
