package imaging

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, nil)
	case ".gif":
		err = gif.Encode(f, img, nil)
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		t.Fatalf("no encoder for %s", path)
	}
	if err != nil {
		t.Fatal(err)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.jpg", "c.gif", "d.bmp"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeImage(t, path, 30, 20)

			desc, err := NewProber().Probe(path)
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if desc.PixelWidth != 30 || desc.PixelHeight != 20 {
				t.Errorf("dimensions = %dx%d, want 30x20", desc.PixelWidth, desc.PixelHeight)
			}
			if desc.Identifier != path {
				t.Errorf("identifier = %q, want %q", desc.Identifier, path)
			}
		})
	}
}

func TestProbeCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewProber().Probe(path); err == nil {
		t.Fatal("Probe(corrupt) expected error")
	}
}

func TestProbeMissing(t *testing.T) {
	if _, err := NewProber().Probe(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("Probe(missing) expected error")
	}
}

func TestPrepareForEmbedPassthrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	writeImage(t, path, 100, 50)

	got, cleanup, err := PrepareForEmbed(path, 4096)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	defer cleanup()
	if got != path {
		t.Errorf("embed path = %q, want original %q", got, path)
	}
}

func TestPrepareForEmbedBMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.bmp")
	writeImage(t, path, 40, 30)

	got, cleanup, err := PrepareForEmbed(path, 4096)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	if got == path {
		t.Fatal("bmp was not re-encoded")
	}
	if filepath.Ext(got) != ".png" {
		t.Errorf("embed path %q, want .png temp", got)
	}
	if !strings.HasPrefix(filepath.Base(got), TempPrefix) {
		t.Errorf("temp name %q missing prefix %q", filepath.Base(got), TempPrefix)
	}

	desc, err := NewProber().Probe(got)
	if err != nil {
		t.Fatalf("probe re-encoded image: %v", err)
	}
	if desc.PixelWidth != 40 || desc.PixelHeight != 30 {
		t.Errorf("re-encoded dimensions = %dx%d, want 40x30", desc.PixelWidth, desc.PixelHeight)
	}

	cleanup()
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Errorf("cleanup left temp file behind: %v", err)
	}
}

func TestPrepareForEmbedDownscale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writeImage(t, path, 200, 100)

	got, cleanup, err := PrepareForEmbed(path, 50)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	defer cleanup()
	if got == path {
		t.Fatal("oversized image was not re-encoded")
	}

	desc, err := NewProber().Probe(got)
	if err != nil {
		t.Fatalf("probe downscaled image: %v", err)
	}
	if desc.PixelWidth != 50 || desc.PixelHeight != 25 {
		t.Errorf("downscaled dimensions = %dx%d, want 50x25", desc.PixelWidth, desc.PixelHeight)
	}
}

func TestPrepareForEmbedNoLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "any.jpg")
	writeImage(t, path, 300, 300)

	got, _, err := PrepareForEmbed(path, 0)
	if err != nil {
		t.Fatalf("PrepareForEmbed: %v", err)
	}
	if got != path {
		t.Errorf("embed path = %q, want original with no edge limit", got)
	}
}
