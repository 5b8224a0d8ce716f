package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"

	"github.com/local/pagepress/internal/layout"
)

// TempPrefix marks temp files produced by PrepareForEmbed so the janitor can
// sweep leftovers.
const TempPrefix = "ppimg-"

// FileProber reads image headers from the filesystem. It yields dimensions in
// a canonical color space; pixel data is never inspected by the composer.
type FileProber struct{}

func NewProber() *FileProber { return &FileProber{} }

// Probe decodes only the image header and returns the descriptor. Supported
// formats: png, jpeg, gif, bmp.
func (FileProber) Probe(path string) (layout.ImageDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return layout.ImageDescriptor{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return layout.ImageDescriptor{}, fmt.Errorf("decode config: %w", err)
	}
	log.Debug().Str("image", path).Str("format", format).Int("w", cfg.Width).Int("h", cfg.Height).Msg("probed image")
	return layout.ImageDescriptor{
		Identifier:  path,
		PixelWidth:  cfg.Width,
		PixelHeight: cfg.Height,
	}, nil
}

// PrepareForEmbed returns a path that the PDF writer can embed directly.
// The writer handles png/jpg/gif natively; bmp sources are re-encoded to a
// temporary PNG. Images whose longest edge exceeds maxEdge pixels are
// downscaled on the way, which keeps output size bounded without changing the
// aspect ratio. cleanup removes the temp file and is a no-op when the original
// path is returned.
func PrepareForEmbed(path string, maxEdge int) (embedPath string, cleanup func(), err error) {
	noop := func() {}

	ext := strings.ToLower(filepath.Ext(path))
	needsReencode := ext == ".bmp"

	var src image.Image
	if maxEdge > 0 || needsReencode {
		f, err := os.Open(path)
		if err != nil {
			return "", noop, err
		}
		cfg, _, cerr := image.DecodeConfig(f)
		f.Close()
		if cerr != nil {
			return "", noop, fmt.Errorf("decode config: %w", cerr)
		}
		oversized := maxEdge > 0 && (cfg.Width > maxEdge || cfg.Height > maxEdge)
		if !needsReencode && !oversized {
			return path, noop, nil
		}

		f, err = os.Open(path)
		if err != nil {
			return "", noop, err
		}
		src, _, err = image.Decode(f)
		f.Close()
		if err != nil {
			return "", noop, fmt.Errorf("decode: %w", err)
		}
		if oversized {
			src = downscale(src, maxEdge)
		}
	} else {
		return path, noop, nil
	}

	tmp, err := os.CreateTemp("", TempPrefix+"*.png")
	if err != nil {
		return "", noop, err
	}
	if err := png.Encode(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", noop, fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", noop, err
	}
	name := tmp.Name()
	log.Debug().Str("image", path).Str("temp", name).Msg("re-encoded image for embedding")
	return name, func() { _ = os.Remove(name) }, nil
}

// downscale resizes img so its longest edge equals maxEdge, preserving aspect
// ratio. CatmullRom keeps enough quality for print-resolution embedding.
func downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}
	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = h * maxEdge / w
	} else {
		nh = maxEdge
		nw = w * maxEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
