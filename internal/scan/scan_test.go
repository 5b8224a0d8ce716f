package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHasAllowedExt(t *testing.T) {
	for path, want := range map[string]bool{
		"a.png":        true,
		"b.JPG":        true,
		"c.Jpeg":       true,
		"d.gif":        true,
		"e.bmp":        true,
		"f.tiff":       false,
		"g.pdf":        false,
		"noext":        false,
		"dir/h.PNG":    true,
		"tricky.png.x": false,
	} {
		if got := HasAllowedExt(path); got != want {
			t.Errorf("HasAllowedExt(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	pngData := pngBytes(t)

	writeFile(t, filepath.Join(dir, "b.png"), pngData)
	writeFile(t, filepath.Join(dir, "a.jpg"), jpegBytes(t))
	writeFile(t, filepath.Join(dir, "C.PNG"), pngData)
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("not an image"))
	// PDF content behind an image extension must be sniffed out
	writeFile(t, filepath.Join(dir, "sneaky.png"), []byte("%PDF-1.4 fake"))
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	want := []string{
		filepath.Join(dir, "C.PNG"),
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListImages (-want +got):\n%s", diff)
	}
}

func TestListImagesEmptyDir(t *testing.T) {
	got, err := ListImages(t.TempDir())
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListImages(empty) = %v, want none", got)
	}
}

func TestListImagesMissingDir(t *testing.T) {
	if _, err := ListImages(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("ListImages on missing dir expected error")
	}
}
