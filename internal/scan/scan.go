package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// allowedExts is the fixed allow-list of image extensions, matched
// case-insensitively.
var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// HasAllowedExt reports whether path carries one of the allowed image
// extensions.
func HasAllowedExt(path string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(path))]
}

// ListImages enumerates the image files directly inside dir, sorted ascending
// by path string. Extension filtering decides membership; on top of that each
// candidate is sniffed by magic bytes and entries whose content is not an
// image (a renamed PDF, say) are dropped with a warning, so the composer never
// receives one.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !HasAllowedExt(p) {
			continue
		}
		if !sniffIsImage(p) {
			log.Warn().Str("file", p).Msg("extension says image but content does not, skipping")
			continue
		}
		paths = append(paths, p)
	}

	sort.Strings(paths)
	return paths, nil
}

// sniffIsImage checks the actual file type using magic bytes, not filename.
func sniffIsImage(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		// Unreadable files surface later as per-image decode failures.
		log.Debug().Err(err).Str("file", path).Msg("mime sniff failed")
		return true
	}
	return strings.HasPrefix(mtype.String(), "image/")
}
