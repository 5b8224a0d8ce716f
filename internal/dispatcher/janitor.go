package dispatcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagepress/internal/imaging"
)

// Janitor periodically removes temp files left behind by image re-encoding
// (ppimg-*) older than maxAge. Runs until stop closes.
func Janitor(stop <-chan struct{}, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	ticker := time.NewTicker(maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			SweepTemps(maxAge)
		}
	}
}

// SweepTemps removes stale re-encode temp files in one pass.
func SweepTemps(maxAge time.Duration) {
	dir := os.TempDir()
	now := time.Now()
	removed := 0
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), imaging.TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= maxAge {
			if os.Remove(filepath.Join(dir, e.Name())) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("swept stale temp files")
	}
}
