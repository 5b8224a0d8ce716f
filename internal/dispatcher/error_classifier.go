package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/pagepress/internal/compose"
)

// isFatalError checks if an error is fatal and should go straight to the DLQ.
// Retrying cannot fix an empty input directory or a bad page description.
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, compose.ErrNoImages) {
		return true
	}

	var invErr *compose.InvalidImageError
	if errors.As(err, &invErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "unknown page size") ||
		strings.Contains(errStr, "page area:") ||
		strings.Contains(errStr, "no such file or directory") ||
		strings.Contains(errStr, "not a directory") {
		return true
	}

	return false
}

// isTimeoutError checks if an error is specifically the job deadline.
// Timeouts skip the input cooldown: a slow batch is not a broken batch.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
