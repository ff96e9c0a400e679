package upload

import (
	"fmt"
	"time"
)

// Part limits imposed by S3 compatible backends.
const (
	MinPartNumber = 1
	MaxPartNumber = 10000
)

// generateKey creates a unique storage key: <unixMillis>-<fileName>
func generateKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), fileName)
}

// resolvePartSize picks the part size for a new session: the requested size
// or the default, never below the backend minimum.
func resolvePartSize(requested *int64, minSize, defaultSize int64) int64 {
	size := defaultSize
	if requested != nil {
		size = *requested
	}
	return max(size, minSize)
}

func validPartNumber(n int) bool {
	return n >= MinPartNumber && n <= MaxPartNumber
}
