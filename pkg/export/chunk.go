package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Output formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ParseFormat validates a format name; empty means xlsx
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// SplitIntoChunks splits items into consecutive batches of at most size.
// A non-positive size keeps everything in one batch; no items means no batches.
func SplitIntoChunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

func filenamePart(s, fallback string) string {
	s = strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return fallback
	}
	return s
}

// Filename builds 2gis_{category}_{city}_{batch}_{date}.{format}; batch is 1-based
func Filename(category, city string, batch int, date time.Time, format string) string {
	return fmt.Sprintf("2gis_%s_%s_%d_%s.%s",
		filenamePart(category, "export"),
		filenamePart(city, "all"),
		batch,
		date.Format("2006-01-02"),
		format,
	)
}
