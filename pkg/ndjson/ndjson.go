// Package ndjson reads newline-delimited JSON files one record at a time.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Lines larger than this abort the read. Mapping dumps occasionally carry
// very long annotation lines, so the cap is generous.
const maxLineSize = 16 * 1024 * 1024

// Stats summarizes one pass over a file.
type Stats struct {
	// Records is the number of well-formed records passed to the callback.
	Records int
	// Skipped is the number of malformed (non-JSON) lines dropped.
	Skipped int
}

// Each streams the file at path line by line, calling fn with each
// well-formed JSON record. The pass is single-use; calling Each again
// re-reads from the start. Empty lines are ignored and malformed lines are
// skipped and counted rather than failing the read. A non-nil error from fn
// aborts the pass.
func Each(path string, fn func(record json.RawMessage) error) (Stats, error) {
	var stats Stats
	f, err := os.Open(path)
	if err != nil {
		return stats, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			stats.Skipped++
			continue
		}
		record := make(json.RawMessage, len(line))
		copy(record, line)
		stats.Records++
		if err := fn(record); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}
	return stats, nil
}
