package storage

import (
	"encoding/json"
	"os"
	"sync"
)

// LogWriter implements repository.LogWriter as a JSON-lines file
type LogWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewLogWriter opens filename for appending
func NewLogWriter(filename string) (*LogWriter, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &LogWriter{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// WriteHTTPLog writes one HTTP attempt record
func (w *LogWriter) WriteHTTPLog(data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(data)
}

// Flush ensures all buffered data is written
func (w *LogWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Sync()
}

// Close closes the log file
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
