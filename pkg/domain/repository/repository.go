package repository

import (
	"context"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// StateStore persists the collection state as a single blob
type StateStore interface {
	// Load returns the stored state, or an empty one on first use
	Load(ctx context.Context) (*entity.PersistedState, error)
	// Save replaces the stored state as a whole
	Save(ctx context.Context, state *entity.PersistedState) error
	SettingsStore
	// Close releases the underlying database
	Close() error
}

// SettingsStore persists the UI settings next to the state
type SettingsStore interface {
	// LoadSettings returns the persisted UI settings
	LoadSettings(ctx context.Context) (*entity.Settings, error)
	// SaveSettings replaces the persisted UI settings
	SaveSettings(ctx context.Context, settings *entity.Settings) error
}

// StateRepository serializes read-modify-write cycles over a StateStore
type StateRepository interface {
	// MarkCaptured records a list URL and reports whether it was new
	MarkCaptured(ctx context.Context, url string) (bool, error)
	// ReserveKey records an item key and reports whether it was new
	ReserveKey(ctx context.Context, key string) (bool, error)
	// ReleaseKey forgets an item key that was never fetched
	ReleaseKey(ctx context.Context, key string) error
	// AppendItem appends a collected item
	AppendItem(ctx context.Context, item entity.CanonicalItem) error
	// Snapshot returns a copy of the current state
	Snapshot(ctx context.Context) (*entity.PersistedState, error)
	// Clear wipes the state
	Clear(ctx context.Context) error
}

// URLFilter suppresses repeated capture events before they reach the store
type URLFilter interface {
	// Test reports whether url was probably recorded
	Test(url string) bool
	// Add records url
	Add(url string)
	// Seed records urls without testing them
	Seed(urls []string)
	// Reset forgets every recorded URL
	Reset()
}

// LogWriter writes structured fetch logs
type LogWriter interface {
	// WriteHTTPLog writes one HTTP attempt record
	WriteHTTPLog(data any) error
	// Close closes the log
	Close() error
}

// ItemExporter writes export batches and returns the written file paths
type ItemExporter interface {
	Export(ctx context.Context, job entity.ExportJob, observe func(done, total int)) ([]string, error)
}
