package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	_ "modernc.org/sqlite"
)

const (
	// StateKey is the key of the collection state blob
	StateKey = "uniqueData_2gis_parser_pro_v2"
	// SettingsKey is the key of the persisted UI settings
	SettingsKey = "parserFilters"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore implements repository.StateStore as a key-value table holding
// one JSON blob per key.
type SQLiteStore struct {
	db     *sql.DB
	onSave func(count int)
	logger *slog.Logger
}

// SQLiteConfig holds store configuration
type SQLiteConfig struct {
	// Path is a database file or ":memory:"
	Path string
	// OnSave is called with the item count after every successful Save
	OnSave func(count int)
	Logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database and its table
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	dsn := config.Path
	if dsn == "" {
		return nil, errors.New("store: empty database path")
	}
	if dsn != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", config.Path, err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, onSave: config.OnSave, logger: logger}, nil
}

func (s *SQLiteStore) get(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Load implements repository.StateStore
func (s *SQLiteStore) Load(ctx context.Context) (*entity.PersistedState, error) {
	state := entity.NewPersistedState()
	if _, err := s.get(ctx, StateKey, state); err != nil {
		return nil, err
	}
	state.Normalize()
	return state, nil
}

// Save implements repository.StateStore. It is the only place the item
// count badge is refreshed.
func (s *SQLiteStore) Save(ctx context.Context, state *entity.PersistedState) error {
	if err := s.put(ctx, StateKey, state); err != nil {
		return err
	}
	if s.onSave != nil {
		s.onSave(len(state.UniqueItems))
	}
	return nil
}

// LoadSettings implements repository.StateStore
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*entity.Settings, error) {
	settings := &entity.Settings{}
	if _, err := s.get(ctx, SettingsKey, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings implements repository.StateStore
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *entity.Settings) error {
	return s.put(ctx, SettingsKey, settings)
}

// Close implements repository.StateStore
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
