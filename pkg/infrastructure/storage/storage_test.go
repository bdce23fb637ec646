package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

func newMemoryStore(t *testing.T, onSave func(int)) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{Path: ":memory:", OnSave: onSave})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestURLFilter_Basic(t *testing.T) {
	filter := NewURLFilter(Config{
		Size:              1000,
		FalsePositiveRate: 0.0001,
	})

	testURL := "https://catalog.api.2gis.ru/3.0/items?q=coffee"

	if filter.Test(testURL) {
		t.Errorf("Filter should not contain %s initially", testURL)
	}
	if filter.Test(testURL) {
		t.Errorf("Test should not record %s", testURL)
	}
	filter.Add(testURL)
	if !filter.Test(testURL) {
		t.Errorf("Filter should contain %s after Add", testURL)
	}

	filter.Reset()
	if filter.Test(testURL) {
		t.Error("Filter should be empty after Reset")
	}
}

func TestURLFilter_Seed(t *testing.T) {
	filter := NewURLFilter(Config{Size: 1000, FalsePositiveRate: 0.0001})
	urls := []string{"https://a/1", "https://a/2", "https://a/3"}
	filter.Seed(urls)

	for _, u := range urls {
		if !filter.Test(u) {
			t.Errorf("Seeded filter should contain %s", u)
		}
	}
	if filter.Test("https://a/4") {
		t.Error("Filter should not contain an unseeded URL")
	}
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store := newMemoryStore(t, nil)

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.CapturedURLs == nil || state.UniqueItemKeys == nil || state.UniqueItems == nil {
		t.Errorf("empty state must be initialized: %+v", state)
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	var badge []int
	store := newMemoryStore(t, func(n int) { badge = append(badge, n) })
	ctx := context.Background()

	state := entity.NewPersistedState()
	state.CapturedURLs.Add("https://catalog.api.2gis.ru/3.0/items?q=a")
	state.UniqueItemKeys.Add("700")
	state.UniqueItems = append(state.UniqueItems, entity.CanonicalItem{Name: "Кафе"})

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.CapturedURLs.Has("https://catalog.api.2gis.ru/3.0/items?q=a") || !loaded.UniqueItemKeys.Has("700") {
		t.Errorf("sets not restored: %+v", loaded)
	}
	if len(loaded.UniqueItems) != 1 || loaded.UniqueItems[0].Name != "Кафе" || loaded.UniqueItems[0].Phones == nil {
		t.Errorf("items not restored: %+v", loaded.UniqueItems)
	}
	if len(badge) != 1 || badge[0] != 1 {
		t.Errorf("badge updates = %v, want [1]", badge)
	}
}

func TestSQLiteStore_BlobLayout(t *testing.T) {
	store := newMemoryStore(t, nil)
	ctx := context.Background()

	state := entity.NewPersistedState()
	state.CapturedURLs.Add("u1")
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	var raw string
	if err := store.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, StateKey).Scan(&raw); err != nil {
		t.Fatalf("query blob: %v", err)
	}
	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"capturedUrls", "uniqueItems", "uniqueItemKeys"} {
		if _, ok := blob[k]; !ok {
			t.Errorf("blob is missing %q: %s", k, raw)
		}
	}
	if string(blob["capturedUrls"]) != `["u1"]` {
		t.Errorf("capturedUrls = %s, want an array", blob["capturedUrls"])
	}
}

func TestSQLiteStore_Settings(t *testing.T) {
	store := newMemoryStore(t, nil)
	ctx := context.Background()

	empty, err := store.LoadSettings(ctx)
	if err != nil || *empty != (entity.Settings{}) {
		t.Fatalf("LoadSettings on empty store = %+v, %v", empty, err)
	}

	want := entity.Settings{Filters: entity.Filter{MinRating: 4, OnlyWithPhone: true}, City: "moscow", PackSize: 500, Format: "csv"}
	if err := store.SaveSettings(ctx, &want); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadSettings(ctx)
	if err != nil || *got != want {
		t.Errorf("LoadSettings = %+v, %v, want %+v", got, err, want)
	}
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	state := entity.NewPersistedState()
	state.UniqueItemKeys.Add("k")
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	loaded, err := reopened.Load(context.Background())
	if err != nil || !loaded.UniqueItemKeys.Has("k") {
		t.Errorf("state did not survive reopen: %+v, %v", loaded, err)
	}
}

func TestStateManager_Operations(t *testing.T) {
	m := NewStateManager(newMemoryStore(t, nil), nil)
	defer m.Close()
	ctx := context.Background()

	if isNew, err := m.MarkCaptured(ctx, "u"); err != nil || !isNew {
		t.Fatalf("first MarkCaptured = %v, %v", isNew, err)
	}
	if isNew, _ := m.MarkCaptured(ctx, "u"); isNew {
		t.Error("second MarkCaptured should report a known url")
	}

	if isNew, _ := m.ReserveKey(ctx, "k"); !isNew {
		t.Error("first ReserveKey should be new")
	}
	if isNew, _ := m.ReserveKey(ctx, "k"); isNew {
		t.Error("second ReserveKey should be known")
	}
	if err := m.ReleaseKey(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if isNew, _ := m.ReserveKey(ctx, "k"); !isNew {
		t.Error("ReserveKey after ReleaseKey should be new")
	}

	if err := m.AppendItem(ctx, entity.CanonicalItem{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	snap, err := m.Snapshot(ctx)
	if err != nil || len(snap.UniqueItems) != 1 || snap.UniqueItems[0].Emails == nil {
		t.Fatalf("Snapshot = %+v, %v", snap, err)
	}

	// snapshots are copies
	snap.CapturedURLs.Add("other")
	again, _ := m.Snapshot(ctx)
	if again.CapturedURLs.Has("other") {
		t.Error("mutating a snapshot must not affect the store")
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	cleared, _ := m.Snapshot(ctx)
	if len(cleared.UniqueItems) != 0 || len(cleared.CapturedURLs) != 0 || len(cleared.UniqueItemKeys) != 0 {
		t.Errorf("Clear left %+v", cleared)
	}
}

func TestStateManager_ConcurrentAppendsAreNotLost(t *testing.T) {
	store := newMemoryStore(t, nil)
	m := NewStateManager(store, nil)
	ctx := context.Background()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				if _, err := m.ReserveKey(ctx, key); err != nil {
					t.Error(err)
					return
				}
				if err := m.AppendItem(ctx, entity.CanonicalItem{Name: key}); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	m.Close()

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.UniqueItems) != writers*perWriter || len(persisted.UniqueItemKeys) != writers*perWriter {
		t.Errorf("persisted %d items and %d keys, want %d", len(persisted.UniqueItems), len(persisted.UniqueItemKeys), writers*perWriter)
	}
}

type failingStore struct {
	*SQLiteStore
	fail bool
}

func (s *failingStore) Save(ctx context.Context, state *entity.PersistedState) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.SQLiteStore.Save(ctx, state)
}

func TestStateManager_SaveFailureDropsMutation(t *testing.T) {
	store := &failingStore{SQLiteStore: newMemoryStore(t, nil)}
	m := NewStateManager(store, nil)
	defer m.Close()
	ctx := context.Background()

	store.fail = true
	if err := m.AppendItem(ctx, entity.CanonicalItem{Name: "lost"}); err == nil {
		t.Fatal("AppendItem should surface the save error")
	}
	store.fail = false

	snap, err := m.Snapshot(ctx)
	if err != nil || len(snap.UniqueItems) != 0 {
		t.Errorf("unsaved item leaked into state: %+v, %v", snap, err)
	}
}

func TestStateManager_Closed(t *testing.T) {
	m := NewStateManager(newMemoryStore(t, nil), nil)
	m.Close()
	m.Close()

	if _, err := m.MarkCaptured(context.Background(), "u"); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestLogWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "http.jsonl")
	w, err := NewLogWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteHTTPLog(map[string]any{"url": "a", "attempt": 0})
	w.WriteHTTPLog(map[string]any{"url": "b", "attempt": 1})
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	w.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Errorf("line %d is not JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}
