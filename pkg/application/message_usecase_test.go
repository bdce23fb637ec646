package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/storage"
)

type fakeExporter struct {
	jobs []entity.ExportJob
	err  error
}

func (e *fakeExporter) Export(_ context.Context, job entity.ExportJob, observe func(done, total int)) ([]string, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.jobs = append(e.jobs, job)
	if observe != nil {
		observe(1, 1)
	}
	return []string{"out/" + job.Format}, nil
}

type messageFixture struct {
	uc       *MessageUseCase
	collect  *CollectUseCase
	state    *storage.StateManager
	exporter *fakeExporter
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(storage.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	state := storage.NewStateManager(store, nil)
	t.Cleanup(func() {
		state.Close()
		store.Close()
	})

	collect := NewCollectUseCase(CollectConfig{}, newFakeAPI(), workingSecrets(), state, nil, nil, nil)
	exp := &fakeExporter{}
	uc := NewMessageUseCase(MessageConfig{DefaultCity: config.DefaultCity, PackSize: 1000}, state, store, exp, collect, nil)
	return &messageFixture{uc: uc, collect: collect, state: state, exporter: exp}
}

func (f *messageFixture) add(t *testing.T, items ...entity.CanonicalItem) {
	t.Helper()
	for _, it := range items {
		it.Fill()
		if err := f.state.AppendItem(context.Background(), it); err != nil {
			t.Fatal(err)
		}
	}
}

func withPhone(name, phone string) entity.CanonicalItem {
	return entity.CanonicalItem{Name: name, Phones: []string{phone}, NormalizedPhones: []string{phone}}
}

func TestMessage_Counts(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	if r := f.uc.Handle(ctx, Request{Action: ActionGetCount}); r.Status != StatusOK || r.Count == nil || *r.Count != 0 {
		t.Fatalf("getCount on empty store = %+v", r)
	}

	f.add(t,
		withPhone("a", "+79161112233"),
		withPhone("b", "+74951112233"),
		entity.CanonicalItem{Name: "c", Emails: []string{"c@example.com"}},
	)

	if r := f.uc.Handle(ctx, Request{Action: ActionGetCount}); *r.Count != 3 {
		t.Errorf("getCount = %d", *r.Count)
	}
	r := f.uc.Handle(ctx, Request{Action: ActionGetFilteredCount, Filters: entity.Filter{OnlyWithPhone: true}})
	if *r.Count != 2 {
		t.Errorf("getFilteredCount = %d", *r.Count)
	}
	r = f.uc.Handle(ctx, Request{Action: ActionGetStats})
	if r.Stats == nil || r.Stats.Total != 3 || r.Stats.WithPhones != 2 || r.Stats.WithEmails != 1 {
		t.Errorf("getStats = %+v", r.Stats)
	}
}

func TestMessage_Preview(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.add(t, entity.CanonicalItem{Name: string(rune('a' + i))})
	}

	r := f.uc.Handle(ctx, Request{Action: ActionGetPreview})
	if r.Items == nil || len(*r.Items) != DefaultPreviewLimit || *r.Total != 7 {
		t.Errorf("default preview = %d items of %d", len(*r.Items), *r.Total)
	}
	r = f.uc.Handle(ctx, Request{Action: ActionGetPreview, Limit: 2})
	if len(*r.Items) != 2 || (*r.Items)[1].Name != "b" {
		t.Errorf("preview = %+v", *r.Items)
	}

	r = f.uc.Handle(ctx, Request{Action: ActionGetPreview, Filters: entity.Filter{OnlyWithEmail: true}})
	data, _ := json.Marshal(r)
	if string(data) != `{"status":"ok","items":[],"total":0}` {
		t.Errorf("empty preview = %s", data)
	}
}

func TestMessage_Download(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	r := f.uc.Handle(ctx, Request{Action: ActionDownload, Format: "csv"})
	if r.Status != StatusEmpty || r.Message != "Нет данных для экспорта" {
		t.Fatalf("download on empty store = %+v", r)
	}

	f.add(t,
		withPhone("first", "+79161112233"),
		withPhone("same-phone", "+79161112233"),
		withPhone("other", "+74951112233"),
		entity.CanonicalItem{Name: "no-phone"},
	)

	var batches int
	f.uc.OnBatch = func(done, total int) { batches++ }
	r = f.uc.Handle(ctx, Request{
		Action:   ActionDownload,
		Format:   "csv",
		Filters:  entity.Filter{OnlyWithPhone: true},
		City:     "spb",
		Category: "Кафе",
	})
	if r.Status != StatusOK || *r.Count != 2 || len(r.Files) != 1 || batches != 1 {
		t.Fatalf("download = %+v", r)
	}

	job := f.exporter.jobs[0]
	if len(job.Items) != 2 || job.Items[0].Name != "first" || job.Items[1].Name != "other" {
		t.Errorf("exported items = %+v", job.Items)
	}
	if job.City == nil || job.City.ID != "spb" || job.PackSize != 1000 || job.Category != "Кафе" {
		t.Errorf("job = %+v", job)
	}

	if r := f.uc.Handle(ctx, Request{Action: ActionDownload, City: "atlantis"}); r.Status != StatusError {
		t.Errorf("unknown city = %+v", r)
	}

	f.exporter.err = errors.New("disk full")
	if r := f.uc.Handle(ctx, Request{Action: ActionDownload}); r.Status != StatusError || r.Message != "disk full" {
		t.Errorf("export failure = %+v", r)
	}
}

func TestMessage_Clear(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	f.add(t, entity.CanonicalItem{Name: "a"})
	if _, err := f.state.MarkCaptured(ctx, searchBase+"x"); err != nil {
		t.Fatal(err)
	}

	r := f.uc.Handle(ctx, Request{Action: ActionClear})
	if r.Status != StatusOK || r.Message != "Данные очищены" {
		t.Fatalf("clear = %+v", r)
	}
	snap, _ := f.state.Snapshot(ctx)
	if len(snap.UniqueItems) != 0 || len(snap.CapturedURLs) != 0 || len(snap.UniqueItemKeys) != 0 {
		t.Errorf("state after clear = %+v", snap)
	}
}

func TestMessage_Settings(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	r := f.uc.Handle(ctx, Request{Action: ActionGetSettings})
	if r.Status != StatusOK || r.Settings == nil || r.Settings.Filters.Active() {
		t.Fatalf("default settings = %+v", r)
	}

	saved := entity.Settings{Filters: entity.Filter{MinRating: 4}, City: "kazan", PackSize: 500, Format: "CSV"}
	if r := f.uc.Handle(ctx, Request{Action: ActionSaveSettings, Settings: &saved}); r.Status != StatusOK {
		t.Fatalf("saveSettings = %+v", r)
	}
	r = f.uc.Handle(ctx, Request{Action: ActionGetSettings})
	if r.Settings.Format != "csv" || r.Settings.PackSize != 500 || r.Settings.Filters.MinRating != 4 {
		t.Errorf("settings = %+v", r.Settings)
	}

	bad := entity.Settings{Format: "pdf"}
	if r := f.uc.Handle(ctx, Request{Action: ActionSaveSettings, Settings: &bad}); r.Status != StatusError {
		t.Errorf("bad format accepted: %+v", r)
	}
	if r := f.uc.Handle(ctx, Request{Action: ActionSaveSettings}); r.Status != StatusError {
		t.Errorf("missing settings accepted: %+v", r)
	}
}

func TestMessage_CollectionControl(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	off := false
	r := f.uc.Handle(ctx, Request{Action: ActionSetCollecting, Enabled: &off})
	if r.Status != StatusOK || r.Collecting == nil || *r.Collecting || f.collect.IsCollecting() {
		t.Fatalf("setCollecting(false) = %+v", r)
	}
	r = f.uc.Handle(ctx, Request{Action: ActionGetStatus})
	if *r.Collecting || r.Metrics == nil || r.Metrics.Collecting {
		t.Errorf("getStatus = %+v", r)
	}
	if r := f.uc.Handle(ctx, Request{Action: ActionSetCollecting}); r.Status != StatusError {
		t.Errorf("setCollecting without enabled = %+v", r)
	}
}

func TestMessage_HandleJSON(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	r := f.uc.HandleJSON(ctx, []byte(`{"action":"getPreview","filters":{"onlyWithPhone":true},"limit":3}`))
	if r.Status != StatusOK || *r.Total != 0 {
		t.Errorf("getPreview = %+v", r)
	}
	if r := f.uc.HandleJSON(ctx, []byte(`{"action":"fly"}`)); r.Status != StatusError || r.Message != "Unknown action" {
		t.Errorf("unknown action = %+v", r)
	}
	if r := f.uc.HandleJSON(ctx, []byte(`{`)); r.Status != StatusError {
		t.Errorf("invalid json = %+v", r)
	}
}
