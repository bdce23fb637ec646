package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/signature"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/storage"
	"github.com/WangYihang/Catalog-Crawler/pkg/signing"
)

const searchBase = "https://catalog.api.2gis.ru/3.0/items?key=k&locale=ru_RU&shv=2024-01-01&" +
	"stat%5Bsid%5D=sid&stat%5Buser%5D=user&viewpoint1=37.5%2C55.8&viewpoint2=37.7%2C55.7&q="

// fakeAPI serves search results by q and detail records by id
type fakeAPI struct {
	mu      sync.Mutex
	lists   map[string][]map[string]string
	broken  map[string]bool
	details map[string]int
	fetched []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		lists:   map[string][]map[string]string{},
		broken:  map[string]bool{},
		details: map[string]int{},
	}
}

func (f *fakeAPI) FetchJSON(_ context.Context, rawURL string, v any) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()

	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	var body string
	switch u.Path {
	case signing.DetailPath:
		id := q.Get("id")
		f.details[id]++
		if f.broken[id] {
			f.mu.Unlock()
			return false
		}
		body = fmt.Sprintf(`{"result":{"items":[{"id":%q,"name":"Place %s, Кафе","address_name":"Street %s"}]}}`, id, id, id)
	case signing.ListPath:
		items, _ := json.Marshal(f.lists[q.Get("q")])
		body = `{"result":{"items":` + string(items) + `}}`
	default:
		f.mu.Unlock()
		return false
	}
	f.mu.Unlock()
	return json.Unmarshal([]byte(body), v) == nil
}

func (f *fakeAPI) detailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.details {
		n += c
	}
	return n
}

// fakeSecrets derives params on demand and forgets them on Invalidate,
// like the signature engine
type fakeSecrets struct {
	mu          sync.Mutex
	params      entity.SecretParams
	current     entity.SecretParams
	fail        bool
	derivations int
	invalidated int
}

func workingSecrets() *fakeSecrets {
	return &fakeSecrets{params: entity.SecretParams{Multiplier: 31, Increment: 7, Salt: "salt"}}
}

func (s *fakeSecrets) EnsureParams(context.Context) (entity.SecretParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Complete() {
		return s.current, nil
	}
	s.derivations++
	if s.fail {
		return entity.SecretParams{}, errors.New("no bundle")
	}
	s.current = s.params
	return s.current, nil
}

func (s *fakeSecrets) Current() entity.SecretParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *fakeSecrets) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = entity.SecretParams{}
	s.invalidated++
}

func newState(t *testing.T) *storage.StateManager {
	t.Helper()
	store, err := storage.NewSQLiteStore(storage.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	state := storage.NewStateManager(store, nil)
	t.Cleanup(func() {
		state.Close()
		store.Close()
	})
	return state
}

func items(ids ...string) []map[string]string {
	out := make([]map[string]string, len(ids))
	for i, id := range ids {
		out[i] = map[string]string{"id": id, "name": "Place " + id, "address_name": "Street " + id}
	}
	return out
}

func storedNames(t *testing.T, state *storage.StateManager) []string {
	t.Helper()
	snap, err := state.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var names []string
	for _, it := range snap.UniqueItems {
		names = append(names, it.Name)
	}
	sort.Strings(names)
	return names
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want CaptureKind
	}{
		{"https://catalog.api.2gis.ru/3.0/items?q=coffee", CaptureSearch},
		{"https://catalog.api.2gis.kz/3.0/items?q=coffee", CaptureSearch},
		{"https://catalog.api.2gis.com/3.0/markers/clustered?q=coffee", CaptureMarkers},
		{"https://catalog.api.2gis.ru/3.0/items/byid?id=1", CaptureNone},
		{"https://catalog.api.2gis.fr/3.0/items?q=coffee", CaptureNone},
		{"https://example.com/3.0/items?q=coffee", CaptureNone},
	}
	for _, tt := range tests {
		if got := Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCollect_EndToEnd(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("70000001_a", "70000002_b", "70000001_c")
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, nil, nil, nil)

	n, err := uc.Process(context.Background(), searchBase+"coffee")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n != 2 {
		t.Errorf("collected = %d, want 2", n)
	}
	if got := api.detailCalls(); got != 2 {
		t.Errorf("detail fetches = %d, want 2", got)
	}
	names := storedNames(t, state)
	if len(names) != 2 || names[0] != "Place 70000001_a" {
		t.Errorf("stored = %v", names)
	}

	m := uc.GetMetrics()
	if m.CapturesSeen != 1 || m.DuplicateItems != 1 || m.ItemsCollected != 2 || m.CapturesActive != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestCollect_SameURLTwice(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1", "2")
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, nil, nil, nil)

	ctx := context.Background()
	if _, err := uc.Process(ctx, searchBase+"coffee"); err != nil {
		t.Fatal(err)
	}
	n, err := uc.Process(ctx, searchBase+"coffee")
	if err != nil || n != 0 {
		t.Fatalf("second Process = %d, %v", n, err)
	}
	if got := api.detailCalls(); got != 2 {
		t.Errorf("detail fetches = %d, want 2", got)
	}
	if got := len(storedNames(t, state)); got != 2 {
		t.Errorf("stored = %d, want 2", got)
	}
}

func TestCollect_OverlappingSearches(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1", "2")
	api.lists["bakery"] = items("2", "3")
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, nil, nil, nil)

	uc.Process(context.Background(), searchBase+"coffee")
	n, _ := uc.Process(context.Background(), searchBase+"bakery")
	if n != 1 {
		t.Errorf("second search collected %d, want 1", n)
	}
	if api.details["2"] != 1 {
		t.Errorf("item 2 fetched %d times", api.details["2"])
	}
}

func TestCollect_DetailFailureResetsSecrets(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1", "2", "3")
	api.broken["2"] = true
	secrets := workingSecrets()
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, secrets, state, nil, nil, nil)

	n, err := uc.Process(context.Background(), searchBase+"coffee")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("collected = %d, want 1", n)
	}
	if secrets.invalidated != 1 {
		t.Errorf("invalidated = %d, want 1", secrets.invalidated)
	}
	// item 3 waits for the next derivation instead of deriving mid-capture
	if secrets.derivations != 1 || api.details["3"] != 0 {
		t.Errorf("derivations = %d, item 3 fetched %d times", secrets.derivations, api.details["3"])
	}
	if m := uc.GetMetrics(); m.SignSkips != 1 || m.SignatureResets != 1 {
		t.Errorf("metrics = %+v", m)
	}

	// the failed key stays reserved; the skipped one was released
	api.lists["again"] = items("2", "3")
	n, _ = uc.Process(context.Background(), searchBase+"again")
	if n != 1 || api.details["2"] != 1 || api.details["3"] != 1 {
		t.Errorf("second capture collected %d, details = %v", n, api.details)
	}
	if secrets.derivations != 2 {
		t.Errorf("derivations = %d, want 2", secrets.derivations)
	}
}

// bundleSite serves a landing page whose bundle lacks the multiplier array
type bundleSite struct {
	mu    sync.Mutex
	calls map[string]int
}

const (
	landingURL = "https://2gis.ru/"
	appBundle  = "https://d-assets.2gis.ru/app.0a1b2c.js"
)

func (b *bundleSite) FetchText(_ context.Context, rawURL string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = map[string]int{}
	}
	b.calls[rawURL]++
	switch rawURL {
	case landingURL:
		return `<html><head><script src="` + appBundle + `"></script></head></html>`, nil
	case appBundle:
		return `!function(){var x=1;}();`, nil
	}
	return "", fmt.Errorf("no page %s", rawURL)
}

func TestCollect_FailedDerivationRunsOncePerCapture(t *testing.T) {
	api := newFakeAPI()
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}
	api.lists["coffee"] = items(ids...)
	site := &bundleSite{}
	engine := signature.NewEngine(site, signature.Config{LandingURL: landingURL})
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, engine, state, nil, nil, nil)

	n, err := uc.Process(context.Background(), searchBase+"coffee")
	if err != nil || n != 0 {
		t.Fatalf("Process = %d, %v", n, err)
	}
	if site.calls[landingURL] != 1 || site.calls[appBundle] != 1 {
		t.Errorf("derivation fetches = %v, want one landing and one bundle", site.calls)
	}
	if api.detailCalls() != 0 {
		t.Errorf("detail fetches = %d without secrets", api.detailCalls())
	}
	if got := uc.GetMetrics().SignSkips; got != 12 {
		t.Errorf("sign skips = %d, want 12", got)
	}
}

func TestCollect_UnsignableItemsAreReleased(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1")
	secrets := workingSecrets()
	secrets.fail = true
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, secrets, state, nil, nil, nil)

	n, err := uc.Process(context.Background(), searchBase+"coffee")
	if err != nil || n != 0 {
		t.Fatalf("Process = %d, %v", n, err)
	}
	if api.detailCalls() != 0 {
		t.Error("no detail fetch without secrets")
	}
	if uc.GetMetrics().SignSkips != 1 {
		t.Errorf("sign skips = %d", uc.GetMetrics().SignSkips)
	}

	secrets.mu.Lock()
	secrets.fail = false
	secrets.mu.Unlock()
	api.lists["later"] = items("1")
	if n, _ := uc.Process(context.Background(), searchBase+"later"); n != 1 {
		t.Errorf("released item not collected later: %d", n)
	}
}

func TestCollect_Markers(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("9")
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, nil, nil, nil)

	markers := strings.Replace(searchBase, "/3.0/items?", "/3.0/markers/clustered?map_width=800&", 1) + "coffee"
	n, err := uc.Process(context.Background(), markers)
	if err != nil || n != 1 {
		t.Fatalf("Process = %d, %v", n, err)
	}
	if !strings.Contains(api.fetched[0], "/3.0/items?") || !strings.Contains(api.fetched[0], "r=") {
		t.Errorf("search not rewritten and signed: %s", api.fetched[0])
	}
}

func TestCollect_Paused(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1")
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{Paused: true}, api, workingSecrets(), state, nil, nil, nil)

	if n, _ := uc.Process(context.Background(), searchBase+"coffee"); n != 0 || len(api.fetched) != 0 {
		t.Fatalf("paused pipeline fetched %v", api.fetched)
	}

	uc.SetCollecting(true)
	if n, _ := uc.Process(context.Background(), searchBase+"coffee"); n != 1 {
		t.Errorf("URL skipped while paused should still be collected, got %d", n)
	}
}

func TestCollect_ConcurrentCapturesKeepEveryItem(t *testing.T) {
	api := newFakeAPI()
	var want []string
	for i := 0; i < 8; i++ {
		q := fmt.Sprintf("q%d", i)
		var ids []string
		for j := 0; j < 5; j++ {
			id := fmt.Sprintf("%d%02d", i, j)
			ids = append(ids, id)
			want = append(want, "Place "+id)
		}
		api.lists[q] = items(ids...)
	}
	sort.Strings(want)

	state := newState(t)
	filter := storage.NewURLFilter(storage.Config{Size: 1000, FalsePositiveRate: 0.0001})
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, filter, nil, nil)

	for i := 0; i < 8; i++ {
		uc.OnAPIListRequest(searchBase + fmt.Sprintf("q%d", i))
		uc.OnAPIListRequest(searchBase + fmt.Sprintf("q%d", i))
	}
	uc.OnAPIListRequest("https://example.com/ignored")
	uc.Wait()

	got := storedNames(t, state)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("stored %d items, want %d", len(got), len(want))
	}
	if m := uc.GetMetrics(); m.CapturesSkipped != 8 {
		t.Errorf("skipped = %d, want 8", m.CapturesSkipped)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	items []string
	last  *entity.Metrics
}

func (o *recordingObserver) OnMetricsUpdate(m *entity.Metrics) {
	o.mu.Lock()
	o.last = m
	o.mu.Unlock()
}

func (o *recordingObserver) AddItem(item entity.CanonicalItem) {
	o.mu.Lock()
	o.items = append(o.items, item.Name)
	o.mu.Unlock()
}

func TestCollect_Observers(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1", "2")
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), newState(t), nil, nil, nil)
	obs := &recordingObserver{}
	uc.RegisterMetricsObserver(obs)

	uc.Process(context.Background(), searchBase+"coffee")
	if len(obs.items) != 2 || obs.last == nil || obs.last.ItemsCollected != 2 {
		t.Errorf("observer saw items=%v metrics=%+v", obs.items, obs.last)
	}
	if uc.GetMetrics().LastCollectedItem != "Place 2" {
		t.Errorf("last item = %q", uc.GetMetrics().LastCollectedItem)
	}
}

func TestCollect_SeededCapturesAreSuppressed(t *testing.T) {
	api := newFakeAPI()
	api.lists["old"] = items("1")
	api.lists["new"] = items("2")
	filter := storage.NewURLFilter(storage.Config{Size: 1000, FalsePositiveRate: 0.0001})
	state := newState(t)
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, filter, nil, nil)
	uc.SeedCaptured([]string{searchBase + "old"})

	uc.OnAPIListRequest(searchBase + "old")
	uc.OnAPIListRequest(searchBase + "new")
	uc.Wait()
	if m := uc.GetMetrics(); m.CapturesSkipped != 1 || m.ItemsCollected != 1 {
		t.Errorf("metrics = %+v", m)
	}

	// what the clear message does
	if err := state.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	uc.ResetCaptured()
	uc.OnAPIListRequest(searchBase + "old")
	uc.Wait()
	if m := uc.GetMetrics(); m.ItemsCollected != 2 {
		t.Errorf("after reset collected = %d, want 2", m.ItemsCollected)
	}
}

// failingState fails the first MarkCaptured calls
type failingState struct {
	repository.StateRepository
	failures int
}

func (s *failingState) MarkCaptured(ctx context.Context, rawURL string) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, errors.New("disk full")
	}
	return s.StateRepository.MarkCaptured(ctx, rawURL)
}

func TestCollect_StoreFailureDoesNotSuppressURL(t *testing.T) {
	api := newFakeAPI()
	api.lists["coffee"] = items("1")
	filter := storage.NewURLFilter(storage.Config{Size: 1000, FalsePositiveRate: 0.0001})
	state := &failingState{StateRepository: newState(t), failures: 1}
	uc := NewCollectUseCase(CollectConfig{}, api, workingSecrets(), state, filter, nil, nil)

	uc.OnAPIListRequest(searchBase + "coffee")
	uc.Wait()
	if m := uc.GetMetrics(); m.StoreErrors != 1 || m.ItemsCollected != 0 {
		t.Fatalf("after failed write metrics = %+v", m)
	}

	uc.OnAPIListRequest(searchBase + "coffee")
	uc.Wait()
	if m := uc.GetMetrics(); m.ItemsCollected != 1 || m.CapturesSkipped != 0 {
		t.Errorf("retry after failed write metrics = %+v", m)
	}

	// recorded now, so the filter drops it
	uc.OnAPIListRequest(searchBase + "coffee")
	uc.Wait()
	if m := uc.GetMetrics(); m.CapturesSkipped != 1 {
		t.Errorf("skipped = %d, want 1", m.CapturesSkipped)
	}
}
