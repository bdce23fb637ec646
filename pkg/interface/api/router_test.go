package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/WangYihang/Catalog-Crawler/pkg/application"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/metrics"
)

type fakeMessages struct {
	raw  []string
	reqs []application.Request
}

func (f *fakeMessages) HandleJSON(_ context.Context, raw []byte) application.Response {
	f.raw = append(f.raw, string(raw))
	return application.Response{Status: application.StatusOK, Message: "handled"}
}

func (f *fakeMessages) Handle(_ context.Context, req application.Request) application.Response {
	f.reqs = append(f.reqs, req)
	return application.Response{Status: application.StatusOK}
}

type fakeCapturer struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeCapturer) OnAPIListRequest(url string) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
}

func newTestRouter() (http.Handler, *fakeMessages, *fakeCapturer) {
	msgs := &fakeMessages{}
	capt := &fakeCapturer{}
	return NewRouter(Config{Messages: msgs, Capturer: capt, Metrics: metrics.New().Handler()}), msgs, capt
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Message(t *testing.T) {
	h, msgs, _ := newTestRouter()

	rec := do(t, h, http.MethodPost, "/api/message", `{"action":"getCount"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp application.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Message != "handled" {
		t.Errorf("response = %+v, %v", resp, err)
	}
	if len(msgs.raw) != 1 || msgs.raw[0] != `{"action":"getCount"}` {
		t.Errorf("forwarded = %v", msgs.raw)
	}

	if rec := do(t, h, http.MethodGet, "/api/message", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/message = %d", rec.Code)
	}
}

func TestRouter_Stats(t *testing.T) {
	h, msgs, _ := newTestRouter()
	if rec := do(t, h, http.MethodGet, "/api/stats", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(msgs.reqs) != 1 || msgs.reqs[0].Action != application.ActionGetStats {
		t.Errorf("requests = %+v", msgs.reqs)
	}
}

func TestRouter_Capture(t *testing.T) {
	h, _, capt := newTestRouter()

	tests := []struct {
		body     string
		code     int
		accepted bool
	}{
		{`{"url":"https://catalog.api.2gis.ru/3.0/items?q=cafe"}`, http.StatusAccepted, true},
		{`{"url":"https://example.com/"}`, http.StatusAccepted, false},
		{`{"url":""}`, http.StatusBadRequest, false},
		{`not json`, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPost, "/api/capture", tt.body)
		if rec.Code != tt.code {
			t.Errorf("POST %s = %d, want %d", tt.body, rec.Code, tt.code)
			continue
		}
		if tt.code == http.StatusAccepted {
			var resp struct{ Accepted bool }
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Accepted != tt.accepted {
				t.Errorf("POST %s accepted = %v", tt.body, resp.Accepted)
			}
		}
	}
	if len(capt.urls) != 1 {
		t.Errorf("captured = %v", capt.urls)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h, _, _ := newTestRouter()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics = %d", rec.Code)
	}
}
