package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/metrics"
	"golang.org/x/time/rate"
)

// Defaults used when the config leaves a field at zero
const (
	DefaultMaxResponseSize = 32 << 20
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = time.Second
)

// AttemptObserver is notified of every HTTP attempt outcome
type AttemptObserver interface {
	ObserveAttempt(result string)
}

// Fetcher implements service.JSONFetcher and service.TextFetcher with
// bounded linear-backoff retries.
type Fetcher struct {
	client          *http.Client
	maxResponseSize int64
	userAgent       string
	headers         map[string]string
	maxRetries      int
	baseDelay       time.Duration
	limiter         *rate.Limiter
	logWriter       repository.LogWriter
	observer        AttemptObserver
	logger          *slog.Logger
}

// Config holds HTTP fetcher configuration
type Config struct {
	Timeout         time.Duration
	MaxResponseSize int64
	UserAgent       string
	// Headers are added to every request, e.g. Referer for the catalog API
	Headers map[string]string
	// MaxRetries is the number of retries after the first attempt; negative means none
	MaxRetries int
	// BaseDelay is multiplied by the attempt number between attempts
	BaseDelay time.Duration
	// RateLimit caps requests per second; zero disables pacing
	RateLimit float64

	LogWriter repository.LogWriter
	Observer  AttemptObserver
	Logger    *slog.Logger
}

// HTTPAttempt is one line of the HTTP log
type HTTPAttempt struct {
	Time       time.Time `json:"time"`
	URL        string    `json:"url"`
	Attempt    int       `json:"attempt"`
	StatusCode int       `json:"status_code,omitempty"`
	Bytes      int       `json:"bytes"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// NewFetcher creates a new HTTP fetcher
func NewFetcher(config Config) *Fetcher {
	if config.MaxResponseSize <= 0 {
		config.MaxResponseSize = DefaultMaxResponseSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxResponseSize: config.MaxResponseSize,
		userAgent:       config.UserAgent,
		headers:         config.Headers,
		maxRetries:      config.MaxRetries,
		baseDelay:       config.BaseDelay,
		limiter:         limiter,
		logWriter:       config.LogWriter,
		observer:        config.Observer,
		logger:          logger,
	}
}

// FetchJSON implements service.JSONFetcher. Non-2xx statuses and undecodable
// bodies are failures; after the last retry it logs and returns false.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, v any) bool {
	err := f.withRetry(ctx, url, func(body []byte) error {
		return json.Unmarshal(body, v)
	})
	return err == nil
}

// FetchText implements service.TextFetcher
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	var text string
	err := f.withRetry(ctx, url, func(body []byte) error {
		text = string(body)
		return nil
	})
	return text, err
}

func (f *Fetcher) withRetry(ctx context.Context, url string, accept func([]byte) error) error {
	var err error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		var body []byte
		body, err = f.fetch(ctx, url, attempt)
		if err == nil {
			err = accept(body)
		}
		if err == nil {
			f.observe(metrics.ResultOK)
			return nil
		}
		if attempt == f.maxRetries || ctx.Err() != nil {
			break
		}

		f.observe(metrics.ResultRetried)
		f.logger.Debug("fetch: retrying", "url", url, "attempt", attempt+1, "error", err)
		if werr := sleep(ctx, f.baseDelay*time.Duration(attempt+1)); werr != nil {
			err = werr
			break
		}
	}

	f.observe(metrics.ResultFailed)
	f.logger.Warn("fetch: giving up", "url", url, "attempts", f.maxRetries+1, "error", err)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *Fetcher) observe(result string) {
	if f.observer != nil {
		f.observer.ObserveAttempt(result)
	}
}

// fetch performs a single GET and returns the body of a 2xx response
func (f *Fetcher) fetch(ctx context.Context, url string, attempt int) (body []byte, err error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	status := 0
	defer func() {
		f.writeLog(HTTPAttempt{
			Time:       start,
			URL:        url,
			Attempt:    attempt,
			StatusCode: status,
			Bytes:      len(body),
			DurationMs: time.Since(start).Milliseconds(),
			Error:      errString(err),
		})
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	// Limit response size
	body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{StatusCode: resp.StatusCode}
	}
	return body, nil
}

func (f *Fetcher) writeLog(a HTTPAttempt) {
	if f.logWriter == nil {
		return
	}
	if err := f.logWriter.WriteHTTPLog(a); err != nil {
		f.logger.Warn("fetch: write http log", "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
