// Package signature derives the catalog signing secrets from the provider's
// application bundle.
//
// Derivation scrapes a minified script with regular expressions. It is tied to
// the bundle layout of the day and fails as soon as the provider restructures
// that code; callers treat ErrParamsUnavailable as "details cannot be signed
// right now" and carry on.
package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/service"
)

// DefaultLandingURL is the page that references the application bundle
const DefaultLandingURL = "https://2gis.ru/"

// ErrParamsUnavailable is returned when the secrets could not be derived
var ErrParamsUnavailable = errors.New("signature: params unavailable")

// DerivationObserver is notified of every derivation outcome
type DerivationObserver interface {
	ObserveDerivation(ok bool)
}

// Engine implements service.SecretProvider
type Engine struct {
	fetcher    service.TextFetcher
	landingURL string
	observer   DerivationObserver
	logger     *slog.Logger

	mu     sync.Mutex
	params entity.SecretParams
	// derive serializes derivations so concurrent captures share one
	derive sync.Mutex
}

// Config holds engine configuration
type Config struct {
	LandingURL string
	Observer   DerivationObserver
	Logger     *slog.Logger
}

// NewEngine creates an engine with empty secrets
func NewEngine(fetcher service.TextFetcher, config Config) *Engine {
	if config.LandingURL == "" {
		config.LandingURL = DefaultLandingURL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		fetcher:    fetcher,
		landingURL: config.LandingURL,
		observer:   config.Observer,
		logger:     logger,
	}
}

// Current returns the secrets as they are now
func (e *Engine) Current() entity.SecretParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Invalidate drops the secrets so that the next EnsureParams re-derives them
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = entity.SecretParams{}
}

// EnsureParams returns the cached secrets when complete, otherwise derives
// them from the landing page and its application bundle.
func (e *Engine) EnsureParams(ctx context.Context) (entity.SecretParams, error) {
	if p := e.Current(); p.Complete() {
		return p, nil
	}

	e.derive.Lock()
	defer e.derive.Unlock()

	// another capture may have finished deriving while we waited
	if p := e.Current(); p.Complete() {
		return p, nil
	}

	p, err := e.fetchParams(ctx)
	if e.observer != nil {
		e.observer.ObserveDerivation(err == nil)
	}
	if err != nil {
		e.logger.Error("signature: derivation failed", "error", err)
		return entity.SecretParams{}, err
	}

	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
	e.logger.Info("signature: params loaded", "multiplier", p.Multiplier, "increment", p.Increment)
	return p, nil
}

func (e *Engine) fetchParams(ctx context.Context) (entity.SecretParams, error) {
	html, err := e.fetcher.FetchText(ctx, e.landingURL)
	if err != nil {
		return entity.SecretParams{}, fmt.Errorf("%w: fetch landing page: %v", ErrParamsUnavailable, err)
	}

	bundleURL := FindBundleURL(html)
	if bundleURL == "" {
		return entity.SecretParams{}, fmt.Errorf("%w: application script url not found", ErrParamsUnavailable)
	}

	script, err := e.fetcher.FetchText(ctx, bundleURL)
	if err != nil {
		return entity.SecretParams{}, fmt.Errorf("%w: fetch %s: %v", ErrParamsUnavailable, bundleURL, err)
	}

	var p entity.SecretParams
	var ok bool
	if p.Multiplier, p.Increment, ok = ParseMultipliers(script); !ok {
		return entity.SecretParams{}, fmt.Errorf("%w: multiplier array not found in %s", ErrParamsUnavailable, bundleURL)
	}
	if p.Salt, ok = ParseSalt(script); !ok {
		return entity.SecretParams{}, fmt.Errorf("%w: salt not found in %s", ErrParamsUnavailable, bundleURL)
	}
	if !p.Complete() {
		return entity.SecretParams{}, fmt.Errorf("%w: derived params incomplete", ErrParamsUnavailable)
	}
	return p, nil
}
