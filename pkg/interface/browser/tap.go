// Package browser drives a Chrome instance through go-rod and forwards the
// URLs of completed catalog requests to the collection pipeline.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const navigateTimeout = 30 * time.Second

// Sink receives observed request URLs
type Sink interface {
	OnAPIListRequest(url string)
}

// Config configures the tap
type Config struct {
	// ControlURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local one.
	ControlURL string
	// StartURL is opened in the first tab
	StartURL string
	Headless bool
	Logger   *slog.Logger
}

// Tap watches every page tab of a browser for network responses
type Tap struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	watched map[proto.TargetTargetID]bool
}

// New creates a tap feeding sink
func New(cfg Config, sink Sink) *Tap {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tap{
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		watched: make(map[proto.TargetTargetID]bool),
	}
}

// Run opens the browser and forwards responses until ctx is done
func (t *Tap) Run(ctx context.Context) error {
	b, cleanup, err := t.connect()
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("tap: create tab: %w", err)
	}
	t.watch(ctx, page)

	// tabs the user opens later
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		t.logger.Warn("tap: target discovery failed", "error", err)
	}
	go b.Context(ctx).EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
			return
		}
		p, err := b.PageFromTarget(e.TargetInfo.TargetID)
		if err != nil {
			t.logger.Warn("tap: attach tab failed", "target", e.TargetInfo.TargetID, "error", err)
			return
		}
		t.watch(ctx, p)
	})()

	if t.cfg.StartURL != "" {
		navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
		err := page.Context(navCtx).Navigate(t.cfg.StartURL)
		cancel()
		if err != nil {
			t.logger.Warn("tap: navigate failed", "url", t.cfg.StartURL, "error", err)
		}
	}

	t.logger.Info("tap: watching browser", "start_url", t.cfg.StartURL)
	<-ctx.Done()
	return nil
}

func (t *Tap) connect() (*rod.Browser, func(), error) {
	wsURL := t.cfg.ControlURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().
			Headless(t.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("tap: launch: %w", err)
		}
		wsURL = u
		t.logger.Info("tap: launched local chrome", "url", wsURL, "headless", t.cfg.Headless)
	} else {
		t.logger.Info("tap: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, nil, fmt.Errorf("tap: connect: %w", err)
	}

	cleanup := func() {
		// a remote browser belongs to its owner
		if l != nil {
			b.Close()
			l.Cleanup()
		}
	}
	return b, cleanup, nil
}

func (t *Tap) watch(ctx context.Context, page *rod.Page) {
	t.mu.Lock()
	if t.watched[page.TargetID] {
		t.mu.Unlock()
		return
	}
	t.watched[page.TargetID] = true
	t.mu.Unlock()

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		t.logger.Warn("tap: enable network failed", "target", page.TargetID, "error", err)
		return
	}
	go page.Context(ctx).EachEvent(func(e *proto.NetworkResponseReceived) {
		if forward(e) {
			t.sink.OnAPIListRequest(e.Response.URL)
		}
	})()
}

// forward reports whether a response belongs to a script-issued request
func forward(e *proto.NetworkResponseReceived) bool {
	if e.Response == nil || e.Response.URL == "" {
		return false
	}
	return e.Type == proto.NetworkResourceTypeXHR || e.Type == proto.NetworkResourceTypeFetch
}
