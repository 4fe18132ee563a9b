// Package browser drives a headless Chrome instance over CDP and implements
// the schemas.BrowserController capability surface the agent consumes. One
// Session owns one browser process; the step loop is strictly sequential, so
// the session never multiplexes operations.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/config"
	"github.com/xkilldash9x/softlight-cli/internal/dom"
)

// Session is a live browser conversation. It owns the exec allocator, the
// browser context for the active tab, and the current/previous DOM snapshots
// used for new-element marking.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	// browserCtx is the first tab's context and anchors the browser process.
	// tabCtx points at the currently active tab and changes on tab switches.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	// tabs remembers the context attached to each known page target so tab
	// switches can reuse it instead of re-attaching.
	tabs      map[target.ID]tabHandle
	prevState *schemas.DOMState
	currState *schemas.DOMState
	closed    bool
}

// tabHandle pairs a tab's chromedp context with its cancel function.
type tabHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ schemas.BrowserController = (*Session)(nil)

// NewSession launches the browser and prepares the first tab.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disk-cache-size", "0"))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(int(cfg.ViewportWidth), int(cfg.ViewportHeight)))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, parseChromeFlag(arg))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	id := uuid.NewString()
	s := &Session{
		id:            id,
		cfg:           cfg,
		logger:        logger.Named("browser").With(zap.String("session_id", id[:8])),
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabCtx:        browserCtx,
		tabCancel:     browserCancel,
		tabs:          make(map[target.ID]tabHandle),
	}

	// Starting the browser eagerly surfaces launch failures here instead of
	// on the first navigation.
	startCtx, cancel := context.WithTimeout(browserCtx, s.navigationTimeout())
	defer cancel()
	if err := chromedp.Run(startCtx, emulation.SetDeviceMetricsOverride(
		s.viewportWidth(), s.viewportHeight(), 1, false)); err != nil {
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		s.tabs[c.Target.TargetID] = tabHandle{ctx: browserCtx, cancel: browserCancel}
	}

	s.logger.Info("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int64("viewport_width", s.viewportWidth()),
		zap.Int64("viewport_height", s.viewportHeight()),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GetState returns the current snapshot, extracting a fresh one when forced
// or when none exists yet. New-element marking compares against the previous
// snapshot of the same URL.
func (s *Session) GetState(ctx context.Context, forceRefresh bool) (*schemas.DOMState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceRefresh && s.currState != nil {
		return s.currState, nil
	}

	state, err := s.captureState(ctx)
	if err != nil {
		return nil, err
	}

	// Compare against the last snapshot actually captured, which lives in
	// prevState when the cache was invalidated by a mutating action.
	reference := s.currState
	if reference == nil {
		reference = s.prevState
	}
	dom.MarkNewElements(reference, state)

	s.prevState = reference
	s.currState = state
	return state, nil
}

// InvalidateState drops the cached snapshot so the next GetState extracts a
// fresh one. Called after any mutating action.
func (s *Session) InvalidateState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

func (s *Session) invalidateLocked() {
	if s.currState != nil {
		s.prevState = s.currState
	}
	s.currState = nil
}

// CurrentURL returns the URL of the most recent snapshot, or empty before
// the first extraction.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currState != nil {
		return s.currState.URL
	}
	if s.prevState != nil {
		return s.prevState.URL
	}
	return ""
}

// Close tears down the active tab, the browser, and the allocator.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, handle := range s.tabs {
		handle.cancel()
	}
	if s.tabCancel != nil {
		s.tabCancel()
	}
	s.browserCancel()
	s.allocCancel()
	s.logger.Info("Browser session closed")
	return nil
}

// current returns the active tab context under the session lock.
func (s *Session) current() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabCtx
}

// run executes chromedp actions against the active tab with a per-call
// timeout. The caller's context only gates entry; CDP traffic itself rides
// the tab context, which chromedp requires.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.current(), timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) actionTimeout() time.Duration {
	if s.cfg.ActionTimeout > 0 {
		return s.cfg.ActionTimeout
	}
	return 15 * time.Second
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return 45 * time.Second
}

func (s *Session) viewportWidth() int64 {
	if s.cfg.ViewportWidth > 0 {
		return s.cfg.ViewportWidth
	}
	return 1280
}

func (s *Session) viewportHeight() int64 {
	if s.cfg.ViewportHeight > 0 {
		return s.cfg.ViewportHeight
	}
	return 720
}

// parseChromeFlag turns a raw "--name=value" argument into an allocator
// option.
func parseChromeFlag(arg string) chromedp.ExecAllocatorOption {
	arg = strings.TrimLeft(arg, "-")
	if name, value, found := strings.Cut(arg, "="); found {
		return chromedp.Flag(name, value)
	}
	return chromedp.Flag(arg, true)
}
