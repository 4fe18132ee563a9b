package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// Navigate loads a URL in the active tab, or opens a fresh tab for it when
// newTab is set, and waits for the document body to become ready.
func (s *Session) Navigate(ctx context.Context, url string, newTab bool) error {
	if newTab {
		return s.openTab(ctx, url)
	}

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.PostLoadWait))
	}
	if err := s.run(ctx, s.navigationTimeout(), actions...); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	s.logger.Info("Navigated", zap.String("url", url))
	s.InvalidateState()
	return nil
}

// GoBack walks one entry back in session history.
func (s *Session) GoBack(ctx context.Context) error {
	err := s.run(ctx, s.navigationTimeout(),
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("history navigation failed: %w", err)
	}
	s.InvalidateState()
	return nil
}

// openTab creates a new page target, navigates it, and makes it the active
// tab.
func (s *Session) openTab(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	base := s.browserCtx
	s.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(base)
	runCtx, cancel := context.WithTimeout(tabCtx, s.navigationTimeout())
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		tabCancel()
		return fmt.Errorf("failed to open %s in a new tab: %w", url, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		s.tabs[c.Target.TargetID] = tabHandle{ctx: tabCtx, cancel: tabCancel}
	}
	s.tabCtx, s.tabCancel = tabCtx, tabCancel
	s.invalidateLocked()

	s.logger.Info("Opened new tab", zap.String("url", url))
	return nil
}

// SwitchTab activates the open tab whose short id matches.
func (s *Session) SwitchTab(ctx context.Context, shortID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, _, err := s.resolveTabLocked(shortID)
	if err != nil {
		return err
	}
	id := target.ID(tab.ID)
	if id == s.activeTargetID() {
		return nil
	}

	handle := s.attachLocked(id)
	runCtx, cancel := context.WithTimeout(handle.ctx, s.actionTimeout())
	defer cancel()
	if err := chromedp.Run(runCtx, page.BringToFront()); err != nil {
		return fmt.Errorf("failed to activate tab %s: %w", shortID, err)
	}

	s.tabCtx, s.tabCancel = handle.ctx, handle.cancel
	s.invalidateLocked()

	s.logger.Info("Switched tab", zap.String("tab", shortID), zap.String("url", tab.URL))
	return nil
}

// CloseTab closes the tab whose short id matches. Closing the active tab
// hands focus to another open tab; the last remaining tab cannot be closed.
func (s *Session) CloseTab(ctx context.Context, shortID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, open, err := s.resolveTabLocked(shortID)
	if err != nil {
		return err
	}
	if open <= 1 {
		return fmt.Errorf("cannot close tab %s: it is the last open tab", shortID)
	}

	id := target.ID(tab.ID)
	wasActive := id == s.activeTargetID()

	handle := s.attachLocked(id)
	runCtx, cancel := context.WithTimeout(handle.ctx, s.actionTimeout())
	closeErr := chromedp.Run(runCtx, page.Close())
	cancel()

	// The first tab's context anchors the browser process; cancelling it
	// would tear the whole session down.
	if handle.ctx != s.browserCtx {
		handle.cancel()
	}
	delete(s.tabs, id)

	if closeErr != nil {
		return fmt.Errorf("failed to close tab %s: %w", shortID, closeErr)
	}
	if wasActive {
		if err := s.focusRemainingLocked(id); err != nil {
			return err
		}
	}
	s.invalidateLocked()

	s.logger.Info("Closed tab", zap.String("tab", shortID))
	return nil
}

// listTabs enumerates the open page targets. Caller holds the session lock.
func (s *Session) listTabs() ([]schemas.TabInfo, error) {
	infos, err := chromedp.Targets(s.tabCtx)
	if err != nil {
		return nil, err
	}
	active := s.activeTargetID()
	tabs := make([]schemas.TabInfo, 0, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		tabs = append(tabs, schemas.TabInfo{
			ID:     string(info.TargetID),
			URL:    info.URL,
			Title:  info.Title,
			Active: info.TargetID == active,
		})
	}
	return tabs, nil
}

// resolveTabLocked finds the open tab matching a short id and reports how
// many page targets are open.
func (s *Session) resolveTabLocked(shortID string) (schemas.TabInfo, int, error) {
	tabs, err := s.listTabs()
	if err != nil {
		return schemas.TabInfo{}, 0, fmt.Errorf("failed to list tabs: %w", err)
	}
	for _, tab := range tabs {
		if tab.ShortID() == shortID {
			return tab, len(tabs), nil
		}
	}
	return schemas.TabInfo{}, len(tabs), fmt.Errorf("no open tab matches id %q", shortID)
}

// attachLocked returns the context for a page target, attaching to it on
// first use.
func (s *Session) attachLocked(id target.ID) tabHandle {
	if handle, ok := s.tabs[id]; ok {
		return handle
	}
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
	handle := tabHandle{ctx: tabCtx, cancel: tabCancel}
	s.tabs[id] = handle
	return handle
}

// focusRemainingLocked moves focus to any page target other than the one
// just closed.
func (s *Session) focusRemainingLocked(closed target.ID) error {
	infos, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return fmt.Errorf("failed to list tabs: %w", err)
	}
	for _, info := range infos {
		if info.Type != "page" || info.TargetID == closed {
			continue
		}
		handle := s.attachLocked(info.TargetID)
		s.tabCtx, s.tabCancel = handle.ctx, handle.cancel
		runCtx, cancel := context.WithTimeout(handle.ctx, s.actionTimeout())
		defer cancel()
		if err := chromedp.Run(runCtx, page.BringToFront()); err != nil {
			s.logger.Warn("Could not bring fallback tab to front", zap.Error(err))
		}
		return nil
	}
	return fmt.Errorf("no tabs left to focus")
}

func (s *Session) activeTargetID() target.ID {
	if c := chromedp.FromContext(s.tabCtx); c != nil && c.Target != nil {
		return c.Target.TargetID
	}
	return ""
}
