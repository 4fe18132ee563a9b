package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/dom"
)

// pageGeometry mirrors the scroll metrics expression evaluated in the page.
type pageGeometry struct {
	ScrollX    float64 `json:"scrollX"`
	ScrollY    float64 `json:"scrollY"`
	ScrollMaxX float64 `json:"scrollMaxX"`
	ScrollMaxY float64 `json:"scrollMaxY"`
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
}

const geometryExpression = `({
	scrollX: window.scrollX,
	scrollY: window.scrollY,
	scrollMaxX: Math.max(0, document.documentElement.scrollWidth - window.innerWidth),
	scrollMaxY: Math.max(0, document.documentElement.scrollHeight - window.innerHeight),
	width: window.innerWidth,
	height: window.innerHeight,
})`

// captureState extracts one full snapshot: the three raw sources correlated
// by backend node id, page geometry, and the open tab list. The DOM tree is
// the only mandatory source; layout and accessibility degrade independently
// to partial data. Caller holds the session lock.
func (s *Session) captureState(ctx context.Context) (*schemas.DOMState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		root        *cdp.Node
		documents   []*domsnapshot.DocumentSnapshot
		stringTable []string
		axNodes     []*accessibility.Node
		geo         pageGeometry
		url         string
		title       string
	)

	runCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout())
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.Evaluate(geometryExpression, &geo),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// The three sources are independent CDP calls; capture them
			// concurrently over the same connection.
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				root, err = cdpdom.GetDocument().WithDepth(-1).WithPierce(true).Do(gctx)
				if err != nil {
					return fmt.Errorf("failed to get DOM tree: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				var err error
				documents, stringTable, err = domsnapshot.CaptureSnapshot(dom.SnapshotStyles).
					WithIncludePaintOrder(true).
					WithIncludeDOMRects(true).
					Do(gctx)
				if err != nil {
					s.logger.Warn("Layout snapshot unavailable, continuing without bounds/styles", zap.Error(err))
					documents, stringTable = nil, nil
				}
				return nil
			})
			g.Go(func() error {
				var err error
				axNodes, err = accessibility.GetFullAXTree().Do(gctx)
				if err != nil {
					s.logger.Warn("Accessibility tree unavailable, continuing without roles", zap.Error(err))
					axNodes = nil
				}
				return nil
			})
			return g.Wait()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser snapshot failed: %w", err)
	}

	lookups := dom.NewLookups()
	lookups.IngestSnapshot(documents, stringTable)
	lookups.IngestAXTree(axNodes)

	tree, err := dom.NewBuilder(lookups, s.logger).Build(root)
	if err != nil {
		return nil, fmt.Errorf("failed to build DOM tree: %w", err)
	}

	tabs, err := s.listTabs()
	if err != nil {
		s.logger.Warn("Tab listing unavailable", zap.Error(err))
		tabs = nil
	}

	state := &schemas.DOMState{
		RootID:      tree.RootID,
		Nodes:       tree.Nodes,
		SelectorMap: tree.SelectorMap,
		URL:         url,
		Title:       title,
		Geometry: schemas.PageGeometry{
			ViewportWidth:  orDefault(geo.Width, s.viewportWidth()),
			ViewportHeight: orDefault(geo.Height, s.viewportHeight()),
			ScrollX:        geo.ScrollX,
			ScrollY:        geo.ScrollY,
			ScrollMaxX:     geo.ScrollMaxX,
			ScrollMaxY:     geo.ScrollMaxY,
		},
		Tabs:       tabs,
		CapturedAt: time.Now(),
	}

	s.logger.Debug("Snapshot captured",
		zap.String("url", url),
		zap.Int("nodes", len(state.Nodes)),
		zap.Int("interactive", len(state.SelectorMap)),
	)
	return state, nil
}

func orDefault(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}
