package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// resolveNodeID pushes a backend node id into the agent's frontend so the
// node can be addressed by live DOM commands.
func resolveNodeID(ctx context.Context, backendID int64) (cdp.NodeID, error) {
	ids, err := cdpdom.PushNodesByBackendIDsToFrontend([]cdp.BackendNodeID{cdp.BackendNodeID(backendID)}).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve element: %w", err)
	}
	if len(ids) == 0 || ids[0] == 0 {
		return 0, fmt.Errorf("element no longer exists on the page")
	}
	return ids[0], nil
}

// ClickElement clicks the center of the element's content box and returns
// the page coordinates of the click. Falls back to the coordinates recorded
// at snapshot time when the live box model is unavailable.
func (s *Session) ClickElement(ctx context.Context, entry *schemas.SelectorEntry) (schemas.Point, error) {
	if entry == nil {
		return schemas.Point{}, fmt.Errorf("no element selected")
	}

	var point schemas.Point
	err := s.run(ctx, s.actionTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		nodeID, err := resolveNodeID(ctx, entry.BackendID)
		if err != nil {
			return err
		}
		if err := cdpdom.ScrollIntoViewIfNeeded().WithNodeID(nodeID).Do(ctx); err != nil {
			s.logger.Debug("Scroll into view failed, clicking anyway", zap.Error(err))
		}

		box, boxErr := cdpdom.GetBoxModel().WithNodeID(nodeID).Do(ctx)
		switch {
		case boxErr == nil && len(box.Content) >= 8:
			point = schemas.Point{
				X: (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4,
				Y: (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4,
			}
		case entry.Center.X != 0 || entry.Center.Y != 0:
			point = entry.Center
		default:
			return fmt.Errorf("could not determine element position: %v", boxErr)
		}
		return chromedp.MouseClickXY(point.X, point.Y).Do(ctx)
	}))
	if err != nil {
		return schemas.Point{}, err
	}

	s.InvalidateState()
	s.logger.Debug("Clicked element",
		zap.Int("index", entry.Index),
		zap.Float64("x", point.X),
		zap.Float64("y", point.Y),
	)
	return point, nil
}

// ClickAt dispatches a raw click at page coordinates.
func (s *Session) ClickAt(ctx context.Context, p schemas.Point) error {
	if err := s.run(ctx, s.actionTimeout(), chromedp.MouseClickXY(p.X, p.Y)); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f) failed: %w", p.X, p.Y, err)
	}
	s.InvalidateState()
	return nil
}

// TypeText focuses the element and types text as trusted key events. When
// clear is set the existing content is select-all deleted first.
func (s *Session) TypeText(ctx context.Context, entry *schemas.SelectorEntry, text string, clear bool) error {
	if entry == nil {
		return fmt.Errorf("no element selected")
	}

	err := s.run(ctx, s.actionTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		nodeID, err := resolveNodeID(ctx, entry.BackendID)
		if err != nil {
			return err
		}
		if err := cdpdom.Focus().WithNodeID(nodeID).Do(ctx); err != nil {
			return fmt.Errorf("failed to focus element: %w", err)
		}
		if clear {
			if err := chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.KeyEvent(kb.Delete).Do(ctx); err != nil {
				return err
			}
		}
		if text == "" {
			return nil
		}
		return chromedp.KeyEvent(text).Do(ctx)
	}))
	if err != nil {
		return err
	}

	s.InvalidateState()
	s.logger.Debug("Typed text", zap.Int("index", entry.Index), zap.Int("length", len(text)))
	return nil
}

// namedKeys maps chord key names to the raw key runes the input domain
// understands.
var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"space":      " ",
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"home":       kb.Home,
	"end":        kb.End,
}

// parseKeyChord splits a chord like "Control+A" or "Escape" into the key
// text and its modifier set.
func parseKeyChord(chord string) (string, []input.Modifier, error) {
	parts := strings.Split(chord, "+")
	var mods []input.Modifier
	for _, part := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "control", "ctrl":
			mods = append(mods, input.ModifierCtrl)
		case "alt":
			mods = append(mods, input.ModifierAlt)
		case "shift":
			mods = append(mods, input.ModifierShift)
		case "meta", "cmd", "command":
			mods = append(mods, input.ModifierMeta)
		default:
			return "", nil, fmt.Errorf("unknown key modifier %q", part)
		}
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return "", nil, fmt.Errorf("key chord %q names no key", chord)
	}
	if named, ok := namedKeys[strings.ToLower(key)]; ok {
		return named, mods, nil
	}
	if len(mods) > 0 {
		key = strings.ToLower(key)
	}
	return key, mods, nil
}

// SendKeys dispatches raw keyboard input to whatever currently has focus.
func (s *Session) SendKeys(ctx context.Context, keys string) error {
	text, mods, err := parseKeyChord(keys)
	if err != nil {
		return err
	}
	if err := s.run(ctx, s.actionTimeout(), chromedp.KeyEvent(text, chromedp.KeyModifiers(mods...))); err != nil {
		return fmt.Errorf("failed to send keys %q: %w", keys, err)
	}
	s.InvalidateState()
	return nil
}

const scrollElementScript = `(() => {
	const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (el) { el.scrollBy(0, %f); } else { window.scrollBy(0, %f); }
})()`

// Scroll moves the window by whole viewport pages, or the addressed element
// when an entry is given.
func (s *Session) Scroll(ctx context.Context, direction schemas.ScrollDirection, pages float64, entry *schemas.SelectorEntry) error {
	if pages <= 0 {
		pages = 1
	}
	delta := pages * float64(s.viewportHeight())
	if direction == schemas.ScrollUp {
		delta = -delta
	}

	script := fmt.Sprintf("window.scrollBy(0, %f)", delta)
	if entry != nil && entry.XPath != "" {
		script = fmt.Sprintf(scrollElementScript, strconv.Quote(entry.XPath), delta, delta)
	}
	if err := s.run(ctx, s.actionTimeout(), chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}

	s.InvalidateState()
	return nil
}

// dropdownResult is the shape the select scripts hand back.
type dropdownResult struct {
	IsSelect bool                     `json:"isSelect"`
	Found    bool                     `json:"found"`
	Label    string                   `json:"label"`
	Options  []schemas.DropdownOption `json:"options"`
}

const dropdownOptionsScript = `(() => {
	const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el || el.tagName !== 'SELECT') return {isSelect: false, options: []};
	const options = Array.from(el.options).map(o => ({
		value: o.value,
		label: (o.label || o.text).trim(),
		selected: o.selected,
	}));
	return {isSelect: true, options: options};
})()`

const selectDropdownScript = `(() => {
	const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el || el.tagName !== 'SELECT') return {isSelect: false, found: false, label: ''};
	const want = %s;
	for (const o of Array.from(el.options)) {
		if (o.value === want || (o.label || o.text).trim() === want) {
			el.value = o.value;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return {isSelect: true, found: true, label: (o.label || o.text).trim()};
		}
	}
	return {isSelect: true, found: false, label: ''};
})()`

// DropdownOptions lists the options of a select element.
func (s *Session) DropdownOptions(ctx context.Context, entry *schemas.SelectorEntry) ([]schemas.DropdownOption, error) {
	if entry == nil || entry.XPath == "" {
		return nil, fmt.Errorf("no element selected")
	}

	var result dropdownResult
	script := fmt.Sprintf(dropdownOptionsScript, strconv.Quote(entry.XPath))
	if err := s.run(ctx, s.actionTimeout(), chromedp.Evaluate(script, &result)); err != nil {
		return nil, fmt.Errorf("failed to read dropdown options: %w", err)
	}
	if !result.IsSelect {
		return nil, fmt.Errorf("element [%d] is not a select", entry.Index)
	}
	return result.Options, nil
}

// SelectDropdown picks an option by value or visible label and returns the
// label that ended up selected.
func (s *Session) SelectDropdown(ctx context.Context, entry *schemas.SelectorEntry, value string) (string, error) {
	if entry == nil || entry.XPath == "" {
		return "", fmt.Errorf("no element selected")
	}

	var result dropdownResult
	script := fmt.Sprintf(selectDropdownScript, strconv.Quote(entry.XPath), strconv.Quote(value))
	if err := s.run(ctx, s.actionTimeout(), chromedp.Evaluate(script, &result)); err != nil {
		return "", fmt.Errorf("failed to select dropdown option: %w", err)
	}
	if !result.IsSelect {
		return "", fmt.Errorf("element [%d] is not a select", entry.Index)
	}
	if !result.Found {
		return "", fmt.Errorf("no option matches %q", value)
	}

	s.InvalidateState()
	return result.Label, nil
}

// UploadFile attaches a local file to a file input element.
func (s *Session) UploadFile(ctx context.Context, entry *schemas.SelectorEntry, path string) error {
	if entry == nil {
		return fmt.Errorf("no element selected")
	}

	err := s.run(ctx, s.actionTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		nodeID, err := resolveNodeID(ctx, entry.BackendID)
		if err != nil {
			return err
		}
		return cdpdom.SetFileInputFiles([]string{path}).WithNodeID(nodeID).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("file upload failed: %w", err)
	}

	s.InvalidateState()
	return nil
}

// Screenshot captures the viewport as base64 PNG.
func (s *Session) Screenshot(ctx context.Context) (string, error) {
	var buf []byte
	if err := s.run(ctx, s.actionTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// EvaluateScript runs a JavaScript expression in the page, awaiting
// promises, and returns the result as a string. Plain string results come
// back unquoted; everything else is returned as JSON.
func (s *Session) EvaluateScript(ctx context.Context, script string) (string, error) {
	var raw json.RawMessage
	err := s.run(ctx, s.actionTimeout(), chromedp.Evaluate(script, &raw,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		}))
	if err != nil {
		return "", fmt.Errorf("script evaluation failed: %w", err)
	}

	// Scripts can mutate the page, so the cached snapshot cannot be trusted.
	s.InvalidateState()

	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str, nil
	}
	return strings.TrimSpace(string(raw)), nil
}
