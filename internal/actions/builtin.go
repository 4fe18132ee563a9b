package actions

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/dom"
)

// searchEngines maps engine names to query URL templates.
var searchEngines = map[string]string{
	"google":     "https://www.google.com/search?q=%s&udm=14",
	"bing":       "https://www.bing.com/search?q=%s",
	"duckduckgo": "https://duckduckgo.com/?q=%s",
}

const defaultSearchEngine = "google"

// evalResultLimit caps the stringified result of the evaluate action before
// it enters the oracle context.
const evalResultLimit = 4000

// extractResultLimit caps readable-text extraction the same way.
const extractResultLimit = 20000

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:         "search",
			Docs:         `{"query": "...", "engine": "google|bing|duckduckgo"} - open a web search results page`,
			Prototype:    func() Params { return &SearchParams{} },
			Handler:      handleSearch,
			NeedsBrowser: true,
		},
		{
			Name:         "navigate",
			Docs:         `{"url": "...", "new_tab": false} - load a URL, optionally in a new tab`,
			Prototype:    func() Params { return &NavigateParams{} },
			Handler:      handleNavigate,
			NeedsBrowser: true,
		},
		{
			Name:         "go_back",
			Docs:         `{} - go back one entry in history`,
			Prototype:    func() Params { return &EmptyParams{} },
			Handler:      handleGoBack,
			NeedsBrowser: true,
		},
		{
			Name:         "click",
			Docs:         `{"index": N} - click an interactive element, or {"x": N, "y": N} for raw coordinates`,
			Prototype:    func() Params { return &ClickParams{} },
			Handler:      handleClick,
			NeedsBrowser: true,
		},
		{
			Name:         "input",
			Docs:         `{"index": N, "text": "...", "clear": true} - type into an editable element`,
			Prototype:    func() Params { return &InputParams{} },
			Handler:      handleInput,
			NeedsBrowser: true,
		},
		{
			Name:         "scroll",
			Docs:         `{"direction": "up|down", "pages": 1, "index": N} - scroll the window, or element N when given`,
			Prototype:    func() Params { return &ScrollParams{} },
			Handler:      handleScroll,
			NeedsBrowser: true,
		},
		{
			Name:         "send_keys",
			Docs:         `{"keys": "Escape"} - send a key or chord like Control+A to the focused element`,
			Prototype:    func() Params { return &SendKeysParams{} },
			Handler:      handleSendKeys,
			NeedsBrowser: true,
		},
		{
			Name:      "wait",
			Docs:      `{"seconds": 3} - pause up to 30 seconds`,
			Prototype: func() Params { return &WaitParams{} },
			Handler:   handleWait,
			Passive:   true,
		},
		{
			Name:         "extract",
			Docs:         `{"goal": "..."} - reduce the page to readable text for analysis`,
			Prototype:    func() Params { return &ExtractParams{} },
			Handler:      handleExtract,
			NeedsBrowser: true,
			Passive:      true,
		},
		{
			Name:         "screenshot",
			Docs:         `{} - attach a screenshot to the next observation`,
			Prototype:    func() Params { return &EmptyParams{} },
			Handler:      handleScreenshot,
			NeedsBrowser: true,
			Passive:      true,
		},
		{
			Name:         "switch_tab",
			Docs:         `{"tab_id": "xxxx"} - activate the tab with the given 4-char id`,
			Prototype:    func() Params { return &TabParams{} },
			Handler:      handleSwitchTab,
			NeedsBrowser: true,
		},
		{
			Name:         "close_tab",
			Docs:         `{"tab_id": "xxxx"} - close the tab with the given 4-char id`,
			Prototype:    func() Params { return &TabParams{} },
			Handler:      handleCloseTab,
			NeedsBrowser: true,
		},
		{
			Name:         "dropdown_options",
			Docs:         `{"index": N} - list the options of a select element`,
			Prototype:    func() Params { return &DropdownOptionsParams{} },
			Handler:      handleDropdownOptions,
			NeedsBrowser: true,
		},
		{
			Name:         "select_dropdown",
			Docs:         `{"index": N, "value": "..."} - pick a select option by value or label`,
			Prototype:    func() Params { return &SelectDropdownParams{} },
			Handler:      handleSelectDropdown,
			NeedsBrowser: true,
		},
		{
			Name:         "evaluate",
			Docs:         `{"script": "..."} - run JavaScript in the page and return the result`,
			Prototype:    func() Params { return &EvaluateParams{} },
			Handler:      handleEvaluate,
			NeedsBrowser: true,
		},
		{
			Name:      "done",
			Docs:      `{"text": "...", "success": true} - finish the task with a final answer`,
			Prototype: func() Params { return &DoneParams{} },
			Handler:   handleDone,
			Passive:   true,
			Terminal:  true,
		},
	}
}

func handleSearch(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*SearchParams)
	engine := p.Engine
	if engine == "" {
		engine = defaultSearchEngine
	}
	searchURL := fmt.Sprintf(searchEngines[engine], url.QueryEscape(p.Query))
	if err := env.Browser.Navigate(ctx, searchURL, false); err != nil {
		return schemas.ResultError(err), nil
	}
	msg := fmt.Sprintf("Searched %s for %q", engine, p.Query)
	return schemas.ResultWithMemory(msg, msg), nil
}

func handleNavigate(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*NavigateParams)
	if err := env.Browser.Navigate(ctx, p.URL, p.NewTab); err != nil {
		return schemas.ResultError(err), nil
	}
	msg := fmt.Sprintf("Navigated to %s", p.URL)
	if p.NewTab {
		msg = fmt.Sprintf("Opened new tab with %s", p.URL)
	}
	return schemas.ResultWithMemory(msg, msg), nil
}

func handleGoBack(ctx context.Context, env *Env, _ Params) (*schemas.ActionResult, error) {
	if err := env.Browser.GoBack(ctx); err != nil {
		return schemas.ResultError(err), nil
	}
	return schemas.ResultContent("Navigated back"), nil
}

func handleClick(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*ClickParams)
	if p.Index <= 0 {
		point := schemas.Point{X: *p.X, Y: *p.Y}
		if err := env.Browser.ClickAt(ctx, point); err != nil {
			return schemas.ResultError(err), nil
		}
		return schemas.ResultContent(fmt.Sprintf("Clicked at (%.0f, %.0f)", point.X, point.Y)), nil
	}

	entry, err := env.selector(p.Index)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	point, err := env.Browser.ClickElement(ctx, entry)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	msg := fmt.Sprintf("Clicked %s [%d] at (%.0f, %.0f)", dom.DescribeSelector(entry), p.Index, point.X, point.Y)
	return schemas.ResultContent(msg), nil
}

func handleInput(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*InputParams)
	entry, err := env.selector(p.Index)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	if err := env.Browser.TypeText(ctx, entry, p.Text, p.clear()); err != nil {
		return schemas.ResultError(err), nil
	}
	msg := fmt.Sprintf("Typed %q into %s [%d]", p.Text, dom.DescribeSelector(entry), p.Index)
	return schemas.ResultWithMemory(msg, msg), nil
}

func handleScroll(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*ScrollParams)
	var entry *schemas.SelectorEntry
	if p.Index > 0 {
		var err error
		if entry, err = env.selector(p.Index); err != nil {
			return schemas.ResultError(err), nil
		}
	}
	pages := p.Pages
	if pages == 0 {
		pages = 1
	}
	if err := env.Browser.Scroll(ctx, p.Direction, pages, entry); err != nil {
		return schemas.ResultError(err), nil
	}
	scope := "the page"
	if entry != nil {
		scope = fmt.Sprintf("%s [%d]", dom.DescribeSelector(entry), p.Index)
	}
	return schemas.ResultContent(fmt.Sprintf("Scrolled %s %s by %.1f pages", scope, p.Direction, pages)), nil
}

func handleSendKeys(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*SendKeysParams)
	if err := env.Browser.SendKeys(ctx, p.Keys); err != nil {
		return schemas.ResultError(err), nil
	}
	return schemas.ResultContent(fmt.Sprintf("Sent keys %q", p.Keys)), nil
}

func handleWait(ctx context.Context, _ *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*WaitParams)
	seconds := p.Seconds
	if seconds == 0 {
		seconds = 3
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return schemas.ResultContent(fmt.Sprintf("Waited %.1f seconds", seconds)), nil
}

func handleExtract(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*ExtractParams)
	text, err := env.Browser.ExtractReadableText(ctx)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	if len(text) > extractResultLimit {
		text = text[:extractResultLimit] + "\n[content truncated]"
	}
	memory := "Extracted page content"
	if p.Goal != "" {
		memory = fmt.Sprintf("Extracted page content for goal: %s", p.Goal)
	}
	return schemas.ResultWithMemory(text, memory), nil
}

func handleScreenshot(context.Context, *Env, Params) (*schemas.ActionResult, error) {
	return &schemas.ActionResult{
		ExtractedContent:  "Screenshot will be attached to the next observation",
		RequestScreenshot: true,
	}, nil
}

func handleSwitchTab(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*TabParams)
	if err := env.Browser.SwitchTab(ctx, p.TabID); err != nil {
		return schemas.ResultError(err), nil
	}
	return schemas.ResultContent(fmt.Sprintf("Switched to tab %s", p.TabID)), nil
}

func handleCloseTab(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*TabParams)
	if err := env.Browser.CloseTab(ctx, p.TabID); err != nil {
		return schemas.ResultError(err), nil
	}
	return schemas.ResultContent(fmt.Sprintf("Closed tab %s", p.TabID)), nil
}

func handleDropdownOptions(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*DropdownOptionsParams)
	entry, err := env.selector(p.Index)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	options, err := env.Browser.DropdownOptions(ctx, entry)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	if len(options) == 0 {
		return schemas.ResultContent(fmt.Sprintf("Dropdown [%d] has no options", p.Index)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Options for %s [%d]:\n", dom.DescribeSelector(entry), p.Index)
	for i, opt := range options {
		marker := " "
		if opt.Selected {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s%d: value=%q label=%q\n", marker, i, opt.Value, opt.Label)
	}
	return schemas.ResultContent(strings.TrimRight(sb.String(), "\n")), nil
}

func handleSelectDropdown(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*SelectDropdownParams)
	entry, err := env.selector(p.Index)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	label, err := env.Browser.SelectDropdown(ctx, entry, p.Value)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	msg := fmt.Sprintf("Selected option %q in %s [%d]", label, dom.DescribeSelector(entry), p.Index)
	return schemas.ResultWithMemory(msg, msg), nil
}

func handleEvaluate(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*EvaluateParams)
	result, err := env.Browser.EvaluateScript(ctx, p.Script)
	if err != nil {
		return schemas.ResultError(err), nil
	}
	if len(result) > evalResultLimit {
		result = result[:evalResultLimit] + "\n[result truncated]"
	}
	return schemas.ResultContent(fmt.Sprintf("Script result: %s", result)), nil
}

func handleDone(_ context.Context, _ *Env, params Params) (*schemas.ActionResult, error) {
	p := params.(*DoneParams)
	return schemas.DoneResult(p.Text, p.Success), nil
}
