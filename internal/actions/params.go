package actions

import (
	"fmt"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// Params is implemented by every action parameter struct. Validate runs
// after strict decoding and before dispatch.
type Params interface {
	Validate() error
}

// EmptyParams covers actions that take no parameters.
type EmptyParams struct{}

func (EmptyParams) Validate() error { return nil }

type SearchParams struct {
	Query  string `json:"query"`
	Engine string `json:"engine,omitempty"`
}

func (p *SearchParams) Validate() error {
	if p.Query == "" {
		return fmt.Errorf("search requires a query")
	}
	if p.Engine != "" {
		if _, ok := searchEngines[p.Engine]; !ok {
			return fmt.Errorf("unknown search engine %q", p.Engine)
		}
	}
	return nil
}

type NavigateParams struct {
	URL    string `json:"url"`
	NewTab bool   `json:"new_tab,omitempty"`
}

func (p *NavigateParams) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("navigate requires a url")
	}
	return nil
}

// ClickParams addresses an element by interaction index, or raw page
// coordinates as a fallback.
type ClickParams struct {
	Index int      `json:"index,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

func (p *ClickParams) Validate() error {
	if p.Index <= 0 && (p.X == nil || p.Y == nil) {
		return fmt.Errorf("click requires an index or both x and y")
	}
	return nil
}

type InputParams struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	// Clear defaults to true: typing replaces existing content.
	Clear *bool `json:"clear,omitempty"`
}

func (p *InputParams) Validate() error {
	if p.Index <= 0 {
		return fmt.Errorf("input requires an element index")
	}
	return nil
}

func (p *InputParams) clear() bool { return p.Clear == nil || *p.Clear }

type ScrollParams struct {
	Direction schemas.ScrollDirection `json:"direction"`
	Pages     float64                 `json:"pages,omitempty"`
	Index     int                     `json:"index,omitempty"`
}

func (p *ScrollParams) Validate() error {
	if p.Direction != schemas.ScrollUp && p.Direction != schemas.ScrollDown {
		return fmt.Errorf("scroll direction must be %q or %q", schemas.ScrollUp, schemas.ScrollDown)
	}
	if p.Pages < 0 {
		return fmt.Errorf("scroll pages must be positive")
	}
	return nil
}

type SendKeysParams struct {
	Keys string `json:"keys"`
}

func (p *SendKeysParams) Validate() error {
	if p.Keys == "" {
		return fmt.Errorf("send_keys requires keys")
	}
	return nil
}

const maxWaitSeconds = 30

type WaitParams struct {
	Seconds float64 `json:"seconds,omitempty"`
}

func (p *WaitParams) Validate() error {
	if p.Seconds < 0 {
		return fmt.Errorf("wait seconds must be positive")
	}
	if p.Seconds > maxWaitSeconds {
		return fmt.Errorf("wait is capped at %d seconds", maxWaitSeconds)
	}
	return nil
}

type ExtractParams struct {
	Goal string `json:"goal,omitempty"`
}

func (*ExtractParams) Validate() error { return nil }

type TabParams struct {
	TabID string `json:"tab_id"`
}

func (p *TabParams) Validate() error {
	if p.TabID == "" {
		return fmt.Errorf("a tab_id is required")
	}
	return nil
}

type DropdownOptionsParams struct {
	Index int `json:"index"`
}

func (p *DropdownOptionsParams) Validate() error {
	if p.Index <= 0 {
		return fmt.Errorf("dropdown_options requires an element index")
	}
	return nil
}

type SelectDropdownParams struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

func (p *SelectDropdownParams) Validate() error {
	if p.Index <= 0 {
		return fmt.Errorf("select_dropdown requires an element index")
	}
	if p.Value == "" {
		return fmt.Errorf("select_dropdown requires a value")
	}
	return nil
}

type EvaluateParams struct {
	Script string `json:"script"`
}

func (p *EvaluateParams) Validate() error {
	if p.Script == "" {
		return fmt.Errorf("evaluate requires a script")
	}
	return nil
}

type DoneParams struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

func (*DoneParams) Validate() error { return nil }
