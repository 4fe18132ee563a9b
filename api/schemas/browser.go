package schemas

import "context"

// -- Browser Backend Contract --

// ScrollDirection selects the scroll axis sign for scroll operations.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// DropdownOption is one entry of a select element.
type DropdownOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// BrowserController is the capability surface the agent core consumes. The
// core never drives the browser directly; everything goes through this
// contract so the loop can be exercised against a fake in tests.
//
//go:generate mockery --name BrowserController --output ../../internal/mocks --outpkg mocks
type BrowserController interface {
	// Navigate loads a URL, optionally in a new tab, and waits for the page
	// to become ready.
	Navigate(ctx context.Context, url string, newTab bool) error
	// GoBack walks one entry back in session history.
	GoBack(ctx context.Context) error

	// ClickElement clicks the element addressed by a selector entry and
	// returns the page coordinates of the click.
	ClickElement(ctx context.Context, entry *SelectorEntry) (Point, error)
	// ClickAt dispatches a raw click at page coordinates.
	ClickAt(ctx context.Context, p Point) error
	// TypeText focuses the element and types text, clearing first if asked.
	TypeText(ctx context.Context, entry *SelectorEntry, text string, clear bool) error
	// SendKeys dispatches raw key input (chords like "Escape", "Control+A").
	SendKeys(ctx context.Context, keys string) error
	// Scroll moves the window, or the element when entry is non-nil, by the
	// given number of viewport pages.
	Scroll(ctx context.Context, direction ScrollDirection, pages float64, entry *SelectorEntry) error

	// DropdownOptions lists the options of a select element.
	DropdownOptions(ctx context.Context, entry *SelectorEntry) ([]DropdownOption, error)
	// SelectDropdown picks a select option by value or visible label and
	// returns the label that ended up selected.
	SelectDropdown(ctx context.Context, entry *SelectorEntry, value string) (string, error)
	// UploadFile attaches a local file to a file input element.
	UploadFile(ctx context.Context, entry *SelectorEntry, path string) error

	// Screenshot captures the viewport as base64 PNG.
	Screenshot(ctx context.Context) (string, error)
	// ExtractReadableText reduces the current page HTML to readable text.
	ExtractReadableText(ctx context.Context) (string, error)
	// EvaluateScript runs a JavaScript expression and returns a stringified
	// result.
	EvaluateScript(ctx context.Context, script string) (string, error)

	// SwitchTab activates the tab matching a short id; CloseTab closes it.
	SwitchTab(ctx context.Context, shortID string) error
	CloseTab(ctx context.Context, shortID string) error

	// GetState returns the current snapshot, forcing a fresh extraction when
	// forceRefresh is set. A cached state is never valid across steps.
	GetState(ctx context.Context, forceRefresh bool) (*DOMState, error)
	// CurrentURL returns the URL of the most recent snapshot.
	CurrentURL() string

	// Close tears the session down.
	Close(ctx context.Context) error
}
