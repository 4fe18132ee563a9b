// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// -- Browser Controller Mock --

// MockBrowserController mocks schemas.BrowserController.
type MockBrowserController struct {
	mock.Mock
}

var _ schemas.BrowserController = (*MockBrowserController)(nil)

func (m *MockBrowserController) Navigate(ctx context.Context, url string, newTab bool) error {
	args := m.Called(ctx, url, newTab)
	return args.Error(0)
}

func (m *MockBrowserController) GoBack(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBrowserController) ClickElement(ctx context.Context, entry *schemas.SelectorEntry) (schemas.Point, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(schemas.Point), args.Error(1)
}

func (m *MockBrowserController) ClickAt(ctx context.Context, p schemas.Point) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockBrowserController) TypeText(ctx context.Context, entry *schemas.SelectorEntry, text string, clear bool) error {
	args := m.Called(ctx, entry, text, clear)
	return args.Error(0)
}

func (m *MockBrowserController) SendKeys(ctx context.Context, keys string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockBrowserController) Scroll(ctx context.Context, direction schemas.ScrollDirection, pages float64, entry *schemas.SelectorEntry) error {
	args := m.Called(ctx, direction, pages, entry)
	return args.Error(0)
}

func (m *MockBrowserController) DropdownOptions(ctx context.Context, entry *schemas.SelectorEntry) ([]schemas.DropdownOption, error) {
	args := m.Called(ctx, entry)
	if opts := args.Get(0); opts != nil {
		return opts.([]schemas.DropdownOption), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserController) SelectDropdown(ctx context.Context, entry *schemas.SelectorEntry, value string) (string, error) {
	args := m.Called(ctx, entry, value)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserController) UploadFile(ctx context.Context, entry *schemas.SelectorEntry, path string) error {
	args := m.Called(ctx, entry, path)
	return args.Error(0)
}

func (m *MockBrowserController) Screenshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserController) ExtractReadableText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserController) EvaluateScript(ctx context.Context, script string) (string, error) {
	args := m.Called(ctx, script)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserController) SwitchTab(ctx context.Context, shortID string) error {
	args := m.Called(ctx, shortID)
	return args.Error(0)
}

func (m *MockBrowserController) CloseTab(ctx context.Context, shortID string) error {
	args := m.Called(ctx, shortID)
	return args.Error(0)
}

func (m *MockBrowserController) GetState(ctx context.Context, forceRefresh bool) (*schemas.DOMState, error) {
	args := m.Called(ctx, forceRefresh)
	if state := args.Get(0); state != nil {
		return state.(*schemas.DOMState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserController) CurrentURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBrowserController) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- Oracle Mock --

// MockOracle mocks schemas.Oracle.
type MockOracle struct {
	mock.Mock
}

var _ schemas.Oracle = (*MockOracle)(nil)

func (m *MockOracle) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.AgentOutput, error) {
	args := m.Called(ctx, req)
	if out := args.Get(0); out != nil {
		return out.(*schemas.AgentOutput), args.Error(1)
	}
	return nil, args.Error(1)
}
