package dom

import (
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// -- Test Fixtures --

var nextBackendID int64 = 1000

func rawElement(id int64, name string, attrs ...string) *cdp.Node {
	nextBackendID++
	return &cdp.Node{
		NodeID:        cdp.NodeID(id),
		BackendNodeID: cdp.BackendNodeID(nextBackendID),
		NodeType:      cdp.NodeTypeElement,
		NodeName:      name,
		Attributes:    attrs,
	}
}

func rawText(id int64, value string) *cdp.Node {
	nextBackendID++
	return &cdp.Node{
		NodeID:        cdp.NodeID(id),
		BackendNodeID: cdp.BackendNodeID(nextBackendID),
		NodeType:      cdp.NodeTypeText,
		NodeName:      "#text",
		NodeValue:     value,
	}
}

func rawDocument(id int64, children ...*cdp.Node) *cdp.Node {
	nextBackendID++
	return &cdp.Node{
		NodeID:        cdp.NodeID(id),
		BackendNodeID: cdp.BackendNodeID(nextBackendID),
		NodeType:      cdp.NodeTypeDocument,
		NodeName:      "#document",
		Children:      children,
	}
}

func layoutFor(node *cdp.Node, rect *schemas.DOMRect, styles *schemas.ComputedStyles) (int64, *LayoutEntry) {
	return int64(node.BackendNodeID), &LayoutEntry{Bounds: rect, Styles: styles}
}

func buildTestTree(t *testing.T, root *cdp.Node, lookups *Lookups) *Tree {
	t.Helper()
	tree, err := NewBuilder(lookups, zap.NewNop()).Build(root)
	require.NoError(t, err)
	return tree
}

// -- Test Cases: Tree Construction --

func TestBuildNilRoot(t *testing.T) {
	_, err := NewBuilder(nil, zap.NewNop()).Build(nil)
	assert.Error(t, err)
}

func TestBuildIndexAssignmentInDocumentOrder(t *testing.T) {
	button := rawElement(4, "BUTTON")
	anchor := rawElement(5, "A", "href", "/about")
	div := rawElement(6, "DIV")
	input := rawElement(7, "INPUT", "type", "text")

	body := rawElement(3, "BODY")
	body.Children = []*cdp.Node{button, anchor, div, input}
	html := rawElement(2, "HTML")
	html.Children = []*cdp.Node{body}
	root := rawDocument(1, html)

	tree := buildTestTree(t, root, nil)

	require.Len(t, tree.SelectorMap, 3)
	assert.Equal(t, 1, tree.Nodes[4].InteractionIndex)
	assert.Equal(t, 2, tree.Nodes[5].InteractionIndex)
	assert.Equal(t, 3, tree.Nodes[7].InteractionIndex)
	assert.Zero(t, tree.Nodes[6].InteractionIndex, "plain div must not be indexed")

	// Indexed nodes are sound: visible and interactive.
	for index, entry := range tree.SelectorMap {
		node := tree.Nodes[entry.NodeID]
		require.NotNil(t, node)
		assert.Equal(t, index, node.InteractionIndex)
		assert.True(t, node.IsVisible)
		assert.True(t, node.IsInteractive)
		assert.True(t, node.IsClickable)
	}
}

func TestBuildHiddenSubtreeNotIndexed(t *testing.T) {
	visibleButton := rawElement(4, "BUTTON", "aria-label", "Submit")
	hiddenButton := rawElement(6, "BUTTON")
	hiddenDiv := rawElement(5, "DIV", "style", "display:none")
	hiddenDiv.Children = []*cdp.Node{hiddenButton}

	body := rawElement(3, "BODY")
	body.Children = []*cdp.Node{visibleButton, hiddenDiv}
	html := rawElement(2, "HTML")
	html.Children = []*cdp.Node{body}
	root := rawDocument(1, html)

	lookups := NewLookups()
	id, entry := layoutFor(visibleButton, &schemas.DOMRect{X: 100, Y: 200, Width: 50, Height: 20}, nil)
	lookups.Layout[id] = entry
	id, entry = layoutFor(hiddenDiv, nil, &schemas.ComputedStyles{Display: "none"})
	lookups.Layout[id] = entry

	tree := buildTestTree(t, root, lookups)

	require.Len(t, tree.SelectorMap, 1)
	assert.Equal(t, 1, tree.Nodes[4].InteractionIndex)
	assert.False(t, tree.Nodes[5].IsVisible)
	assert.False(t, tree.Nodes[6].IsVisible, "display:none must hide the whole subtree")
	assert.Zero(t, tree.Nodes[6].InteractionIndex)

	selector := tree.SelectorMap[1]
	assert.Equal(t, "button", selector.TagName)
	assert.Equal(t, 125.0, selector.Center.X)
	assert.Equal(t, 210.0, selector.Center.Y)
}

func TestBuildVisibilityEdgeCases(t *testing.T) {
	testCases := []struct {
		name    string
		bounds  *schemas.DOMRect
		styles  *schemas.ComputedStyles
		visible bool
	}{
		{"no layout data defaults to visible", nil, nil, true},
		{"zero area bounds invisible regardless of style", &schemas.DOMRect{Width: 0, Height: 20}, nil, false},
		{"zero height invisible", &schemas.DOMRect{Width: 50, Height: 0}, nil, false},
		{"visibility hidden", &schemas.DOMRect{Width: 50, Height: 20}, &schemas.ComputedStyles{Visibility: "hidden"}, false},
		{"opacity zero", &schemas.DOMRect{Width: 50, Height: 20}, &schemas.ComputedStyles{Opacity: "0"}, false},
		{"positive area and styles", &schemas.DOMRect{Width: 50, Height: 20}, &schemas.ComputedStyles{Display: "block"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			button := rawElement(2, "BUTTON")
			root := rawDocument(1, button)

			lookups := NewLookups()
			if tc.bounds != nil || tc.styles != nil {
				id, entry := layoutFor(button, tc.bounds, tc.styles)
				lookups.Layout[id] = entry
			}

			tree := buildTestTree(t, root, lookups)
			assert.Equal(t, tc.visible, tree.Nodes[2].IsVisible)
			if tc.visible {
				assert.Equal(t, 1, tree.Nodes[2].InteractionIndex)
			} else {
				assert.Zero(t, tree.Nodes[2].InteractionIndex)
			}
		})
	}
}

func TestBuildInteractivityRules(t *testing.T) {
	testCases := []struct {
		name        string
		node        *cdp.Node
		ax          *schemas.AXInfo
		interactive bool
	}{
		{"interactive tag", rawElement(2, "SELECT"), nil, true},
		{"onclick attribute", rawElement(2, "DIV", "onclick", "go()"), nil, true},
		{"tabindex attribute", rawElement(2, "DIV", "tabindex", "0"), nil, true},
		{"contenteditable", rawElement(2, "DIV", "contenteditable", "true"), nil, true},
		{"role attribute", rawElement(2, "DIV", "role", "button"), nil, true},
		{"accessibility role", rawElement(2, "DIV"), &schemas.AXInfo{Role: "checkbox"}, true},
		{"non-interactive role", rawElement(2, "DIV", "role", "presentation"), nil, false},
		{"plain div", rawElement(2, "DIV"), nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := rawDocument(1, tc.node)
			lookups := NewLookups()
			if tc.ax != nil {
				lookups.AX[int64(tc.node.BackendNodeID)] = tc.ax
			}

			tree := buildTestTree(t, root, lookups)
			assert.Equal(t, tc.interactive, tree.Nodes[2].IsInteractive)
		})
	}
}

func TestBuildEditableAndScrollable(t *testing.T) {
	input := rawElement(2, "INPUT")
	textarea := rawElement(3, "TEXTAREA")
	editableDiv := rawElement(4, "DIV", "contenteditable", "true")
	scrollDiv := rawElement(5, "DIV")
	root := rawDocument(1, input, textarea, editableDiv, scrollDiv)

	lookups := NewLookups()
	id, entry := layoutFor(scrollDiv, nil, &schemas.ComputedStyles{Overflow: "auto"})
	lookups.Layout[id] = entry

	tree := buildTestTree(t, root, lookups)

	assert.True(t, tree.Nodes[2].IsEditable)
	assert.True(t, tree.Nodes[3].IsEditable)
	assert.True(t, tree.Nodes[4].IsEditable)
	assert.False(t, tree.Nodes[5].IsEditable)
	assert.True(t, tree.Nodes[5].IsScrollable)
}

func TestBuildFrameAndShadowLinks(t *testing.T) {
	frameDoc := rawDocument(10, rawElement(11, "HTML"))
	iframe := rawElement(4, "IFRAME", "src", "https://example.com/embed")
	iframe.ContentDocument = frameDoc

	shadowRoot := &cdp.Node{
		NodeID:        cdp.NodeID(20),
		BackendNodeID: cdp.BackendNodeID(9020),
		NodeType:      cdp.NodeTypeDocumentFragment,
		NodeName:      "#document-fragment",
		Children:      []*cdp.Node{rawElement(21, "SPAN")},
	}
	host := rawElement(5, "DIV")
	host.ShadowRoots = []*cdp.Node{shadowRoot}

	body := rawElement(3, "BODY")
	body.Children = []*cdp.Node{iframe, host}
	html := rawElement(2, "HTML")
	html.Children = []*cdp.Node{body}
	root := rawDocument(1, html)

	tree := buildTestTree(t, root, nil)

	iframeNode := tree.Nodes[4]
	assert.Equal(t, int64(10), iframeNode.FrameDocumentID)
	assert.NotContains(t, iframeNode.ChildIDs, int64(10), "frame document must stay out of the child list")

	hostNode := tree.Nodes[5]
	assert.Equal(t, []int64{20}, hostNode.ShadowRootIDs)
	assert.NotContains(t, hostNode.ChildIDs, int64(20))

	// Subtree nodes are still reachable through the arena.
	assert.NotNil(t, tree.Nodes[11])
	assert.NotNil(t, tree.Nodes[21])
	assert.Equal(t, int64(4), tree.Nodes[10].ParentID)
	assert.Equal(t, int64(5), tree.Nodes[20].ParentID)
}

func TestBuildTextAggregation(t *testing.T) {
	span := rawElement(4, "SPAN")
	span.Children = []*cdp.Node{rawText(5, "World")}

	div := rawElement(2, "DIV")
	div.Children = []*cdp.Node{rawText(3, "  Hello  "), span}
	root := rawDocument(1, div)

	tree := buildTestTree(t, root, nil)

	assert.Equal(t, "Hello World", tree.Nodes[2].TextContent)
	assert.Equal(t, "World", tree.Nodes[4].TextContent)
}

// -- Test Cases: New Element Marking --

func stateWithSelectors(url string, entries ...*schemas.SelectorEntry) *schemas.DOMState {
	state := &schemas.DOMState{
		URL:         url,
		Nodes:       make(map[int64]*schemas.DOMNode),
		SelectorMap: make(map[int]*schemas.SelectorEntry),
	}
	for _, entry := range entries {
		state.SelectorMap[entry.Index] = entry
		state.Nodes[entry.NodeID] = &schemas.DOMNode{
			NodeID:           entry.NodeID,
			BackendID:        entry.BackendID,
			Type:             schemas.NodeTypeElement,
			TagName:          entry.TagName,
			IsVisible:        true,
			IsInteractive:    true,
			InteractionIndex: entry.Index,
		}
	}
	return state
}

func TestMarkNewElementsSameURL(t *testing.T) {
	prev := stateWithSelectors("https://example.com",
		&schemas.SelectorEntry{Index: 1, NodeID: 10, BackendID: 100, TagName: "button"},
	)
	curr := stateWithSelectors("https://example.com",
		&schemas.SelectorEntry{Index: 1, NodeID: 10, BackendID: 100, TagName: "button"},
		&schemas.SelectorEntry{Index: 2, NodeID: 11, BackendID: 101, TagName: "a"},
	)

	MarkNewElements(prev, curr)

	assert.False(t, curr.Nodes[10].IsNew, "carried-over element must not be marked")
	assert.True(t, curr.Nodes[11].IsNew, "element absent from the previous snapshot must be marked")
}

func TestMarkNewElementsURLChange(t *testing.T) {
	prev := stateWithSelectors("https://example.com/a",
		&schemas.SelectorEntry{Index: 1, NodeID: 10, BackendID: 100, TagName: "button"},
	)
	curr := stateWithSelectors("https://example.com/b",
		&schemas.SelectorEntry{Index: 1, NodeID: 10, BackendID: 200, TagName: "button"},
		&schemas.SelectorEntry{Index: 2, NodeID: 11, BackendID: 201, TagName: "a"},
	)

	MarkNewElements(prev, curr)

	for _, node := range curr.Nodes {
		assert.False(t, node.IsNew, "navigation invalidates the comparison")
	}
}

func TestMarkNewElementsNoPrevious(t *testing.T) {
	curr := stateWithSelectors("https://example.com",
		&schemas.SelectorEntry{Index: 1, NodeID: 10, BackendID: 100, TagName: "button"},
	)
	MarkNewElements(nil, curr)
	assert.False(t, curr.Nodes[10].IsNew)
}
