package dom

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// Tree is the output of one build pass: an arena of nodes keyed by node id
// and the selector map for every indexed interactive element. Cross
// references are plain ids, never pointers, so frame and shadow links cannot
// form ownership cycles.
type Tree struct {
	RootID      int64
	Nodes       map[int64]*schemas.DOMNode
	SelectorMap map[int]*schemas.SelectorEntry
}

// Builder walks a raw CDP node tree depth first in document order, merges
// layout and accessibility data per node, computes the derived flags, and
// assigns interaction indices starting at 1. A builder is single use.
type Builder struct {
	lookups *Lookups
	logger  *zap.Logger

	nodes     map[int64]*schemas.DOMNode
	selectors map[int]*schemas.SelectorEntry
	nextIndex int
}

// NewBuilder creates a builder over the given correlation tables. Nil
// lookups are legal and produce a tree with no layout or accessibility data.
func NewBuilder(lookups *Lookups, logger *zap.Logger) *Builder {
	if lookups == nil {
		lookups = NewLookups()
	}
	return &Builder{
		lookups:   lookups,
		logger:    logger.Named("dom.builder"),
		nodes:     make(map[int64]*schemas.DOMNode),
		selectors: make(map[int]*schemas.SelectorEntry),
		nextIndex: 1,
	}
}

// Build constructs the arena from the document root returned by
// DOM.getDocument. Frame content documents and shadow roots become linked
// subtrees rather than ordinary children.
func (b *Builder) Build(root *cdp.Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("dom tree root is nil")
	}

	rootID := b.walk(root, 0, 0, false)

	// XPaths need complete parent and sibling links, so they are resolved
	// after the walk.
	for _, entry := range b.selectors {
		entry.XPath = XPathForNode(b.nodes, entry.NodeID)
	}

	b.logger.Debug("DOM tree built",
		zap.Int("nodes", len(b.nodes)),
		zap.Int("interactive", len(b.selectors)),
	)

	return &Tree{RootID: rootID, Nodes: b.nodes, SelectorMap: b.selectors}, nil
}

// walk processes one raw node and its subtrees, returning its arena id.
// hidden carries the display:none state of ancestors, whose descendants
// never appear in the layout snapshot and would otherwise default to
// visible-by-absence.
func (b *Builder) walk(raw *cdp.Node, parentID int64, depth int, hidden bool) int64 {
	id := int64(raw.NodeID)

	node := &schemas.DOMNode{
		NodeID:    id,
		BackendID: int64(raw.BackendNodeID),
		ParentID:  parentID,
		Type:      schemas.NodeType(raw.NodeType),
		Depth:     depth,
	}

	if node.IsElement() {
		node.TagName = strings.ToLower(raw.NodeName)
		node.Attributes = flattenAttributes(raw.Attributes)
	}
	if node.Type == schemas.NodeTypeText {
		node.TextContent = raw.NodeValue
	}

	if entry, ok := b.lookups.Layout[node.BackendID]; ok {
		node.Bounds = entry.Bounds
		node.Styles = entry.Styles
	}
	if ax, ok := b.lookups.AX[node.BackendID]; ok {
		node.AX = ax
	}

	// Visibility: style rules first, then the zero-area override. A node
	// with no bounds at all may still scroll into view and stays visible.
	node.IsVisible = !hidden && node.Styles.AllowsVisibility()
	if node.Bounds != nil && !node.Bounds.HasArea() {
		node.IsVisible = false
	}

	node.IsInteractive = isInteractive(node)
	node.IsEditable = node.TagName == "input" || node.TagName == "textarea" ||
		node.Attr("contenteditable") == "true"
	node.IsScrollable = raw.IsScrollable || node.Styles.IsScrollContainer()

	if node.IsElement() && node.IsVisible && node.IsInteractive {
		b.index(node)
	}

	b.nodes[id] = node

	childHidden := hidden || (node.Styles != nil && node.Styles.Display == "none")

	for _, child := range raw.Children {
		childID := b.walk(child, id, depth+1, childHidden)
		node.ChildIDs = append(node.ChildIDs, childID)
	}

	if raw.ContentDocument != nil {
		node.FrameDocumentID = b.walk(raw.ContentDocument, id, depth+1, childHidden)
	}
	for _, shadow := range raw.ShadowRoots {
		node.ShadowRootIDs = append(node.ShadowRootIDs, b.walk(shadow, id, depth+1, childHidden))
	}

	if node.IsElement() {
		node.TextContent = b.aggregateText(node)
	}

	return id
}

// index assigns the next interaction index and records the selector entry.
func (b *Builder) index(node *schemas.DOMNode) {
	node.InteractionIndex = b.nextIndex
	node.IsClickable = true

	entry := &schemas.SelectorEntry{
		Index:      node.InteractionIndex,
		NodeID:     node.NodeID,
		BackendID:  node.BackendID,
		TagName:    node.TagName,
		Bounds:     node.Bounds,
		Attributes: node.Attributes,
	}
	if node.Bounds != nil {
		entry.Center = schemas.Point{X: node.Bounds.CenterX(), Y: node.Bounds.CenterY()}
	}

	b.selectors[node.InteractionIndex] = entry
	b.nextIndex++
}

// aggregateText concatenates the text of immediate text-node children with
// the already aggregated text of child elements.
func (b *Builder) aggregateText(node *schemas.DOMNode) string {
	var parts []string
	for _, childID := range node.ChildIDs {
		child := b.nodes[childID]
		if child == nil {
			continue
		}
		if text := strings.TrimSpace(child.TextContent); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// isInteractive applies the interactivity rules: a recognized interactive
// tag, an interactive ARIA role (attribute or accessibility tree), or an
// onclick/tabindex/contenteditable attribute.
func isInteractive(node *schemas.DOMNode) bool {
	if !node.IsElement() {
		return false
	}
	if node.HasInteractiveTag() {
		return true
	}
	if node.Attr("onclick") != "" {
		return true
	}
	if _, ok := node.Attributes["tabindex"]; ok {
		return true
	}
	if node.Attr("contenteditable") == "true" {
		return true
	}
	if schemas.IsInteractiveRole(node.Attr("role")) {
		return true
	}
	return node.AX.IsInteractiveRole()
}

// flattenAttributes converts the alternating name/value list from the raw
// tree into a map.
func flattenAttributes(attrs []string) map[string]string {
	if len(attrs) < 2 {
		return nil
	}
	out := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		out[attrs[i]] = attrs[i+1]
	}
	return out
}

// MarkNewElements flags every element present in curr's selector map but
// absent from prev's, matched by backend id. A URL change invalidates the
// comparison and marks nothing.
func MarkNewElements(prev, curr *schemas.DOMState) {
	if prev == nil || curr == nil || prev.URL != curr.URL {
		return
	}
	seen := make(map[int64]struct{}, len(prev.SelectorMap))
	for _, entry := range prev.SelectorMap {
		seen[entry.BackendID] = struct{}{}
	}
	for _, entry := range curr.SelectorMap {
		if _, ok := seen[entry.BackendID]; ok {
			continue
		}
		if node := curr.Nodes[entry.NodeID]; node != nil {
			node.IsNew = true
		}
	}
}
