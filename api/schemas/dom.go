package schemas

import (
	"strconv"
	"strings"
	"time"
)

// -- DOM Node Schemas --

// NodeType mirrors the DOM specification's node type codes.
type NodeType int64

const (
	NodeTypeElement  NodeType = 1
	NodeTypeText     NodeType = 3
	NodeTypeComment  NodeType = 8
	NodeTypeDocument NodeType = 9
	NodeTypeDoctype  NodeType = 10
	NodeTypeFragment NodeType = 11
)

// DOMRect is an absolute bounding box in page coordinates.
type DOMRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterX returns the horizontal midpoint of the rect.
func (r *DOMRect) CenterX() float64 { return r.X + r.Width/2 }

// CenterY returns the vertical midpoint of the rect.
func (r *DOMRect) CenterY() float64 { return r.Y + r.Height/2 }

// Bottom returns the lower edge of the rect.
func (r *DOMRect) Bottom() float64 { return r.Y + r.Height }

// HasArea reports whether the rect encloses a positive area.
func (r *DOMRect) HasArea() bool {
	return r != nil && r.Width > 0 && r.Height > 0
}

// ComputedStyles carries the fixed style subset requested from the layout
// snapshot. Empty strings mean the style was not reported for the node.
type ComputedStyles struct {
	Display       string `json:"display,omitempty"`
	Visibility    string `json:"visibility,omitempty"`
	Opacity       string `json:"opacity,omitempty"`
	Position      string `json:"position,omitempty"`
	Overflow      string `json:"overflow,omitempty"`
	PointerEvents string `json:"pointer_events,omitempty"`
}

// AllowsVisibility applies the style half of the visibility rules. A nil
// receiver (no layout data at all) defaults to visible, the node may still
// scroll into view later.
func (s *ComputedStyles) AllowsVisibility() bool {
	if s == nil {
		return true
	}
	if s.Display == "none" || s.Visibility == "hidden" {
		return false
	}
	if s.Opacity != "" {
		if v, err := strconv.ParseFloat(s.Opacity, 64); err == nil && v <= 0 {
			return false
		}
	}
	return true
}

// IsScrollContainer reports whether overflow makes the element scrollable.
func (s *ComputedStyles) IsScrollContainer() bool {
	if s == nil {
		return false
	}
	return s.Overflow == "auto" || s.Overflow == "scroll"
}

// interactiveAXRoles are the ARIA roles that qualify a node as interactive
// even when its tag does not.
var interactiveAXRoles = map[string]struct{}{
	"button": {}, "link": {}, "menuitem": {}, "option": {}, "tab": {},
	"checkbox": {}, "radio": {}, "textbox": {}, "combobox": {}, "listbox": {},
	"slider": {}, "spinbutton": {}, "searchbox": {}, "switch": {},
	"gridcell": {}, "treeitem": {},
}

// AXInfo is the accessibility projection of a node.
type AXInfo struct {
	Role        string            `json:"role,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// IsInteractiveRole reports whether the node's ARIA role implies the element
// accepts user interaction.
func (a *AXInfo) IsInteractiveRole() bool {
	return a != nil && IsInteractiveRole(a.Role)
}

// IsInteractiveRole reports whether an ARIA role name, from either a role
// attribute or the accessibility tree, qualifies an element as interactive.
func IsInteractiveRole(role string) bool {
	if role == "" {
		return false
	}
	_, ok := interactiveAXRoles[strings.ToLower(role)]
	return ok
}

// interactiveTags qualify an element as interactive by tag name alone.
var interactiveTags = map[string]struct{}{
	"a": {}, "button": {}, "input": {}, "select": {}, "textarea": {},
	"label": {}, "details": {}, "summary": {}, "dialog": {},
}

// DOMNode is one node of the snapshot tree. Nodes live in an arena keyed by
// NodeID; all cross references (parent, children, frames, shadow roots) are
// plain ids, never pointers, so the tree is acyclic by construction and
// trivially serializable.
type DOMNode struct {
	NodeID    int64   `json:"node_id"`
	BackendID int64   `json:"backend_id"`
	ParentID  int64   `json:"parent_id,omitempty"`
	ChildIDs  []int64 `json:"child_ids,omitempty"`

	Type        NodeType          `json:"type"`
	TagName     string            `json:"tag_name,omitempty"`
	TextContent string            `json:"text_content,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`

	Bounds *DOMRect        `json:"bounds,omitempty"`
	Styles *ComputedStyles `json:"styles,omitempty"`
	AX     *AXInfo         `json:"ax,omitempty"`

	IsVisible     bool `json:"is_visible"`
	IsInteractive bool `json:"is_interactive"`
	IsEditable    bool `json:"is_editable"`
	IsScrollable  bool `json:"is_scrollable"`
	IsClickable   bool `json:"is_clickable"`
	// IsNew is set when the element was absent from the previous snapshot of
	// the same URL. Presentation-only; never set across navigations.
	IsNew bool `json:"is_new,omitempty"`

	// FrameDocumentID links to the root of a nested document hosted by this
	// node (iframe content). ShadowRootIDs link to hosted shadow trees. Both
	// are kept out of ChildIDs to preserve the document boundary.
	FrameDocumentID int64   `json:"frame_document_id,omitempty"`
	ShadowRootIDs   []int64 `json:"shadow_root_ids,omitempty"`

	Depth int `json:"depth"`
	// InteractionIndex is the externally addressable index shown to the
	// oracle. Zero means the node is not indexed.
	InteractionIndex int `json:"interaction_index,omitempty"`
}

// IsElement reports whether the node is an element node.
func (n *DOMNode) IsElement() bool { return n.Type == NodeTypeElement }

// Attr returns the named attribute or the empty string.
func (n *DOMNode) Attr(name string) string {
	if n.Attributes == nil {
		return ""
	}
	return n.Attributes[name]
}

// HasInteractiveTag reports whether the tag name alone marks the element
// interactive.
func (n *DOMNode) HasInteractiveTag() bool {
	_, ok := interactiveTags[n.TagName]
	return ok
}

// Point is a page coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectorEntry is the durable-enough addressing info recorded per
// interaction index. It is valid for the lifetime of one snapshot only and
// goes stale the moment the page mutates.
type SelectorEntry struct {
	Index      int               `json:"index"`
	NodeID     int64             `json:"node_id"`
	BackendID  int64             `json:"backend_id"`
	TagName    string            `json:"tag_name"`
	XPath      string            `json:"xpath"`
	Center     Point             `json:"center"`
	Bounds     *DOMRect          `json:"bounds,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// PageGeometry carries viewport and scroll extents at capture time.
type PageGeometry struct {
	ViewportWidth  int64   `json:"viewport_width"`
	ViewportHeight int64   `json:"viewport_height"`
	ScrollX        float64 `json:"scroll_x"`
	ScrollY        float64 `json:"scroll_y"`
	ScrollMaxX     float64 `json:"scroll_max_x"`
	ScrollMaxY     float64 `json:"scroll_max_y"`
}

// TabInfo identifies one open browser tab.
type TabInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// ShortID returns the last four characters of the target id, the form the
// oracle uses to address tabs.
func (t TabInfo) ShortID() string {
	if len(t.ID) <= 4 {
		return t.ID
	}
	return t.ID[len(t.ID)-4:]
}

// DOMState is one immutable, fully materialized observation of the page.
// A new state replaces the previous one wholesale on every extraction pass.
type DOMState struct {
	RootID      int64                  `json:"root_id"`
	Nodes       map[int64]*DOMNode     `json:"nodes"`
	SelectorMap map[int]*SelectorEntry `json:"selector_map"`

	URL      string       `json:"url"`
	Title    string       `json:"title"`
	Geometry PageGeometry `json:"geometry"`
	Tabs     []TabInfo    `json:"tabs,omitempty"`

	// Screenshot is an opaque base64 handle; nothing in the core parses it.
	Screenshot string    `json:"screenshot,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Selector resolves an interaction index against this snapshot's map.
func (s *DOMState) Selector(index int) (*SelectorEntry, bool) {
	entry, ok := s.SelectorMap[index]
	return entry, ok
}

// Node returns the arena node for an id, or nil.
func (s *DOMState) Node(id int64) *DOMNode { return s.Nodes[id] }

// PageStats are the per-snapshot counts shown alongside the serialized text.
type PageStats struct {
	TotalNodes       int `json:"total_nodes"`
	VisibleNodes     int `json:"visible_nodes"`
	InteractiveNodes int `json:"interactive_nodes"`
	Links            int `json:"links"`
	IFrames          int `json:"iframes"`
	ScrollContainers int `json:"scroll_containers"`
}

// SerializedDOM is the bounded textual projection handed to the oracle. The
// selector map is carried through verbatim so the action layer can resolve
// indices without re-deriving them.
type SerializedDOM struct {
	Text            string                 `json:"text"`
	Stats           PageStats              `json:"stats"`
	PagesAbove      float64                `json:"pages_above"`
	PagesBelow      float64                `json:"pages_below"`
	HasContentAbove bool                   `json:"has_content_above"`
	HasContentBelow bool                   `json:"has_content_below"`
	Truncated       bool                   `json:"truncated"`
	SelectorMap     map[int]*SelectorEntry `json:"-"`
}
