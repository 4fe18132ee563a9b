// Package dom turns raw CDP page data into an indexed, serializable
// snapshot. Three independently captured sources (DOM tree, layout/style
// snapshot, accessibility tree) are correlated by backend node id, merged
// into an arena of nodes, and projected into a bounded text form.
package dom

import (
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/domsnapshot"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// SnapshotStyles are the computed styles requested from the layout snapshot.
// Style values come back per layout entry in exactly this order.
var SnapshotStyles = []string{
	"display", "visibility", "opacity", "position", "overflow", "pointer-events",
}

// LayoutEntry is the layout projection of one node: absolute bounds plus the
// requested style subset. Either half may be missing.
type LayoutEntry struct {
	Bounds *schemas.DOMRect
	Styles *schemas.ComputedStyles
}

// Lookups holds the per-backend-id correlation tables built from the layout
// snapshot and the accessibility tree. Missing entries are legal; a node
// without layout data defaults to visible with no bounds, and a node without
// accessibility data simply carries no role.
type Lookups struct {
	Layout map[int64]*LayoutEntry
	AX     map[int64]*schemas.AXInfo
}

// NewLookups returns empty correlation tables.
func NewLookups() *Lookups {
	return &Lookups{
		Layout: make(map[int64]*LayoutEntry),
		AX:     make(map[int64]*schemas.AXInfo),
	}
}

// IngestSnapshot folds a DOMSnapshot capture into the layout table. The
// snapshot's layout arrays are positional: entry i refers to node
// Layout.NodeIndex[i] of the same document, and that node's backend id lives
// in the document's node table. Out-of-range indices are skipped rather than
// treated as errors, partial data is expected.
func (l *Lookups) IngestSnapshot(documents []*domsnapshot.DocumentSnapshot, stringTable []string) {
	for _, doc := range documents {
		if doc == nil || doc.Nodes == nil || doc.Layout == nil {
			continue
		}
		backendIDs := doc.Nodes.BackendNodeID

		for i, nodeIdx := range doc.Layout.NodeIndex {
			if nodeIdx < 0 || nodeIdx >= int64(len(backendIDs)) {
				continue
			}
			backendID := int64(backendIDs[nodeIdx])

			entry := &LayoutEntry{}
			if i < len(doc.Layout.Bounds) {
				if rect := doc.Layout.Bounds[i]; len(rect) >= 4 {
					entry.Bounds = &schemas.DOMRect{
						X:      rect[0],
						Y:      rect[1],
						Width:  rect[2],
						Height: rect[3],
					}
				}
			}
			if i < len(doc.Layout.Styles) {
				entry.Styles = resolveStyles(doc.Layout.Styles[i], stringTable)
			}
			l.Layout[backendID] = entry
		}
	}
}

// IngestAXTree folds a full accessibility tree into the AX table. Nodes
// without a backend DOM id (virtual tree nodes) are skipped.
func (l *Lookups) IngestAXTree(nodes []*accessibility.Node) {
	for _, node := range nodes {
		if node == nil || node.BackendDOMNodeID == 0 {
			continue
		}

		info := &schemas.AXInfo{
			Role:        axValueString(node.Role),
			Name:        axValueString(node.Name),
			Description: axValueString(node.Description),
		}
		for _, prop := range node.Properties {
			if prop == nil {
				continue
			}
			value := axValueString(prop.Value)
			if value == "" {
				continue
			}
			if info.Properties == nil {
				info.Properties = make(map[string]string)
			}
			info.Properties[string(prop.Name)] = value
		}

		l.AX[int64(node.BackendDOMNodeID)] = info
	}
}

// resolveStyles maps a layout entry's style value indices through the
// snapshot string table, positionally matched against SnapshotStyles.
func resolveStyles(indices domsnapshot.ArrayOfStrings, stringTable []string) *schemas.ComputedStyles {
	styles := &schemas.ComputedStyles{}
	for i, idx := range indices {
		if i >= len(SnapshotStyles) || idx < 0 || idx >= int64(len(stringTable)) {
			continue
		}
		value := stringTable[idx]
		switch SnapshotStyles[i] {
		case "display":
			styles.Display = value
		case "visibility":
			styles.Visibility = value
		case "opacity":
			styles.Opacity = value
		case "position":
			styles.Position = value
		case "overflow":
			styles.Overflow = value
		case "pointer-events":
			styles.PointerEvents = value
		}
	}
	return styles
}

// axValueString extracts the scalar value of an AX property as text. Values
// arrive as raw JSON; non-string scalars (booleans, numbers) are rendered
// verbatim.
func axValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return strings.Trim(string(v.Value), `"`)
}
