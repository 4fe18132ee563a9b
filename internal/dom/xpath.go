package dom

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// XPathForNode builds an absolute XPath for an element by walking its
// ancestor chain, disambiguating each step with a same-tag sibling ordinal.
// The path stops at the nearest document boundary, so nodes inside frames
// and shadow roots get a path relative to their own document root.
func XPathForNode(nodes map[int64]*schemas.DOMNode, id int64) string {
	node := nodes[id]
	if node == nil || !node.IsElement() {
		return ""
	}

	var segments []string
	for node != nil && node.IsElement() {
		parent := nodes[node.ParentID]
		segments = append(segments, xpathSegment(nodes, node, parent))
		node = parent
	}

	// Reverse into document order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return "/" + strings.Join(segments, "/")
}

// xpathSegment renders one path step. The ordinal is emitted only when the
// parent has more than one element child with the same tag, which keeps
// common paths short while staying unambiguous.
func xpathSegment(nodes map[int64]*schemas.DOMNode, node, parent *schemas.DOMNode) string {
	if parent == nil {
		return node.TagName
	}

	ordinal, total := 0, 0
	for _, siblingID := range parent.ChildIDs {
		sibling := nodes[siblingID]
		if sibling == nil || !sibling.IsElement() || sibling.TagName != node.TagName {
			continue
		}
		total++
		if sibling.NodeID == node.NodeID {
			ordinal = total
		}
	}

	if total > 1 {
		return fmt.Sprintf("%s[%d]", node.TagName, ordinal)
	}
	return node.TagName
}
