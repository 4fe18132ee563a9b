package dom

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// DefaultMaxLength bounds the serialized text handed to the oracle.
const DefaultMaxLength = 40000

const (
	// pageTolerance suppresses the above/below flags for sub-pixel overflow.
	pageTolerance  = 0.1
	maxIndentDepth = 5
	attrValueLimit = 50
	textLimit      = 100
)

// serializedAttributes is the attribute whitelist shown per element, in
// output order.
var serializedAttributes = []string{
	"aria-label", "placeholder", "type", "role",
	"href", "src", "alt", "title", "name", "value",
}

// Serializer projects a DOMState into the bounded, visually ordered text
// form the oracle reasons over.
type Serializer struct {
	maxLength int
	logger    *zap.Logger
}

// NewSerializer creates a serializer with the given output bound. Zero or
// negative falls back to DefaultMaxLength.
func NewSerializer(maxLength int, logger *zap.Logger) *Serializer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Serializer{maxLength: maxLength, logger: logger.Named("dom.serializer")}
}

// Serialize renders the visible interactive elements of a state, sorted top
// to bottom then left to right, with paging markers and a hard length cut.
// The selector map is carried through verbatim for the action layer.
func (s *Serializer) Serialize(state *schemas.DOMState) *schemas.SerializedDOM {
	stats := computeStats(state)

	pageHeight := estimatePageHeight(state)
	viewportHeight := float64(state.Geometry.ViewportHeight)
	scrollY := state.Geometry.ScrollY

	var pagesAbove, pagesBelow float64
	if viewportHeight > 0 {
		pagesAbove = scrollY / viewportHeight
		pagesBelow = math.Max(0, (pageHeight-scrollY-viewportHeight)/viewportHeight)
	}
	hasAbove := pagesAbove > pageTolerance
	hasBelow := pagesBelow > pageTolerance

	var lines []string
	if hasAbove {
		lines = append(lines, fmt.Sprintf("... %.1f pages above ...", pagesAbove))
	} else {
		lines = append(lines, "[Start of page]")
	}

	for _, node := range sortedInteractive(state) {
		lines = append(lines, renderElement(node))
	}

	if !hasBelow {
		lines = append(lines, "[End of page]")
	}

	text := strings.Join(lines, "\n")
	truncated := false
	if len(text) > s.maxLength {
		text = text[:s.maxLength]
		truncated = true
		s.logger.Debug("Serialized DOM truncated", zap.Int("max_length", s.maxLength))
	}

	return &schemas.SerializedDOM{
		Text:            text,
		Stats:           stats,
		PagesAbove:      pagesAbove,
		PagesBelow:      pagesBelow,
		HasContentAbove: hasAbove,
		HasContentBelow: hasBelow,
		Truncated:       truncated,
		SelectorMap:     state.SelectorMap,
	}
}

// computeStats counts node categories in one pass over the arena.
func computeStats(state *schemas.DOMState) schemas.PageStats {
	var stats schemas.PageStats
	for _, node := range state.Nodes {
		stats.TotalNodes++
		if node.IsVisible {
			stats.VisibleNodes++
		}
		if node.InteractionIndex > 0 {
			stats.InteractiveNodes++
		}
		if node.IsScrollable {
			stats.ScrollContainers++
		}
		switch node.TagName {
		case "a":
			stats.Links++
		case "iframe", "frame":
			stats.IFrames++
		}
	}
	return stats
}

// estimatePageHeight approximates total page height as the maximum of the
// viewport height and the bottom edge of any laid-out node. The node data
// carries no authoritative scrollable-height signal, so this approximation
// is deliberate.
func estimatePageHeight(state *schemas.DOMState) float64 {
	maxY := float64(state.Geometry.ViewportHeight)
	for _, node := range state.Nodes {
		if node.Bounds != nil {
			maxY = math.Max(maxY, node.Bounds.Bottom())
		}
	}
	return maxY
}

// sortedInteractive returns the visible indexed elements in visual scan
// order: ascending y, then ascending x. Document order is deliberately
// ignored here, it only governs index assignment.
func sortedInteractive(state *schemas.DOMState) []*schemas.DOMNode {
	var elements []*schemas.DOMNode
	for _, node := range state.Nodes {
		if node.InteractionIndex > 0 && node.IsVisible {
			elements = append(elements, node)
		}
	}

	position := func(n *schemas.DOMNode) (float64, float64) {
		if n.Bounds == nil {
			return 0, 0
		}
		return n.Bounds.Y, n.Bounds.X
	}
	sort.SliceStable(elements, func(i, j int) bool {
		yi, xi := position(elements[i])
		yj, xj := position(elements[j])
		if yi != yj {
			return yi < yj
		}
		return xi < xj
	})
	return elements
}

// renderElement formats one indexed element as
// [index]<tag attr='value'>text</tag>, indented by tree depth and prefixed
// with * when the element is new since the previous observation.
func renderElement(node *schemas.DOMNode) string {
	var attrParts []string
	for _, name := range serializedAttributes {
		if value := node.Attr(name); value != "" {
			attrParts = append(attrParts, fmt.Sprintf("%s='%s'", name, truncate(value, attrValueLimit)))
		}
	}
	// Accessibility data fills in what the markup leaves implicit.
	if node.AX != nil {
		if node.AX.Role != "" && node.Attr("role") == "" {
			attrParts = append(attrParts, fmt.Sprintf("role='%s'", node.AX.Role))
		}
		if node.AX.Name != "" && node.Attr("aria-label") == "" {
			attrParts = append(attrParts, fmt.Sprintf("aria-label='%s'", truncate(node.AX.Name, attrValueLimit)))
		}
	}

	attrs := ""
	if len(attrParts) > 0 {
		attrs = " " + strings.Join(attrParts, " ")
	}

	indent := strings.Repeat("\t", min(node.Depth, maxIndentDepth))
	prefix := ""
	if node.IsNew {
		prefix = "*"
	}

	text := truncate(strings.TrimSpace(node.TextContent), textLimit)
	return fmt.Sprintf("%s%s[%d]<%s%s>%s</%s>",
		indent, prefix, node.InteractionIndex, node.TagName, attrs, text, node.TagName)
}

// RenderState frames the serialized element list with page statistics, tab
// identity, and scroll position for the oracle prompt.
func RenderState(state *schemas.DOMState, serialized *schemas.SerializedDOM) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("<page_stats>%s</page_stats>", statsHeader(serialized.Stats)))

	var active schemas.TabInfo
	for _, tab := range state.Tabs {
		if tab.Active {
			active = tab
			break
		}
	}
	if active.ID != "" {
		lines = append(lines, fmt.Sprintf("Current tab: %s", active.ShortID()))
	}
	if len(state.Tabs) > 1 {
		lines = append(lines, "Available tabs:")
		for _, tab := range state.Tabs {
			marker := " "
			if tab.Active {
				marker = "*"
			}
			lines = append(lines, fmt.Sprintf("  %sTab %s: %s - %s",
				marker, tab.ShortID(), truncateRaw(tab.URL, 50), truncateRaw(tab.Title, 30)))
		}
	}

	lines = append(lines, fmt.Sprintf("\n<page_info>%.1f pages above, %.1f pages below</page_info>",
		serialized.PagesAbove, serialized.PagesBelow))
	lines = append(lines, "\nInteractive elements:")
	lines = append(lines, serialized.Text)

	return strings.Join(lines, "\n")
}

func statsHeader(stats schemas.PageStats) string {
	parts := []string{
		fmt.Sprintf("%d links", stats.Links),
		fmt.Sprintf("%d interactive", stats.InteractiveNodes),
	}
	if stats.IFrames > 0 {
		parts = append(parts, fmt.Sprintf("%d iframes", stats.IFrames))
	}
	if stats.ScrollContainers > 0 {
		parts = append(parts, fmt.Sprintf("%d scroll containers", stats.ScrollContainers))
	}
	parts = append(parts, fmt.Sprintf("%d total elements", stats.TotalNodes))
	return strings.Join(parts, ", ")
}

// DescribeSelector produces a short human-readable label for an element,
// used in action result messages.
func DescribeSelector(entry *schemas.SelectorEntry) string {
	if entry == nil {
		return "element"
	}

	label := entry.Attributes["aria-label"]
	if label == "" {
		label = entry.Attributes["title"]
	}
	if label == "" {
		label = entry.Attributes["placeholder"]
	}
	label = truncateRaw(label, 30)

	switch entry.TagName {
	case "a":
		if label != "" {
			return fmt.Sprintf("link '%s'", label)
		}
		return "link"
	case "button":
		if label != "" {
			return fmt.Sprintf("button '%s'", label)
		}
		return "button"
	case "input":
		inputType := entry.Attributes["type"]
		if inputType == "" {
			inputType = "text"
		}
		desc := fmt.Sprintf("input[type=%s]", inputType)
		if label != "" {
			desc += fmt.Sprintf(" '%s'", label)
		}
		return desc
	case "select":
		if label != "" {
			return fmt.Sprintf("dropdown '%s'", label)
		}
		return "dropdown"
	case "textarea":
		if label != "" {
			return fmt.Sprintf("textarea '%s'", label)
		}
		return "textarea"
	default:
		if label != "" {
			return fmt.Sprintf("%s '%s'", entry.TagName, label)
		}
		return entry.TagName
	}
}

// truncate cuts a string past limit, reserving room for an ellipsis.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

// truncateRaw cuts a string past limit without an ellipsis.
func truncateRaw(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
