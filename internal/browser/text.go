package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

// skippedTextTags never contribute readable text.
var skippedTextTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"head":     {},
	"svg":      {},
}

// blockTags force a line break around their content.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "main": {},
	"header": {}, "footer": {}, "aside": {}, "nav": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"ul": {}, "ol": {}, "li": {}, "table": {}, "tr": {},
	"blockquote": {}, "pre": {}, "br": {}, "hr": {},
}

// ExtractReadableText reduces the current page to its readable text, the
// form handed to the oracle for content extraction.
func (s *Session) ExtractReadableText(ctx context.Context) (string, error) {
	var pageHTML string
	if err := s.run(ctx, s.actionTimeout(), chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return reduceToText(pageHTML)
}

// reduceToText strips markup and normalizes whitespace, keeping paragraph
// structure as single newlines.
func reduceToText(pageHTML string) (string, error) {
	root, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedTextTags[n.Data]; skip {
				return
			}
			if _, block := blockTags[n.Data]; block {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, block := blockTags[n.Data]; block {
				sb.WriteByte('\n')
			}
		}
	}
	walk(root)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}
