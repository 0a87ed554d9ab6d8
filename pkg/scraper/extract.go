package scraper

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ExtractOptions controls how page text is reduced.
type ExtractOptions struct {
	MinLineLength int
	MaxChars      int
	StripChrome   bool
}

var (
	// Never visible.
	hiddenTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}
	// Navigation and page furniture, dropped only with StripChrome.
	chromeTags = map[string]bool{"nav": true, "header": true, "footer": true, "aside": true}
)

// ExtractText returns the visible text of an HTML document, one text node per
// line. Text is taken from <main> when the page has one. Lines no longer than
// MinLineLength runes are dropped and the result is cut to MaxChars runes.
func ExtractText(r io.Reader, opts ExtractOptions) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	root := doc
	if main := findElement(doc, "main"); main != nil {
		root = main
	}

	var raw strings.Builder
	collectText(root, opts.StripChrome, &raw)

	var kept []string
	for _, line := range strings.Split(raw.String(), "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > opts.MinLineLength {
			kept = append(kept, line)
		}
	}

	return truncateRunes(strings.Join(kept, "\n"), opts.MaxChars)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, stripChrome bool, sb *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if hiddenTags[n.Data] || (stripChrome && chromeTags[n.Data]) {
			return
		}
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte('\n')
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, stripChrome, sb)
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
