package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
)

var (
	DefaultContentSelectors = []string{"section.user-content", "div.content__region"}
	DefaultSkipWords        = []string{"privacy", "cookies", "updated"}
)

// ExtractOptions selects the content region and filters its lines.
type ExtractOptions struct {
	// ContentSelectors are CSS selectors tried in order.
	ContentSelectors []string

	// SkipWords drops every line that contains one of them, ignoring case.
	SkipWords []string
}

var paragraphSelector = cascadia.MustCompile("p")

// ExtractLines returns the text lines of every <p> in the page's content
// region. Text is split on <br> and newlines, whitespace is collapsed, and
// empty lines and lines containing a skip word are dropped. A page without a
// matching content region yields an empty slice and a warning.
func ExtractLines(page []byte, opts ExtractOptions) ([]string, error) {
	selectors := opts.ContentSelectors
	if len(selectors) == 0 {
		selectors = DefaultContentSelectors
	}
	skip := opts.SkipWords
	if skip == nil {
		skip = DefaultSkipWords
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var content *html.Node
	for _, raw := range selectors {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("content selector %q: %w", raw, err)
		}
		if content = sel.MatchFirst(doc); content != nil {
			appLog.Debug("content region found", "selector", raw)
			break
		}
	}
	if content == nil {
		appLog.Warn("could not find content section on page", "selectors", strings.Join(selectors, ","))
		return []string{}, nil
	}

	lines := []string{}
	for _, p := range paragraphSelector.MatchAll(content) {
		var b strings.Builder
		collectText(p, &b)
		for _, line := range strings.Split(b.String(), "\n") {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" || containsAny(line, skip) {
				continue
			}
			lines = append(lines, line)
		}
	}

	appLog.Info("extracted lines", "count", len(lines))
	return lines, nil
}

// collectText writes the text under n, turning <br> into a newline.
func collectText(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && c.DataAtom == atom.Br:
			b.WriteByte('\n')
		case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style):
		default:
			collectText(c, b)
		}
	}
}

func containsAny(line string, words []string) bool {
	lower := strings.ToLower(line)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
