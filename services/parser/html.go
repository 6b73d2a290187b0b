package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	scriptStyleRegex  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	eventHandlerRegex = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	javascriptURIRegex = regexp.MustCompile(`(?i)(href|src|action)\s*=\s*("javascript:[^"]*"|'javascript:[^']*'|javascript:[^\s>]+)`)
	whitespaceRegex   = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex      = regexp.MustCompile(`\n{3,}`)
)

// sanitizeHTML strips script/style blocks, inline on* event-handler
// attributes and javascript: URI schemes from an HTML body. Best-effort
// cleanup for storage, not a rendering security boundary.
func sanitizeHTML(html string) string {
	if html == "" {
		return ""
	}
	html = scriptStyleRegex.ReplaceAllString(html, "")
	html = eventHandlerRegex.ReplaceAllString(html, "")
	html = javascriptURIRegex.ReplaceAllString(html, `$1=""`)
	return html
}

// htmlToText derives a plain-text fallback from an HTML body: drops
// script/style/head content, turns block elements into line breaks, then
// collapses whitespace.
func htmlToText(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Fall back to a regex strip when the document does not parse.
		return collapseWhitespace(scriptStyleRegex.ReplaceAllString(html, ""))
	}

	doc.Find("script, style, head, meta, link").Remove()

	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(text string) string {
	text = whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	var cleanLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")
	text = newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
