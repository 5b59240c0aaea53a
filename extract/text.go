package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	htmlTag     = regexp.MustCompile(`<[^>]+>`)
	invisibles  = strings.NewReplacer("\u00a0", " ", "\u200b", "", "\ufeff", "")
	ellipsis    = "..."
	skippedText = map[atom.Atom]bool{
		atom.Script:   true,
		atom.Style:    true,
		atom.Noscript: true,
	}
)

// strippedText joins every trimmed text node under nodes with no separator.
// Script and style bodies are not part of the visible text.
func strippedText(nodes ...*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		walkText(n, func(s string) {
			b.WriteString(strings.TrimSpace(s))
		})
	}
	return b.String()
}

// rawText joins every text node under n verbatim.
func rawText(n *html.Node) string {
	var b strings.Builder
	walkText(n, func(s string) {
		b.WriteString(s)
	})
	return b.String()
}

func walkText(n *html.Node, fn func(string)) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	if n.Type == html.ElementNode && skippedText[n.DataAtom] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// documentRoot returns the parsed root node.
func documentRoot(doc *goquery.Document) *html.Node {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}

// scripts returns the bodies of every script element, optionally filtered by
// its type attribute.
func scripts(doc *goquery.Document, typ string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if typ != "" {
			if t, _ := s.Attr("type"); !strings.EqualFold(strings.TrimSpace(t), typ) {
				return
			}
		}
		body := s.Text()
		if body != "" {
			out = append(out, body)
		}
	})
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func within(s string, minExclusive, maxExclusive int) bool {
	l := runeLen(s)
	return l > minExclusive && l < maxExclusive
}

func containsAny(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// CleanDescription strips markup and invisible characters, collapses
// whitespace and caps the result at 800 runes plus an ellipsis.
func CleanDescription(text string) string {
	if text == "" {
		return ""
	}
	text = htmlTag.ReplaceAllString(text, "")
	text = invisibles.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	if runeLen(text) > maxDescriptionRunes {
		text = truncateRunes(text, maxDescriptionRunes) + ellipsis
	}
	return text
}

// PageText returns the visible text of the whole document.
func PageText(doc *goquery.Document) string {
	return rawText(documentRoot(doc))
}
