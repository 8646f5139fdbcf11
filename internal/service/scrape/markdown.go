package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	cdataPattern       = regexp.MustCompile(`(?s)//<!\[CDATA\[(.*?)//\]\]>`)
	inlineVarPattern   = regexp.MustCompile(`(?s)var\s+\w+\s*=\s*.*?;`)
	zeroWidthPattern   = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	multiSpacePattern  = regexp.MustCompile(`[ \t]+`)
	multiNewline       = regexp.MustCompile(`\n{3,}`)
	whitespaceSequence = regexp.MustCompile(`\s+`)
)

var (
	textEscaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`)
	altEscaper  = strings.NewReplacer(`[`, `\[`, `]`, `\]`)
	urlEscaper  = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29")
)

// non-content elements dropped together with their children
var skippedElements = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"form": true, "button": true, "noscript": true, "iframe": true, "svg": true,
}

// RemoveInlineJS strips CDATA script blocks and stray `var x = ...;` statements.
func RemoveInlineJS(s string) string {
	s = cdataPattern.ReplaceAllString(s, "")
	return inlineVarPattern.ReplaceAllString(s, "")
}

// CleanMarkdown normalizes Markdown for ingestion.
func CleanMarkdown(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = zeroWidthPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("\u2018", "'", "\u2019", "'").Replace(text)
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ToMarkdown converts an HTML fragment to Markdown with ATX headings.
func ToMarkdown(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	w := &markdownWriter{}
	w.node(doc)
	return w.sb.String(), nil
}

type markdownWriter struct {
	sb        strings.Builder
	pre       int
	code      int
	listDepth int
	ordered   []int // next item number per list level, 0 for unordered
}

func (w *markdownWriter) block() {
	w.sb.WriteString("\n\n")
}

func (w *markdownWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *markdownWriter) node(n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		w.children(n)
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	if skippedElements[n.Data] {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		w.block()
		w.sb.WriteString(strings.Repeat("#", level) + " ")
		w.children(n)
		w.block()
	case "p", "div", "section", "article", "main", "header", "table", "blockquote":
		w.block()
		w.children(n)
		w.block()
	case "br":
		w.sb.WriteString("  \n")
	case "hr":
		w.block()
		w.sb.WriteString("---")
		w.block()
	case "ul", "ol":
		start := 0
		if n.Data == "ol" {
			start = 1
		}
		w.ordered = append(w.ordered, start)
		w.listDepth++
		w.sb.WriteString("\n")
		w.children(n)
		w.listDepth--
		w.ordered = w.ordered[:len(w.ordered)-1]
		w.sb.WriteString("\n")
	case "li":
		w.sb.WriteString("\n" + strings.Repeat("  ", max(w.listDepth-1, 0)))
		if depth := len(w.ordered); depth > 0 && w.ordered[depth-1] > 0 {
			w.sb.WriteString(fmt.Sprintf("%d. ", w.ordered[depth-1]))
			w.ordered[depth-1]++
		} else {
			w.sb.WriteString("* ")
		}
		w.children(n)
	case "tr":
		w.sb.WriteString("\n|")
		w.children(n)
	case "td", "th":
		w.sb.WriteString(" ")
		w.children(n)
		w.sb.WriteString(" |")
	case "pre":
		w.block()
		w.sb.WriteString("```\n")
		w.pre++
		w.children(n)
		w.pre--
		w.sb.WriteString("\n```")
		w.block()
	case "code":
		if w.pre > 0 {
			w.children(n)
			return
		}
		w.code++
		w.wrap(n, "`")
		w.code--
	case "strong", "b":
		w.wrap(n, "**")
	case "em", "i":
		w.wrap(n, "*")
	case "a":
		href := attr(n, "href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			w.children(n)
			return
		}
		w.sb.WriteString("[")
		w.children(n)
		w.sb.WriteString("](" + urlEscaper.Replace(href) + ")")
	case "img":
		alt := attr(n, "alt")
		if src := attr(n, "src"); src != "" {
			w.sb.WriteString("![" + altEscaper.Replace(alt) + "](" + urlEscaper.Replace(src) + ")")
		}
	default:
		w.children(n)
	}
}

func (w *markdownWriter) wrap(n *html.Node, marker string) {
	w.sb.WriteString(marker)
	w.children(n)
	w.sb.WriteString(marker)
}

func (w *markdownWriter) text(s string) {
	if w.pre > 0 {
		w.sb.WriteString(s)
		return
	}
	s = whitespaceSequence.ReplaceAllString(s, " ")
	if w.code == 0 {
		// literal emphasis markers in prose must not turn into formatting
		s = textEscaper.Replace(s)
	}
	w.sb.WriteString(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
