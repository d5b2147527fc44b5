package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	markupPattern = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	inlineSpace   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "form": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
	"title": true, "summary": true, "details": true,
}

var headerLevels = map[string]string{"h1": "#", "h2": "##", "h3": "###"}

// LooksLikeHTML reports whether content carries markup.
func LooksLikeHTML(content string) bool {
	return markupPattern.MatchString(content)
}

// CleanText turns page content into newline separated text. HTML drops
// script, style, nav and footer; h1-h3 become markdown header lines and every
// block element starts a new line. Plain text only has its whitespace
// normalized.
func CleanText(content string) string {
	if !LooksLikeHTML(content) {
		return normalizeLines(html.UnescapeString(content), true)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return normalizeLines(html.UnescapeString(markupPattern.ReplaceAllString(content, "\n")), true)
	}
	doc.Find("script, style, nav, footer, noscript, template").Remove()

	var b strings.Builder
	walk(&b, doc.Selection)
	return normalizeLines(b.String(), false)
}

func walk(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			b.WriteString(node.Text())
		case headerLevels[name] != "":
			text := strings.Join(strings.Fields(node.Text()), " ")
			if text != "" {
				b.WriteString("\n" + headerLevels[name] + " " + text + "\n")
			}
		case blockElements[name]:
			b.WriteString("\n")
			walk(b, node)
			b.WriteString("\n")
		case strings.HasPrefix(name, "#"):
			// comments and doctype carry no text
		default:
			walk(b, node)
		}
	})
}

// normalizeLines collapses intra-line whitespace and drops empty lines. When
// keepParagraphs is set a single blank line survives between paragraphs.
func normalizeLines(text string, keepParagraphs bool) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line == "" && !keepParagraphs {
			continue
		}
		out = append(out, line)
	}
	joined := strings.Join(out, "\n")
	if keepParagraphs {
		joined = blankRuns.ReplaceAllString(joined, "\n\n")
	}
	return strings.TrimSpace(joined)
}

// PageMeta is the readability view of an HTML page.
type PageMeta struct {
	Title       string
	Excerpt     string
	ContentHTML string
}

// Readable runs go-readability over an HTML page. ok is false when the input
// is not HTML or no main content could be identified.
func Readable(content, sourceURL string) (PageMeta, bool) {
	if !LooksLikeHTML(content) {
		return PageMeta{}, false
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		u = &url.URL{}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(content), u)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return PageMeta{}, false
	}
	return PageMeta{
		Title:       strings.TrimSpace(article.Title),
		Excerpt:     strings.TrimSpace(article.Excerpt),
		ContentHTML: article.Content,
	}, true
}
