package adapter

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
)

var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.SkipElementsContent("title", "noscript", "template")
	return p
}()

// parseHTML reduces a page to its visible content: the sanitizer drops
// scripts, styles and unsafe markup, the remaining tree is rewritten as
// Markdown and parsed like any Markdown file.
func parseHTML(data []byte) (*document.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, newParseError(format.Html, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, newParseError(format.Html, err)
	}

	title := htmlTitle(raw)
	clean := htmlPolicy.SanitizeBytes(raw)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle("atx"),
			),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(string(clean))
	if err != nil {
		return nil, newParseError(format.Html, err)
	}
	if strings.TrimSpace(md) == "" {
		return nil, newParseError(format.Html, errors.New("no visible text"))
	}

	doc, err := parseMarkdown([]byte(md))
	if err != nil {
		return nil, err
	}
	if title != "" {
		doc.Title = title
	}
	return doc, nil
}

// htmlTitle returns the text of the first <title> element.
func htmlTitle(data []byte) string {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	for n := range root.Descendants() {
		if n.Type == html.ElementNode && n.Data == "title" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(b.String()), " ")
		}
	}
	return ""
}
