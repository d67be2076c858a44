package extractor

import (
	"fmt"
	"net/url"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// markdownConverter is goroutine-safe and shared by all requests.
//
//   - base plugin: strips script, style, iframe, noscript, head, meta, link.
//   - commonmark plugin: headings, lists, links, code blocks, emphasis.
//   - table plugin: keeps tables, with minimal cell padding.
var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Markdown converts the document to Markdown. Relative links and image
// sources are resolved against sourceURL's origin.
//
// The raw markup is converted rather than the parsed tree because the
// converter's plugins modify the tree they are given.
func (d *Document) Markdown(sourceURL string) (string, error) {
	var (
		md  string
		err error
	)
	if u, parseErr := url.Parse(sourceURL); parseErr == nil && u.Host != "" {
		md, err = markdownConverter.ConvertString(d.raw, converter.WithDomain(u.Scheme+"://"+u.Host))
	} else {
		md, err = markdownConverter.ConvertString(d.raw)
	}
	if err != nil {
		return "", fmt.Errorf("extractor: convert to markdown: %w", err)
	}
	return md, nil
}
