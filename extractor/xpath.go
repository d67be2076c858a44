package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

// queryXPath evaluates expr against the document.
//
// Node-set results yield one string per node in document order: element text,
// attribute value (e.g. //a/@href) or text node content. Scalar results from
// functions like string() or count() yield a single value; an empty string
// counts as no match.
func (d *Document) queryXPath(expr string) ([]string, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath expression %q: %w", expr, err)
	}

	switch v := compiled.Evaluate(htmlquery.CreateXPathNavigator(d.root)).(type) {
	case *xpath.NodeIterator:
		var matches []string
		for v.MoveNext() {
			matches = append(matches, strings.TrimSpace(v.Current().Value()))
		}
		return matches, nil
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case bool:
		return []string{strconv.FormatBool(v)}, nil
	default:
		return nil, fmt.Errorf("unsupported xpath result type %T", v)
	}
}
