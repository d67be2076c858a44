package extractor

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/use-agent/scrapekit/models"
)

// CheckSelector compiles selector in dialect without evaluating it.
func CheckSelector(selector string, dialect models.SelectorDialect) error {
	switch dialect {
	case models.DialectXPath:
		if _, err := xpath.Compile(selector); err != nil {
			return fmt.Errorf("invalid xpath expression %q: %w", selector, err)
		}
	case models.DialectCSS, "":
		if _, err := cascadia.Compile(selector); err != nil {
			return fmt.Errorf("invalid css selector %q: %w", selector, err)
		}
	default:
		return fmt.Errorf("unknown selector dialect %q", dialect)
	}
	return nil
}
