package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/scraper"
)

type scrapeFlags struct {
	render       bool
	selectorType string
	waitFor      string
	extract      []string
	headers      []string
	screenshot   bool
	images       bool
	markdown     bool
	useProxy     bool
	noHTML       bool
}

func newScrapeCmd(getConfig func() *config.Config) *cobra.Command {
	var f scrapeFlags

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape one URL and print the JSON result",
		Example: `  # Plain fetch with CSS extraction
  scrapekit scrape https://example.com -e title=h1 -e links="a"

  # Rendered fetch waiting for an element, with a screenshot
  scrapekit scrape https://example.com --render --wait-for "#app" --screenshot

  # XPath extraction through a proxy from SCRAPEKIT_PROXY_LIST
  scrapekit scrape https://example.com --selector-type xpath -e hrefs=//a/@href --proxy

  # Custom headers
  scrapekit scrape https://example.com -H "Accept-Language: de"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(args[0])
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), getConfig(), req, f.noHTML, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&f.render, "render", "r", false, "Render the page in the headless browser")
	cmd.Flags().StringVar(&f.selectorType, "selector-type", string(models.DialectCSS), "Selector dialect for --wait-for and --extract: css or xpath")
	cmd.Flags().StringVar(&f.waitFor, "wait-for", "", "Selector that must appear before content is read (requires --render)")
	cmd.Flags().StringArrayVarP(&f.extract, "extract", "e", nil, "Field to extract as name=selector (repeatable, order is kept)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Custom header as \"Key: Value\" (repeatable)")
	cmd.Flags().BoolVar(&f.screenshot, "screenshot", false, "Capture a full-page PNG (requires --render)")
	cmd.Flags().BoolVar(&f.images, "images", false, "List <img> sources")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Include a Markdown rendition")
	cmd.Flags().BoolVar(&f.useProxy, "proxy", false, "Route through a random proxy from the pool")
	cmd.Flags().BoolVar(&f.noHTML, "no-html", false, "Omit the raw HTML from the output")
	return cmd
}

// request turns the flags into a ScrapeRequest.
func (f *scrapeFlags) request(url string) (*models.ScrapeRequest, error) {
	extract, err := models.ParseFieldPairs(f.extract)
	if err != nil {
		return nil, err
	}
	req := &models.ScrapeRequest{
		URL:             url,
		RenderJS:        f.render,
		SelectorType:    models.SelectorDialect(strings.ToLower(f.selectorType)),
		WaitFor:         f.waitFor,
		Screenshot:      f.screenshot,
		ScrapeImages:    f.images,
		IncludeMarkdown: f.markdown,
		UseProxy:        f.useProxy,
		CustomHeaders:   models.ParseHeaderLines(f.headers),
	}
	if extract.Len() > 0 {
		req.Extract = extract
	}
	return req, nil
}

func runScrape(ctx context.Context, cfg *config.Config, req *models.ScrapeRequest, noHTML bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := scraper.New(cfg)
	defer sc.Close()

	result, err := sc.Scrape(ctx, req)
	resp := models.ScrapeResponse{Success: err == nil, URL: req.URL, ScrapeResult: result}
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			resp.Error = se.ToDetail()
		} else {
			resp.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
		}
	}
	if result != nil && noHTML {
		result.HTML = ""
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(resp); encErr != nil {
		return encErr
	}
	return err
}
