package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/scrapekit/models"
)

func main() {
	apiURL := strings.TrimRight(os.Getenv("SCRAPEKIT_API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	// Optional: the API runs open when it has no keys configured.
	apiKey := os.Getenv("SCRAPEKIT_API_KEY")

	s := server.NewMCPServer(
		"scrapekit",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Fetch a web page and optionally extract fields with CSS or XPath selectors. Set render_js to load the page in a headless browser so JavaScript runs before content is read."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithBoolean("render_js",
			mcp.Description("Render the page in a headless browser (required for wait_for and screenshot)"),
		),
		mcp.WithString("selector_type",
			mcp.Description("Dialect of wait_for and extract selectors: 'css' (default) or 'xpath'"),
			mcp.Enum("css", "xpath"),
		),
		mcp.WithString("wait_for",
			mcp.Description("Selector that must appear before the page is read (render_js only)"),
		),
		mcp.WithArray("extract",
			mcp.Description("Fields to extract as 'name=selector' strings, e.g. [\"title=h1\", \"links=a\"]. Result order follows this list."),
		),
		mcp.WithArray("headers",
			mcp.Description("Custom request headers as 'Key: Value' strings"),
		),
		mcp.WithBoolean("screenshot",
			mcp.Description("Capture a full-page PNG screenshot (render_js only)"),
		),
		mcp.WithBoolean("use_proxy",
			mcp.Description("Route the request through a random proxy from the server's pool"),
		),
		mcp.WithBoolean("include_markdown",
			mcp.Description("Return a Markdown rendition of the page instead of raw HTML"),
		),
	)
	s.AddTool(scrapeURLTool, handleScrapeURL(apiURL, apiKey))

	statusTool := mcp.NewTool("engine_status",
		mcp.WithDescription("Report scraper health: uptime, whether the shared browser is running, active browser contexts and proxy pool size."),
	)
	s.AddTool(statusTool, handleEngineStatus(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

// scrapeRequestFromArgs maps tool arguments onto the API request model.
func scrapeRequestFromArgs(request mcp.CallToolRequest) (*models.ScrapeRequest, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return nil, fmt.Errorf("url is required")
	}

	req := &models.ScrapeRequest{
		URL:             url,
		RenderJS:        request.GetBool("render_js", false),
		SelectorType:    models.SelectorDialect(request.GetString("selector_type", "")),
		WaitFor:         request.GetString("wait_for", ""),
		Screenshot:      request.GetBool("screenshot", false),
		UseProxy:        request.GetBool("use_proxy", false),
		IncludeMarkdown: request.GetBool("include_markdown", false),
		CustomHeaders:   models.ParseHeaderLines(request.GetStringSlice("headers", nil)),
	}

	if pairs := request.GetStringSlice("extract", nil); len(pairs) > 0 {
		extract, err := models.ParseFieldPairs(pairs)
		if err != nil {
			return nil, err
		}
		req.Extract = extract
	}
	return req, nil
}

func handleScrapeURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqBody, err := scrapeRequestFromArgs(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scrape", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var scrapeResp models.ScrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !scrapeResp.Success || scrapeResp.ScrapeResult == nil {
			errMsg := "scrape failed"
			if scrapeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatScrapeResult(reqBody, scrapeResp.ScrapeResult)), nil
	}
}

// formatScrapeResult renders a result as text for the model: a short header,
// the extracted fields as JSON, then Markdown or HTML.
func formatScrapeResult(req *models.ScrapeRequest, r *models.ScrapeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nStatus: %d\nEngine: %s\nResponse time: %.2fs\n",
		r.FinalURL, r.StatusCode, r.EngineUsed, float64(r.ResponseTime))

	if r.ExtractedData != nil {
		data, err := json.MarshalIndent(r.ExtractedData, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "\nExtracted data:\n%s\n", data)
		}
	}
	if r.Screenshot != "" {
		fmt.Fprintf(&b, "\nScreenshot: %d bytes of base64 PNG (omitted)\n", len(r.Screenshot))
	}

	switch {
	case req.IncludeMarkdown && r.Markdown != "":
		b.WriteString("\n---\n")
		b.WriteString(r.Markdown)
	case !req.HasExtract() && r.HTML != "":
		b.WriteString("\n---\n")
		b.WriteString(r.HTML)
	}
	return b.String()
}

func handleEngineStatus(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/health", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		var health models.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		st := health.EngineStats
		return mcp.NewToolResultText(fmt.Sprintf(
			"Service: %s %s\nStatus: %s\nUptime: %s\nBrowser running: %t\nActive contexts: %d\nProxy pool size: %d",
			health.Service, health.Version, health.Status, health.Uptime,
			st.BrowserRunning, st.ActiveContexts, st.ProxyPoolSize,
		)), nil
	}
}

// apiPost sends a JSON POST to the scrapekit API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
