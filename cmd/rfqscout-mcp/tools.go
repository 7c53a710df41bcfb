package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/use-agent/rfqscout/models"
)

// client calls the rfqscout HTTP API.
type client struct {
	apiURL string
	apiKey string

	// scrapes hold the connection for a whole run.
	scrapeHTTP *http.Client
	http       *http.Client
}

func newClient(apiURL, apiKey string) *client {
	return &client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		scrapeHTTP: &http.Client{Timeout: 10 * time.Minute},
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(ctx context.Context, hc *http.Client, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *client) handleScrape(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp models.ScrapeResponse
	if err := c.do(ctx, c.scrapeHTTP, http.MethodPost, "/api/v1/scrape", &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !resp.Success {
		msg := resp.Result
		if resp.Error != nil {
			msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(msg), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved %d RFQs to %s\n", resp.Stats.Records, resp.Filename)
	fmt.Fprintf(&sb, "Download: %s%s\n", c.apiURL, resp.DownloadURL)
	if resp.Stats.Skipped > 0 {
		fmt.Fprintf(&sb, "Skipped %d of %d cards\n", resp.Stats.Skipped, resp.Stats.CardsFound)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleListArtifacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	var resp models.ArtifactsResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/api/v1/artifacts", &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !resp.Success {
		msg := "listing failed"
		if resp.Error != nil {
			msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(msg), nil
	}
	if len(resp.Artifacts) == 0 {
		return mcp.NewToolResultText("No CSV files yet."), nil
	}

	var sb strings.Builder
	for i, a := range resp.Artifacts {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&sb, "... and %d more\n", len(resp.Artifacts)-limit)
			break
		}
		fmt.Fprintf(&sb, "%s (%d bytes, %s)\n", a.Filename, a.SizeBytes, a.CreatedAt.Format(time.DateTime))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp models.HealthResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/api/v1/health", &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s (up %s)\n", resp.Status, resp.Uptime)
	switch {
	case resp.Driver.Attached:
		sb.WriteString("Driver: attached to a running browser\n")
	case resp.Driver.Available:
		fmt.Fprintf(&sb, "Driver: %s\n", resp.Driver.Path)
	default:
		fmt.Fprintf(&sb, "Driver: missing at %s\n", resp.Driver.Path)
	}
	if resp.Runner.Running {
		sb.WriteString("A scrape is running.\n")
	}
	if resp.Runner.LastRunID != "" {
		fmt.Fprintf(&sb, "Last run %s: %s, %s\n", resp.Runner.LastRunID, resp.Runner.LastOutcome, resp.Runner.LastResult)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
