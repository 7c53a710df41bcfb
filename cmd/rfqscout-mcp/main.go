package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("RFQSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := newClient(apiURL, os.Getenv("RFQSCOUT_API_KEY"))

	s := server.NewMCPServer(
		"rfqscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_rfq",
		mcp.WithDescription("Scrape the Alibaba RFQ listing in a real browser and save the postings to a CSV file. Returns the filename, or the reason nothing was saved. Takes up to a few minutes."),
	), c.handleScrape)

	s.AddTool(mcp.NewTool("list_artifacts",
		mcp.WithDescription("List the CSV files produced by previous scrapes, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of files to list (default: 20)"),
		),
	), c.handleListArtifacts)

	s.AddTool(mcp.NewTool("scraper_health",
		mcp.WithDescription("Report whether the browser driver is available and how the last scrape ended."),
	), c.handleHealth)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
