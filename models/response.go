package models

import "time"

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the run produced an artifact.
	Success bool `json:"success"`

	// RunID identifies the run in logs and webhook events.
	RunID string `json:"run_id,omitempty"`

	// Filename is the artifact name, set only on success.
	Filename string `json:"filename,omitempty"`

	// DownloadURL is the API path serving the artifact.
	DownloadURL string `json:"download_url,omitempty"`

	// Result is the plain trigger result: the filename on success, the
	// failure reason otherwise.
	Result string `json:"result"`

	// Stats reports how the run's cards were handled.
	Stats RunStats `json:"stats"`

	// Timing provides duration breakdowns for the run.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// RunStats counts what happened to the cards of one run.
type RunStats struct {
	CardsFound int `json:"cards_found"`
	Records    int `json:"records"`
	Skipped    int `json:"skipped"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// BrowserMs is the time spent opening, settling and collecting.
	BrowserMs int64 `json:"browser_ms"`

	// ExtractMs is the time spent parsing card markup.
	ExtractMs int64 `json:"extract_ms"`
}

// Artifact describes one persisted CSV file.
type Artifact struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactsResponse is the response for GET /api/v1/artifacts.
type ArtifactsResponse struct {
	Success   bool         `json:"success"`
	Artifacts []Artifact   `json:"artifacts"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"` // "healthy" or "degraded"
	Uptime  string      `json:"uptime"`
	Driver  DriverStats `json:"driver"`
	Runner  RunnerStats `json:"runner"`
	Version string      `json:"version"`
}

// DriverStats reports the browser driver the scraper would launch.
type DriverStats struct {
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Attached  bool   `json:"attached"`
}

// RunnerStats reports the orchestrator's state.
type RunnerStats struct {
	Running     bool      `json:"running"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastResult  string    `json:"last_result,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitzero"`
}

// ArtifactPath is the API path serving an artifact, or "" for none.
func ArtifactPath(filename string) string {
	if filename == "" {
		return ""
	}
	return "/api/v1/artifacts/" + filename
}
