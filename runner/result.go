package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/rfqscout/layout"
	"github.com/use-agent/rfqscout/models"
	"github.com/use-agent/rfqscout/scraper"
)

// State is a step of the run lifecycle.
type State string

const (
	StateInit          State = "INIT"
	StateSessionOpen   State = "SESSION_OPEN"
	StateSettling      State = "SETTLING"
	StateCollecting    State = "COLLECTING"
	StateExtracting    State = "EXTRACTING"
	StateSuccess       State = "SUCCESS"
	StateEmpty         State = "EMPTY"
	StateFailed        State = "FAILED"
	StateSessionClosed State = "SESSION_CLOSED"
)

// Result describes a finished run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Outcome   State

	// Filename is set only when Outcome is StateSuccess.
	Filename string
	Err      *models.ScrapeError

	Stats    models.RunStats
	Timing   models.TimingInfo
	Failures []CardFailure

	// SessionClosed is true once a session opened for this run was closed.
	SessionClosed bool

	// Layout is the template signature of the first card read.
	Layout uint64
	// LayoutDrift is the distance from the last successful run's layout,
	// or -1 when either is unknown.
	LayoutDrift int

	// began is the wall-clock start used for timings. StartedAt may come
	// from an injected clock.
	began time.Time
}

// Text is the filename on success and the failure reason otherwise.
func (r *Result) Text() string {
	if r.Err != nil {
		return r.Err.Reason()
	}
	return r.Filename
}

// Response renders the result for the API.
func (r *Result) Response(downloadURL string) models.ScrapeResponse {
	resp := models.ScrapeResponse{
		Success: r.Err == nil,
		RunID:   r.RunID,
		Result:  r.Text(),
		Stats:   r.Stats,
		Timing:  r.Timing,
	}
	if r.Err != nil {
		resp.Error = r.Err.ToDetail()
		return resp
	}
	resp.Filename = r.Filename
	resp.DownloadURL = downloadURL
	return resp
}

// CardFailure is a card that produced no record.
type CardFailure struct {
	Index int
	Err   error
}

type cardResult struct {
	index  int
	markup string
	record *models.Record
	err    error
}

// extractAll extracts every card in order. A failing or panicking card
// becomes an error result and never aborts the others.
func (r *Runner) extractAll(ctx context.Context, cards []scraper.Card, scrapedAt time.Time) []cardResult {
	results := make([]cardResult, len(cards))
	for i, card := range cards {
		markup, rec, err := r.extractCard(ctx, card, scrapedAt)
		results[i] = cardResult{index: i, markup: markup, record: rec, err: err}
	}
	return results
}

func (r *Runner) extractCard(ctx context.Context, card scraper.Card, scrapedAt time.Time) (markup string, rec *models.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, fmt.Errorf("extract panicked: %v", p)
		}
	}()

	markup, err = card.OuterHTML(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("read card markup: %w", err)
	}
	rec, err = r.extractor.Extract(markup, scrapedAt)
	return markup, rec, err
}

// checkLayout signs the first readable card and compares it with the
// baseline from the last successful run.
func (r *Runner) checkLayout(log *slog.Logger, res *Result, results []cardResult) {
	res.LayoutDrift = -1
	for _, cr := range results {
		if cr.markup != "" {
			res.Layout = layout.Signature(cr.markup)
			break
		}
	}

	r.mu.RLock()
	baseline := r.baseline
	r.mu.RUnlock()
	if res.Layout == 0 || baseline == 0 {
		return
	}

	res.LayoutDrift = layout.Drift(baseline, res.Layout)
	if layout.Changed(baseline, res.Layout) {
		log.Warn("card template differs from the last successful run", "drift", res.LayoutDrift)
	}
}

// partition keeps valid records in card order and collects the rest.
func partition(results []cardResult) ([]models.Record, []CardFailure) {
	var (
		records  []models.Record
		failures []CardFailure
	)
	for _, res := range results {
		switch {
		case res.err != nil:
			failures = append(failures, CardFailure{Index: res.index, Err: res.err})
		case res.record == nil || !res.record.Valid():
			failures = append(failures, CardFailure{Index: res.index, Err: fmt.Errorf("card %d has neither title nor link", res.index+1)})
		default:
			records = append(records, *res.record)
		}
	}
	return records, failures
}
