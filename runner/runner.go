// Package runner sequences one scrape run: open a browser session, settle
// it, collect and extract cards, release the session and persist the batch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/rfqscout/config"
	"github.com/use-agent/rfqscout/models"
	"github.com/use-agent/rfqscout/scraper"
)

// Failure texts for the run-fatal outcomes.
const (
	msgNoContent      = "No RFQ items found with the current selectors on this page. The page structure might be different from what the scraper expects."
	msgStaleSelectors = "Scraped 0 RFQs. The selectors might be outdated for this page."
	msgBusy           = "A scrape is already running. Try again when it finishes."
)

// Opener opens browser sessions. *scraper.Driller implements it.
type Opener interface {
	Open(ctx context.Context, targetURL string) (scraper.Session, error)
}

// Extractor turns card markup into a record. *extractor.Extractor
// implements it.
type Extractor interface {
	Extract(markup string, scrapedAt time.Time) (*models.Record, error)
}

// Sink persists a finished batch and returns the artifact name.
// *sink.CSV implements it.
type Sink interface {
	Write(batch models.RecordBatch) (string, error)
}

// Notifier is told about every finished run. It must not block.
type Notifier interface {
	Notify(res *Result)
}

// Options are the per-run parameters resolved from configuration.
type Options struct {
	TargetURL    string
	CardSelector string
	CardLimit    int
	Policy       scraper.WaitPolicy

	// RunTimeout bounds a whole run. Zero means unbounded.
	RunTimeout time.Duration
}

// OptionsFromConfig builds run options from scraper config.
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	return Options{
		TargetURL:    cfg.TargetURL,
		CardSelector: cfg.CardSelector,
		CardLimit:    cfg.CardLimit,
		Policy:       scraper.PolicyFromConfig(cfg),
		RunTimeout:   cfg.RunTimeout,
	}
}

// Runner executes scrape runs one at a time. A run requested while another
// is in progress is rejected with ErrCodeBusy.
type Runner struct {
	opener    Opener
	extractor Extractor
	sink      Sink
	opts      Options

	notifier Notifier
	now      func() time.Time
	newID    func() string

	running atomic.Bool

	mu       sync.RWMutex
	last     *Result
	baseline uint64 // layout signature of the last successful run
}

// New creates a Runner.
func New(opener Opener, ex Extractor, sk Sink, opts Options) *Runner {
	return &Runner{
		opener:    opener,
		extractor: ex,
		sink:      sk,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetNotifier registers a Notifier for finished runs.
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetClock replaces the clock used for run start times and scrape dates.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// StartScrape runs one scrape and returns the artifact filename on success
// or the human-readable failure reason otherwise.
func (r *Runner) StartScrape(ctx context.Context) string {
	res, err := r.Run(ctx)
	if err != nil {
		return models.AsScrapeError(err).Reason()
	}
	return res.Filename
}

// Run executes one scrape. On failure the error is a *models.ScrapeError
// and the returned Result (nil only for ErrCodeBusy) describes how far the
// run got.
//
// The run is detached from ctx cancellation; only Options.RunTimeout
// bounds it.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, models.NewScrapeError(models.ErrCodeBusy, msgBusy, nil)
	}
	defer r.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	res := &Result{
		RunID:       r.newID(),
		StartedAt:   r.now(),
		LayoutDrift: -1,
		began:       time.Now(),
	}
	r.execute(ctx, res)

	r.mu.Lock()
	r.last = res
	if res.Err == nil && res.Layout != 0 {
		r.baseline = res.Layout
	}
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Notify(res)
	}

	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// Stats reports whether a run is in progress and how the last one ended.
func (r *Runner) Stats() models.RunnerStats {
	stats := models.RunnerStats{Running: r.running.Load()}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last != nil {
		stats.LastRunID = r.last.RunID
		stats.LastOutcome = string(r.last.Outcome)
		stats.LastResult = r.last.Text()
		stats.LastRunAt = r.last.StartedAt
	}
	return stats
}

func (r *Runner) execute(ctx context.Context, res *Result) {
	log := slog.With("run_id", res.RunID)
	log.Info("scrape run starting", "target", r.opts.TargetURL, "state", StateInit)

	records, err := r.harvest(ctx, log, res)
	if err != nil {
		r.finish(log, res, err)
		return
	}

	batch := models.RecordBatch{
		RunID:     res.RunID,
		StartedAt: res.StartedAt,
		Records:   records,
	}
	name, err := r.sink.Write(batch)
	if err != nil {
		var se *models.ScrapeError
		if !errors.As(err, &se) {
			se = models.NewScrapeError(models.ErrCodeStorage, "could not save the scraped data", err)
		}
		r.finish(log, res, se)
		return
	}
	res.Filename = name
	r.finish(log, res, nil)
}

// harvest owns the browser session. Every path that opened a session closes
// it before returning, including panics in settle, collect or extract.
func (r *Runner) harvest(ctx context.Context, log *slog.Logger, res *Result) (records []models.Record, err error) {
	browserStart := time.Now()

	log.Debug("state", "state", StateSessionOpen)
	session, err := r.opener.Open(ctx, r.opts.TargetURL)
	if err != nil {
		res.Timing.BrowserMs = time.Since(browserStart).Milliseconds()
		se := models.AsScrapeError(err)
		if se.Code == models.ErrCodeInternal {
			se = models.NewScrapeError(models.ErrCodeDriverUnavailable, "WebDriver failed to start. Details: "+err.Error(), err)
		}
		return nil, se
	}

	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("session close reported errors", "error", cerr)
		}
		res.SessionClosed = true
		log.Debug("state", "state", StateSessionClosed)
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("scrape run panicked", "panic", p, "stack", string(debug.Stack()))
			records = nil
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("unexpected failure: %v", p), nil)
		}
	}()

	log.Debug("state", "state", StateSettling, "settle_budget", r.opts.Policy.Total())
	if err := session.Settle(ctx, r.opts.Policy); err != nil {
		res.Timing.BrowserMs = time.Since(browserStart).Milliseconds()
		return nil, phaseError(err, "page did not settle")
	}

	log.Debug("state", "state", StateCollecting)
	cards, err := session.CollectCards(ctx, r.opts.CardSelector, r.opts.CardLimit)
	res.Timing.BrowserMs = time.Since(browserStart).Milliseconds()
	if err != nil {
		return nil, phaseError(err, "could not read card elements")
	}
	res.Stats.CardsFound = len(cards)
	if len(cards) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeNoContentFound, msgNoContent, nil)
	}

	log.Debug("state", "state", StateExtracting, "cards", len(cards))
	extractStart := time.Now()
	results := r.extractAll(ctx, cards, res.StartedAt)
	r.checkLayout(log, res, results)
	records, failures := partition(results)
	res.Timing.ExtractMs = time.Since(extractStart).Milliseconds()

	res.Failures = failures
	res.Stats.Records = len(records)
	res.Stats.Skipped = len(failures)
	for _, f := range failures {
		log.Warn("card skipped", "card", f.Index+1, "error", f.Err)
	}

	if len(records) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeStaleSelectors, msgStaleSelectors, nil)
	}
	return records, nil
}

// finish sets the terminal outcome and logs it.
func (r *Runner) finish(log *slog.Logger, res *Result, err error) {
	res.Timing.TotalMs = time.Since(res.began).Milliseconds()
	if err == nil {
		res.Outcome = StateSuccess
		log.Info("scrape run finished",
			"state", res.Outcome,
			"filename", res.Filename,
			"records", res.Stats.Records,
			"skipped", res.Stats.Skipped,
			"total_ms", res.Timing.TotalMs,
		)
		return
	}

	se := models.AsScrapeError(err)
	res.Err = se
	res.Outcome = StateFailed
	if se.Code == models.ErrCodeNoContentFound {
		res.Outcome = StateEmpty
	}
	log.Warn("scrape run finished",
		"state", res.Outcome,
		"code", se.Code,
		"error", se,
		"cards", res.Stats.CardsFound,
		"layout_drift", res.LayoutDrift,
		"total_ms", res.Timing.TotalMs,
	)
}

// phaseError classifies a settle or collect failure.
func phaseError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, msg+": run timed out", err)
	}
	return models.NewScrapeError(models.ErrCodeInternal, msg, err)
}
