// Package scraper drives the browser: it opens a session on the RFQ page,
// settles it and hands back the rendered card elements.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rfqscout/config"
	"github.com/use-agent/rfqscout/models"
	"github.com/ysmood/gson"
)

// Session is one live browser page positioned at the target URL.
// It must be closed on every exit path.
type Session interface {
	// Settle runs the wait/scroll heuristic so lazy content can render.
	Settle(ctx context.Context, p WaitPolicy) error

	// CollectCards snapshots the elements matching selector, in document
	// order, truncated to limit (0 means no limit). No match is an empty
	// slice and a nil error.
	CollectCards(ctx context.Context, selector string, limit int) ([]Card, error)

	// Close releases the page and the browser process it owns.
	Close() error
}

// Card is an opaque handle to one rendered card element.
type Card interface {
	OuterHTML(ctx context.Context) (string, error)
}

// Driller opens browser sessions. A fresh browser is launched per session
// unless BrowserConfig.CDPURL points at a running one.
type Driller struct {
	browserCfg config.BrowserConfig
	navTimeout time.Duration
}

// NewDriller creates a Driller. It does not start a browser.
func NewDriller(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *Driller {
	return &Driller{
		browserCfg: browserCfg,
		navTimeout: scraperCfg.NavigationTimeout,
	}
}

// CheckDriver verifies that the driver binary exists. In attach mode there
// is nothing to launch, so it always succeeds.
func (d *Driller) CheckDriver() error {
	if d.browserCfg.CDPURL != "" {
		return nil
	}
	return checkDriver(d.browserCfg.DriverPath)
}

func checkDriver(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			fmt.Sprintf("ChromeDriver not found at %s.", path),
			err,
		)
	}
	return nil
}

// Stats reports the driver the next session would use.
func (d *Driller) Stats() models.DriverStats {
	if d.browserCfg.CDPURL != "" {
		return models.DriverStats{Available: true, Attached: true}
	}
	return models.DriverStats{
		Path:      d.browserCfg.DriverPath,
		Available: d.CheckDriver() == nil,
	}
}

// Open starts (or attaches to) a browser and navigates a new page to
// targetURL. Failing to find, launch or connect to the browser is
// ErrCodeDriverUnavailable.
func (d *Driller) Open(ctx context.Context, targetURL string) (Session, error) {
	s := &rodSession{attached: d.browserCfg.CDPURL != ""}

	controlURL := d.browserCfg.CDPURL
	if !s.attached {
		if err := checkDriver(d.browserCfg.DriverPath); err != nil {
			return nil, err
		}
		s.launcher = d.newLauncher()
		s.cleanupProfile = d.browserCfg.UserDataDir == ""
		u, err := s.launcher.Launch()
		if err != nil {
			s.launcher.Kill()
			return nil, models.NewScrapeError(
				models.ErrCodeDriverUnavailable,
				fmt.Sprintf("WebDriver failed to start. Details: %v", err),
				err,
			)
		}
		controlURL = u
		slog.Info("browser launched", "controlURL", controlURL)
	}

	// The browser's own context outlives ctx; cancelling it drops the
	// websocket without killing an attached browser.
	browserCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.browser = rod.New().Context(browserCtx).ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.teardown()
		return nil, models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			fmt.Sprintf("WebDriver failed to start. Details: %v", err),
			err,
		)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.teardown()
		return nil, models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			"failed to open a browser page",
			err,
		)
	}
	s.page = page

	if err := d.prepare(page); err != nil {
		slog.Warn("page preparation incomplete, proceeding", "error", err)
	}
	s.router = setupHijack(page, d.browserCfg.BlockedResourceTypes, d.browserCfg.BlockTrackers)

	navCtx := ctx
	if d.navTimeout > 0 {
		var navCancel context.CancelFunc
		navCtx, navCancel = context.WithTimeout(ctx, d.navTimeout)
		defer navCancel()
	}
	nav := page.Context(navCtx)
	if err := nav.Navigate(targetURL); err != nil {
		s.teardown()
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	// The RFQ page keeps long-polling, so load is best-effort; settle
	// covers the rest.
	if err := nav.WaitLoad(); err != nil {
		slog.Debug("page load did not complete, proceeding with current DOM", "error", err)
	}

	return s, nil
}

// newLauncher configures the local browser launch.
func (d *Driller) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Bin(d.browserCfg.DriverPath).
		Headless(d.browserCfg.Headless).
		NoSandbox(d.browserCfg.NoSandbox)

	if d.browserCfg.UserDataDir != "" {
		l = l.UserDataDir(d.browserCfg.UserDataDir)
	}
	if d.browserCfg.Proxy != "" {
		l = l.Proxy(d.browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("start-maximized"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// prepare installs stealth JS and extra headers. Both must happen before
// navigation to take effect.
func (d *Driller) prepare(page *rod.Page) error {
	var errs []error
	if d.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			errs = append(errs, fmt.Errorf("stealth injection: %w", err))
		}
	}
	if d.browserCfg.AcceptLanguage != "" {
		err := proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Accept-Language": gson.New(d.browserCfg.AcceptLanguage)},
		}.Call(page)
		if err != nil {
			errs = append(errs, fmt.Errorf("extra headers: %w", err))
		}
	}
	return errors.Join(errs...)
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell deadlines from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "scrape canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
