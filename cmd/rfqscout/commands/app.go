package commands

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/rfqscout/config"
	"github.com/use-agent/rfqscout/extractor"
	"github.com/use-agent/rfqscout/models"
	"github.com/use-agent/rfqscout/runner"
	"github.com/use-agent/rfqscout/scraper"
	"github.com/use-agent/rfqscout/sink"
	"github.com/use-agent/rfqscout/webhook"
)

// app is the wired set of components every command shares.
type app struct {
	driller *scraper.Driller
	sink    *sink.CSV
	runner  *runner.Runner
}

// newApp builds the components and runs the startup checks: the output
// directory is created, the card selector is compiled and the driver
// binary is looked up. A missing
// driver is returned as driverErr rather than failing, so the caller
// decides whether it is fatal.
func newApp(cfg *config.Config) (a *app, driverErr error, err error) {
	if err := sink.EnsureDir(cfg.Output.Dir); err != nil {
		return nil, nil, err
	}

	if err := extractor.ValidateSelector(cfg.Scraper.CardSelector); err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("invalid card selector %q (RFQSCOUT_CARD_SELECTOR)", cfg.Scraper.CardSelector), err)
	}

	ex, err := extractor.New(extractor.DefaultSelectors(), cfg.Scraper.TargetURL)
	if err != nil {
		return nil, nil, fmt.Errorf("build extractor: %w", err)
	}

	driller := scraper.NewDriller(cfg.Browser, cfg.Scraper)
	driverErr = driller.CheckDriver()
	if driverErr != nil {
		slog.Error("browser driver unavailable", "path", cfg.Browser.DriverPath, "error", driverErr)
	} else {
		slog.Info("browser driver found", "path", cfg.Browser.DriverPath, "attach", cfg.Browser.CDPURL != "")
	}

	csvSink := sink.New(cfg.Output.Dir)
	rn := runner.New(driller, ex, csvSink, runner.OptionsFromConfig(cfg.Scraper))
	if n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret); n != nil {
		rn.SetNotifier(n)
		slog.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}

	return &app{driller: driller, sink: csvSink, runner: rn}, driverErr, nil
}
