package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/use-agent/rfqscout/models"
)

var errScrapeFailed = errors.New("scrape failed")

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Runs one scrape and prints the CSV filename or the failure reason.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		a, driverErr, err := newApp(cfg)
		if models.HasCode(err, models.ErrCodeInvalidInput) {
			fmt.Fprintln(out, models.AsScrapeError(err).Reason())
			return errScrapeFailed
		}
		if err != nil {
			return err
		}

		if driverErr != nil {
			fmt.Fprintln(out, models.AsScrapeError(driverErr).Reason())
			return errScrapeFailed
		}

		res, err := a.runner.Run(cmd.Context())
		if err != nil {
			fmt.Fprintln(out, models.AsScrapeError(err).Reason())
			return errScrapeFailed
		}

		fmt.Fprintln(out, res.Filename)
		fmt.Fprintf(out, "saved %d RFQs to %s (%d cards skipped)\n",
			res.Stats.Records, filepath.Join(a.sink.Dir(), res.Filename), res.Stats.Skipped)
		return nil
	},
}
