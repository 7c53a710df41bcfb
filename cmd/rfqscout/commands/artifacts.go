package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/rfqscout/sink"
)

func init() {
	rootCmd.AddCommand(artifactsCmd)
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Lists the CSV files in the output directory, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		artifacts, err := sink.New(cfg.Output.Dir).List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILENAME\tSIZE\tCREATED")
		for _, a := range artifacts {
			fmt.Fprintf(w, "%s\t%d\t%s\n", a.Filename, a.SizeBytes, a.CreatedAt.Format(time.DateTime))
		}
		return w.Flush()
	},
}
