package main

import (
	"fmt"
	"io"
	"time"

	"recurpay/job"

	"github.com/spf13/cobra"
)

var activations int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print upcoming activations",
	Long: `Loads the configuration, builds every job and prints its resolved
endpoint and next activations. The payment node is not contacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, l, err := setup()
		if err != nil {
			return err
		}
		defer l.Sync()

		jobs, err := buildJobs(cfg.Jobs, time.Now(), l)
		if err != nil {
			return err
		}
		printActivations(cmd.OutOrStdout(), jobs, activations)
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVarP(&activations, "count", "n", 5, "activations to print per job")
}

func printActivations(w io.Writer, jobs []job.Job, n int) {
	for _, j := range jobs {
		def := j.Definition()
		fmt.Fprintf(w, "%s: %d sats every %q\n", j.Name(), def.AmountSats, def.CronExpression)
		if endpoint, err := j.Endpoint(); err != nil {
			fmt.Fprintf(w, "  endpoint: error: %v\n", err)
		} else {
			fmt.Fprintf(w, "  endpoint: %s\n", endpoint)
		}

		next := j.Snapshot()
		if !next.Due() {
			fmt.Fprintln(w, "  no upcoming activation")
			continue
		}
		for i := 0; i < n && next.Due(); i++ {
			fmt.Fprintf(w, "  %s\n", next.NextRun.Format(time.RFC3339))
			next.Advance(next.NextRun)
		}
	}
}
