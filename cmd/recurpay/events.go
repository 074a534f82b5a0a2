package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recurpay/job"
	"recurpay/mq"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail firing events published to Kafka",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, l, err := setup()
		if err != nil {
			return err
		}
		defer l.Sync()

		if !cfg.Events.Enabled() {
			return errors.Newf("events.brokers is not set in %s", configPath)
		}

		consumer, err := mq.NewConsumer(cfg.Events, l)
		if err != nil {
			return err
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		return consumer.Consume(ctx, func(value []byte) error {
			event, err := job.DecodeEvent(value)
			if err != nil {
				l.Warn("[Events] undecodable event", zap.ByteString("value", value), zap.Error(err))
				return nil
			}
			printEvent(out, event)
			return nil
		})
	},
}

func printEvent(w io.Writer, e job.Event) {
	fmt.Fprintf(w, "%s %s %s %d sats -> %s", e.FinishedAt.Format(time.RFC3339), e.Job, e.Result, e.AmountSats, e.Destination)
	switch {
	case e.Error != "":
		fmt.Fprintf(w, " (%s)", e.Error)
	case e.FailureReason != "":
		fmt.Fprintf(w, " (%s)", e.FailureReason)
	}
	fmt.Fprintln(w)
}
