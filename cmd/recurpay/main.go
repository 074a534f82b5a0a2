package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recurpay"
	"recurpay/config"
	"recurpay/job"
	"recurpay/lnurl"
	"recurpay/logger"
	"recurpay/metrics"
	"recurpay/mq"
	"recurpay/node"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const verifyTimeout = 30 * time.Second

var (
	configPath string
	logPath    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "recurpay",
	Short: "Pay Lightning addresses and LNURLs on a cron schedule",
	Long: `recurpay reads recurring payment jobs from a YAML file and pays each
destination through an LND node whenever its cron expression fires.

Examples:
  recurpay -c config.yaml           # run the scheduler
  recurpay validate -n 3            # show the next three activations of every job
  recurpay events                   # tail firing events from Kafka`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config-path", "c", config.DefaultPath, "configuration file, created with a template when missing")
	rootCmd.PersistentFlags().StringVarP(&logPath, "log-path", "l", "", "also write JSON logs to this rotated file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by every command.
func setup() (config.Config, *zap.Logger, error) {
	l, err := logger.New(logger.Options{Path: logPath, Level: logLevel})
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		l.Error("[Main] load configuration", zap.String("path", configPath), zap.Error(err))
		return config.Config{}, nil, err
	}
	return cfg, l, nil
}

// buildJobs fails on the first invalid definition. Destinations that do not
// resolve are reported here and again on every firing.
func buildJobs(defs []job.Definition, now time.Time, l *zap.Logger) ([]job.Job, error) {
	jobs := make([]job.Job, 0, len(defs))
	for _, def := range defs {
		j, err := job.New(def, now)
		if err != nil {
			return nil, err
		}
		if _, err := j.Endpoint(); err != nil {
			l.Warn("[Main] destination does not resolve, every firing will fail",
				zap.String("job", j.Name()), zap.Error(err))
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	defer l.Sync()

	jobs, err := buildJobs(cfg.Jobs, time.Now(), l)
	if err != nil {
		l.Error("[Main] build jobs", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	info, err := node.Verify(verifyCtx, node.DialLND, cfg.Connection())
	cancel()
	if err != nil {
		l.Error("[Main] verify connection to payment node", zap.String("server_url", cfg.ServerURL), zap.Error(err))
		return errors.Wrap(err, "verify connection to payment node")
	}
	l.Info("[Main] connected to payment node", zap.String("alias", info.Alias), zap.String("pubkey", info.PubKey))

	negotiator := lnurl.NewNegotiator(l, lnurl.WithTimeout(cfg.HTTPTimeout))
	payer := node.NewPayer(node.DialLND, cfg.Connection(), l)

	var options []job.RunnerOption
	if cfg.Events.Enabled() {
		producer, err := mq.NewProducer(cfg.Events, l)
		if err != nil {
			l.Error("[Main] create event producer", zap.Error(err))
			return err
		}
		defer producer.Close()
		options = append(options, job.WithPublisher(producer))
	}
	runner := job.NewRunner(negotiator, payer, l, options...)

	if cfg.MetricsListen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsListen, l); err != nil {
				l.Error("[Main] metrics server", zap.Error(err))
			}
		}()
	}

	scheduler := recurpay.New(jobs, runner, l)
	err = scheduler.Run(ctx)
	scheduler.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
