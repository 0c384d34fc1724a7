package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Daniil-33/trading-journal-back/config"
	"github.com/Daniil-33/trading-journal-back/internal/importer"
	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/logger"
	"github.com/Daniil-33/trading-journal-back/pkg/metrics"
	"github.com/Daniil-33/trading-journal-back/pkg/notify"
	"github.com/Daniil-33/trading-journal-back/pkg/report"
)

const usage = `usage: importer <command> [flags]

commands:
  candles      import OHLCV candle files from --root or --file
  indicators   import a calendar export from --file
  datasets     list stored candle datasets

flags:
`

// finishTimeout bounds report delivery after the run, including after an interrupt
const finishTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		newFlagSet().PrintDefaults()
		return 1
	}
	command := args[0]

	flags := newFlagSet()
	if err := flags.Parse(args[1:]); err != nil {
		return 1
	}
	configPath, _ := flags.GetString("config")

	// viper config
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// zap logger
	log, err := logger.New(cfg.Log, zap.String("command", command))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger: "+err.Error())
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	var summary ingest.RunSummary
	switch command {
	case importer.KindCandles:
		summary, err = runCandles(ctx, cfg, log, recorder)
	case importer.KindIndicators:
		summary, err = runIndicators(ctx, cfg, log, recorder)
	case "datasets":
		err = runDatasets(ctx, cfg, log)
		if err != nil {
			log.Error("listing datasets failed", zap.Error(err))
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		flags.PrintDefaults()
		return 1
	}
	if err != nil {
		log.Error("import failed", zap.Error(err))
		return 1
	}

	finish(ctx, cfg, log, recorder, summary)
	if summary.Cancelled() {
		log.Warn("import interrupted, summary is partial", zap.String("run_id", summary.RunID))
	}
	return 0
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("importer", pflag.ContinueOnError)
	flags.String("config", "", "path to config.yaml (default: ./config/config.yaml)")
	flags.String("root", "", "dataset root directory")
	flags.String("file", "", "single file to import")
	flags.String("layout", "auto", "dataset layout: auto, flat or nested")
	flags.Int("batch-size", ingest.DefaultBatchSize, "records per storage batch")
	flags.Int("workers", 4, "import units processed concurrently")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("report", "", "write the run summary to this path")
	return flags
}

// finish delivers the summary to every configured sink. Failures are logged only.
func finish(ctx context.Context, cfg *config.Config, log *zap.Logger, recorder *metrics.Recorder, summary ingest.RunSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	if cfg.Report.Path != "" {
		if err := report.Write(cfg.Report.Path, cfg.Report.Format, summary); err != nil {
			log.Error("failed to write report", zap.Error(err))
		} else {
			log.Info("report written", zap.String("path", cfg.Report.Path))
		}
	}

	if cfg.Kafka.Enabled {
		publisher := notify.NewSummaryPublisher(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.WriteTimeout)
		if err := publisher.Publish(ctx, summary); err != nil {
			log.Error("failed to publish summary", zap.Error(err))
		}
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close kafka writer", zap.Error(err))
		}
	}

	if recorder != nil {
		recorder.RecordRun(summary)
		if err := recorder.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job, summary.RunID); err != nil {
			log.Error("failed to push metrics", zap.Error(err))
		}
	}
}

func errMissingFlag(name string) error {
	return errors.New("missing --" + name)
}
