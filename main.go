package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ErrTemplateUnavailable = errors.New("failed to load email template")

type options struct {
	configPath string
	envFile    string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "bulkmail",
		Short:        "Send an HTML email to every address of a list that matches a domain",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yml", "Path to the config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to the dotenv file with SMTP_* settings")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug level logging")

	root.AddCommand(
		newSendCommand(opts),
		newScanCommand(opts),
		newCheckCommand(opts),
	)
	return root
}

func (o *options) load(cmd *cobra.Command) (Config, *zap.SugaredLogger, error) {
	log := setupLogger(o.debug)
	cfg, err := LoadConfig(o.configPath, o.envFile, cmd.Flags().Changed("config"), cmd.Flags().Changed("env-file"))
	if err != nil {
		return Config{}, log, err
	}
	return cfg, log, nil
}

func newSendCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the template to every matching address, in batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			defer log.Sync()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			html, err := loadTemplate(cfg.Template)
			if err != nil {
				log.Errorw("run halted", "template", cfg.Template, "error", err)
				return err
			}

			runID := uuid.NewString()
			report := NewReport(cfg.ReportDir, time.Now())
			relay := NewSMTPRelay(cfg.SMTP)
			pipeline := NewPipeline(NewDispatcher(relay, cfg, log), report, cfg, log)

			log.Infow("run started",
				"run", runID,
				"source", cfg.Source,
				"domain", cfg.Domain,
				"batch_size", cfg.BatchSize,
				"report", report.Path(),
			)
			sum, err := pipeline.Run(cmd.Context(), runID, ReadAddresses(cfg.Source, cfg.Domain, log), html)
			logSummary(log, sum)
			if err != nil {
				log.Warnw("run interrupted", "run", runID, "error", err)
			}
			return err
		},
	}
}

func newScanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List the batches a send run would produce, without sending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			defer log.Sync()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSource(); err != nil {
				return err
			}
			return scan(cmd, cfg, log)
		},
	}
}

func scan(cmd *cobra.Command, cfg Config, log *zap.SugaredLogger) error {
	out := cmd.OutOrStdout()
	total := 0
	for batch := range Batches(ReadAddresses(cfg.Source, cfg.Domain, log), cfg.BatchSize) {
		fmt.Fprintf(out, "batch %d (%d addresses)\n", batch.Seq, len(batch.Addresses))
		for _, addr := range batch.Addresses {
			fmt.Fprintf(out, "  %s\n", addr)
		}
		total += len(batch.Addresses)
	}
	fmt.Fprintf(out, "%d addresses match %s\n", total, cfg.Domain)
	return nil
}

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect and authenticate to the SMTP relay without sending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			defer log.Sync()
			if err != nil {
				return err
			}
			if err := cfg.SMTP.Validate(); err != nil {
				return err
			}
			if err := NewSMTPRelay(cfg.SMTP).Health(cmd.Context()); err != nil {
				log.Errorw("relay check failed", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port, "error", err)
				return err
			}
			log.Infow("relay check passed", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
			return nil
		},
	}
}

func loadTemplate(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplateUnavailable, err)
	}
	return string(content), nil
}

func logSummary(log *zap.SugaredLogger, sum Summary) {
	fields := []any{
		"run", sum.RunID,
		"batches", sum.Batches,
		"delivered", sum.Delivered,
		"failed", sum.Failed,
		"unlogged", sum.Unlogged,
		"elapsed", sum.Elapsed.Round(time.Millisecond),
	}
	if usage, err := currentUsage(); err == nil {
		fields = append(fields, "pid", usage.PID, "rss_bytes", usage.RSS, "cpu_percent", fmt.Sprintf("%.2f", usage.CPU))
	} else {
		log.Debugw("process usage unavailable", "error", err)
	}
	log.Infow("run finished", fields...)
}
