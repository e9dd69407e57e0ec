package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/localrivet/summbench"
	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/llm"
	"github.com/localrivet/summbench/internal/logger"
	"github.com/localrivet/summbench/internal/resultstore"
	"github.com/localrivet/summbench/internal/schema"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// CLI holds the command line state shared by the subcommands
type CLI struct {
	configPath string
	logLevel   string
	logFormat  string
	out        io.Writer
}

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	cli := &CLI{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:   "summbench",
		Short: "Benchmark LLM summarization strategies",
		Long: fmt.Sprintf(`%s

Runs the fast and advanced summarization strategies over a dataset of
articles, scores every summary against its reference and writes CSV,
XLSX and YAML results.

%s
  summbench run                      # Benchmark the configured dataset
  summbench run --limit 50 -c 4      # Smaller run with 4 samples in flight
  summbench serve                    # MCP server on stdio
  summbench config init              # Write a default config file
  summbench check                    # Probe the model provider`,
			bold("summbench"),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cli.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cli.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(newRunCommand(cli))
	rootCmd.AddCommand(newServeCommand(cli))
	rootCmd.AddCommand(newConfigCommand(cli))
	rootCmd.AddCommand(newCheckCommand(cli))

	return rootCmd
}

// loadConfig reads the config file and applies the logging flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithPath(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	return cfg, nil
}

// open builds the benchmark and its logger from the loaded config.
func (c *CLI) open(overrides ...func(*config.Config)) (*summbench.Benchmark, *slog.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	for _, apply := range overrides {
		apply(cfg)
	}

	opts := logger.DefaultOptions()
	opts.Level = cfg.Logging.Level
	opts.Format = logger.ParseFormat(cfg.Logging.Format)
	log := logger.Setup(opts)

	b, err := summbench.New(summbench.Options{Config: cfg, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	return b, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(cli *CLI) *cobra.Command {
	var (
		opts       summbench.RunOptions
		strategies []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark over the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := schema.ParseStrategies(strategies)
			if err != nil {
				return withUsage(cmd, errortypes.ValidationError(err, "invalid --strategies"))
			}
			opts.Strategies = parsed

			b, log, err := cli.open()
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signalContext()
			defer stop()

			result, err := b.Run(ctx, opts)
			if result != nil {
				cli.printResult(result)
			}
			if err != nil && ctx.Err() != nil {
				log.Warn("Run interrupted, partial results written")
				return nil
			}
			return withUsage(cmd, err)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of samples (config sample_limit when 0)")
	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "", "Dataset JSON file (overrides config)")
	cmd.Flags().StringVarP(&opts.ResultsDir, "results-dir", "o", "", "Directory for result files (overrides config)")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 0, "Samples in flight (1 runs sequentially)")
	cmd.Flags().StringSliceVarP(&strategies, "strategies", "s", nil, "Strategies to run (fast, advanced)")

	return cmd
}

// withUsage prints the command usage for invalid input and passes err on.
func withUsage(cmd *cobra.Command, err error) error {
	if errortypes.IsValidationError(err) {
		_ = cmd.Usage()
	}
	return err
}

func (c *CLI) printResult(result *summbench.RunResult) {
	fmt.Fprintf(c.out, "\n%s %s (%s)\n", bold("Run"), result.Run.ID, statusColor(result.Run.Status))
	fmt.Fprintf(c.out, "%s %d records from %d samples\n\n", bold("Records:"), len(result.Records), result.Run.Samples)

	if result.Report != nil {
		fmt.Fprintf(c.out, "%-10s %6s %8s %8s %10s %10s %8s %8s %12s\n",
			"STRATEGY", "COUNT", "PASS", "QUALITY", "LAT_MEAN", "LAT_P95", "ROUGE", "BERT", "COST_USD")
		for _, s := range result.Report.Strategies {
			fmt.Fprintf(c.out, "%-10s %6d %8.3f %8.2f %10.1f %10d %8.3f %8.3f %12.6f\n",
				cyan(string(s.Strategy)), s.Count, s.PassRate, s.MeanQuality, s.MeanLatencyMS,
				s.P95LatencyMS, s.MeanRougeL, s.MeanBertScore, s.TotalCostUSD)
		}
		fmt.Fprintln(c.out)
	}

	if p := result.Paths; p != nil {
		fmt.Fprintln(c.out, bold("Files:"))
		for _, strategy := range result.Run.Strategies {
			if path, ok := p.CSV[strategy]; ok {
				fmt.Fprintf(c.out, "  %s\n", path)
			}
		}
		fmt.Fprintf(c.out, "  %s\n  %s\n", p.Workbook, p.Report)
	}
}

func statusColor(status string) string {
	switch status {
	case resultstore.StatusCompleted:
		return green(status)
	case resultstore.StatusCancelled:
		return yellow(status)
	default:
		return red(status)
	}
}

func newServeCommand(cli *CLI) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the benchmark tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, log, err := cli.open(func(cfg *config.Config) {
				if httpAddr != "" {
					cfg.Server.HTTPAddr = httpAddr
				}
			})
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signalContext()
			defer stop()

			cfg := b.Config()
			log.Info("Starting MCP server", "name", cfg.Server.Name, "http_addr", cfg.Server.HTTPAddr)
			return b.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Address for the HTTP status server (metrics, runs)")
	return cmd
}

func newConfigCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.NewConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, green("Wrote "+path))
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s %s\n", bold("Model:"), cfg.Model.Name)
			fmt.Fprintf(cli.out, "%s %s\n", bold("Dataset:"), cfg.Benchmark.DatasetPath)
			fmt.Fprintf(cli.out, "%s %s\n", bold("Results:"), cfg.Benchmark.ResultsDir)
			fmt.Fprintf(cli.out, "%s %s\n", bold("Strategies:"), strings.Join(cfg.Benchmark.Strategies, ", "))
			fmt.Fprintf(cli.out, "%s %d samples, %d rpm, %d tpm\n", bold("Limits:"),
				cfg.Limits.MaxConcurrentSamples, cfg.Limits.MaxRPM, cfg.Limits.MaxTPM)
			return nil
		},
	})

	return cmd
}

func newCheckCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the configured model provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := cli.open()
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signalContext()
			defer stop()

			report := b.Health(ctx)
			fmt.Fprintf(cli.out, "%s %s\n", bold("Status:"), healthColor(report.Status))
			for name, ok := range report.Providers {
				line := fmt.Sprintf("  %s: %.0fms", name, report.ResponseTimes[name])
				if !ok {
					line += " " + red(report.Errors[name])
				}
				fmt.Fprintln(cli.out, line)
			}
			if report.Status != llm.StatusHealthy {
				return fmt.Errorf("provider check failed")
			}
			return nil
		},
	}
}

func healthColor(status llm.HealthStatus) string {
	switch status {
	case llm.StatusHealthy:
		return green(string(status))
	case llm.StatusDegraded:
		return yellow(string(status))
	default:
		return red(string(status))
	}
}
