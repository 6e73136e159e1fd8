package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/ynabsync/pkg/config"
	"github.com/yurifrl/ynabsync/pkg/ledger"
	"github.com/yurifrl/ynabsync/pkg/metrics"
	"github.com/yurifrl/ynabsync/pkg/report"
	"github.com/yurifrl/ynabsync/pkg/service"
	"github.com/yurifrl/ynabsync/pkg/storage"
)

const metricsJob = "ynabsync"

var (
	cfgFile string
	envFile string
)

var (
	v      = viper.New()
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ynabsync",
	})
)

var rootCmd = &cobra.Command{
	Use:           "ynabsync",
	Short:         "Import bank CSV exports from object storage into YNAB",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import every pending export and archive it (default)",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

// loadConfig reads the env file, the optional config file and the
// environment, and applies the configured log level.
func loadConfig() (*config.Config, error) {
	return loadConfigWith(config.Load)
}

// loadConfigWith is loadConfig with the validation of one subcommand.
func loadConfigWith(load func(*viper.Viper) (*config.Config, error)) (*config.Config, error) {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return cfg, nil
}

// Overridden in tests.
var (
	openSession = func(endpoint, token, cacheDir string, logger *log.Logger) (ledger.Session, error) {
		return ledger.Open(endpoint, token, cacheDir, logger)
	}
	newStore = func(cfg *config.Config) storage.Store {
		return storage.NewBucket(storage.Config{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.EndpointURL(),
			KeyID:     cfg.Storage.KeyID,
			SecretKey: cfg.Storage.SecretKey,
			PathStyle: cfg.Storage.PathStyle,
		})
	}
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return syncAll(cmd.Context(), cfg, cmd.OutOrStdout())
}

// syncAll runs one pass over every descriptor and reports it to out. The
// ledger session is closed exactly once, before the summary is printed.
func syncAll(ctx context.Context, cfg *config.Config, out io.Writer) error {
	session, err := openSession(cfg.Ledger.Server, cfg.Ledger.Token, cfg.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger session: %w", err)
	}

	processor := service.NewProcessor(cfg, logger, session, newStore(cfg), service.WithPreview(out))
	logger.Info("starting run",
		"run_id", processor.RunID(),
		"bucket", cfg.Storage.Bucket,
		"descriptors", len(cfg.Imports),
		"dry_run", cfg.DryRun,
	)

	summary := runAndClose(ctx, processor, session)
	logger.Info("all done", "run_id", summary.RunID)
	summary.Print(out)

	if cfg.Metrics.Pushgateway != "" {
		m := metrics.New()
		m.Observe(summary)
		if err := m.Push(ctx, cfg.Metrics.Pushgateway, metricsJob); err != nil {
			logger.Warn("failed to push metrics", "err", err)
		}
	}

	if cfg.Strict && summary.FailedCount() > 0 {
		return fmt.Errorf("%d descriptor(s) failed: %w", summary.FailedCount(), summary.Err())
	}
	return nil
}

// runAndClose closes session once the run returns, also when it panics.
func runAndClose(ctx context.Context, processor *service.Processor, session ledger.Session) *report.Summary {
	defer closeSession(session)
	return processor.Run(ctx)
}

func closeSession(session ledger.Session) {
	if err := session.Close(); err != nil {
		logger.Warn("failed to close ledger session", "err", err)
	}
}

// bindFlags lets the named flags override their viper keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			// BindPFlag only errors on a nil flag.
			_ = v.BindPFlag(key, f)
		}
	}
}

func init() {
	config.Bind(v)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (YAML)")
	flags.StringVar(&envFile, "env-file", ".env", "Env file loaded before reading the environment")
	flags.Bool("dry-run", false, "Parse files and print what would be imported, without importing or archiving")
	flags.Bool("strict", false, "Exit non-zero when any descriptor failed")

	bindFlags(v, flags, map[string]string{
		"dry_run": "dry-run",
		"strict":  "strict",
	})

	accountsCmd.Flags().BoolVar(&cachedAccounts, "cached", false, "Read accounts from the snapshot cache instead of downloading")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}
}
