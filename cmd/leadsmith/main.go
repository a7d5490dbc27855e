package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/metrics"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
	"github.com/amosWeiskopf/leadsmith/pkg/analyzer"
	"github.com/amosWeiskopf/leadsmith/pkg/classifier"
	"github.com/amosWeiskopf/leadsmith/pkg/crawler"
	"github.com/amosWeiskopf/leadsmith/pkg/extractor"
	"github.com/amosWeiskopf/leadsmith/pkg/fetcher"
	"github.com/amosWeiskopf/leadsmith/pkg/orchestrator"
	"github.com/amosWeiskopf/leadsmith/pkg/quota"
	"github.com/amosWeiskopf/leadsmith/pkg/reporter"
	"github.com/amosWeiskopf/leadsmith/pkg/search"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// env is built by the root command before any subcommand runs.
var env *app

var rootCmd = &cobra.Command{
	Use:   "leadsmith",
	Short: "Leadsmith - search-driven lead acquisition",
	Long: `Leadsmith searches the web for market keywords, turns the results into
deduplicated business leads, crawls their sites for contact details and mines
accepted leads for new keyword ideas.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		env = a
		return nil
	},
}

// app holds the process-wide dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   *storage.Store
	metrics *metrics.Metrics
	report  *reporter.Reporter
	redis   *redis.Client
	server  *http.Server
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	formatName, _ := cmd.Flags().GetString("format")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	format, err := reporter.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: cfg.Logging.Format, OutputPath: cfg.Logging.OutputPath})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := storage.Open(cmd.Context(), cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: metrics.New(),
		report:  reporter.New(format, cmd.OutOrStdout()),
	}

	if cfg.Redis.Address != "" {
		client, err := quota.NewRedisClient(quota.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
	}

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		a.serveMetrics(metricsAddr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server failed", logger.Error(err))
		}
	}()
	a.log.Info("Serving metrics", logger.String("addr", addr))
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.Close()
	_ = a.log.Sync()
}

func (a *app) tracker() *quota.Tracker {
	opts := []quota.Option{quota.WithLimitSource(a.store), quota.WithLogger(a.log)}
	if a.redis != nil {
		opts = append(opts, quota.WithCounter(quota.NewRedisCounter(a.redis, a.cfg.Redis.KeyPrefix)))
	}
	return quota.NewTracker(a.store, a.cfg.Search.DailyLimit, opts...)
}

func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	provider, err := search.New(a.cfg)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(
		a.store,
		provider,
		a.tracker(),
		classifier.NewNormalizer(a.cfg.Classifier.StripPrefixes),
		classifier.New(a.store, a.cfg.Classifier.Marketplaces, a.cfg.Classifier.ExcludedDomains, a.log),
		orchestrator.OptionsFromConfig(a.cfg.Search),
		a.log,
		a.metrics,
	), nil
}

func (a *app) fetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.OptionsFromConfig(a.cfg.Crawler), a.log)
}

func (a *app) enricher() (*crawler.Enricher, error) {
	ext, err := extractor.New(a.cfg.Crawler)
	if err != nil {
		return nil, err
	}
	opts := crawler.OptionsFromConfig(a.cfg.Crawler)
	c := crawler.New(a.fetcher(), ext, opts, a.log, a.metrics)
	return crawler.NewEnricher(c, a.store, opts, a.log), nil
}

func (a *app) analyzer() *analyzer.Analyzer {
	return analyzer.New(analyzer.ConfigFrom(a.cfg), a.fetcher(), a.store, a.log, a.metrics)
}

// market resolves a market by numeric id or by code.
func (a *app) market(ctx context.Context, ref string) (*models.Market, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.store.GetMarket(ctx, id)
	}
	return a.store.GetMarketByCode(ctx, ref)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed the marketplace registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		added, err := env.store.SeedMarketplaces(cmd.Context(), env.cfg.Classifier.Marketplaces)
		if err != nil {
			return fmt.Errorf("seed marketplaces: %w", err)
		}
		env.log.Info("Schema ready", logger.Int("marketplaces_added", added))
		fmt.Fprintf(cmd.OutOrStdout(), "Schema ready, %d marketplace entries added\n", added)
		return nil
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's search quota usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats, err := env.tracker().Stats(cmd.Context())
		if err != nil {
			return err
		}
		return env.report.Render(stats)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(marketCmd)
	rootCmd.AddCommand(keywordCmd)
	rootCmd.AddCommand(leadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(marketplaceCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file path")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("format", "table", "Output format (table, json, markdown)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if env != nil {
		env.close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
