// BriefBot fetches the day's news from configured RSS/Atom feeds, enriches
// it into exam-oriented briefs with an LLM, and publishes one JSON snapshot
// per day.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/examprep-tools/briefbot/internal/brief"
	"github.com/examprep-tools/briefbot/internal/feeds"
	"github.com/examprep-tools/briefbot/internal/images"
	"github.com/examprep-tools/briefbot/internal/pipeline"
	"github.com/examprep-tools/briefbot/internal/store"
	"github.com/examprep-tools/briefbot/pkg/config"
	"github.com/examprep-tools/briefbot/pkg/llm"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "briefbot",
		Short: "Daily current-affairs briefs for exam aspirants",
		Long: `BriefBot pulls news from configured RSS/Atom feeds, filters and ranks it,
enriches it into exam-oriented briefs with an LLM, and writes one JSON
snapshot per day plus a rebuildable index.

Environment variables:
  BRIEFBOT_CONFIG     Config file path (default: briefbot.yaml)
  BRIEFBOT_DATA_DIR   Output directory (default: data)
  LLM_PROVIDER        gemini or openai (default: gemini)
  LLM_API_KEY         API key for the LLM provider (required for run)
  LLM_MODELS          Comma-separated model chain, tried in order`,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(datesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// llmConfig is the model-chain section of the config file.
type llmConfig struct {
	Provider string        `yaml:"provider" env:"LLM_PROVIDER"`
	APIKey   string        `yaml:"api_key" env:"LLM_API_KEY"`
	Models   []string      `yaml:"models" env:"LLM_MODELS"`
	BaseURL  string        `yaml:"base_url" env:"LLM_BASE_URL"`
	Timeout  time.Duration `yaml:"timeout"`
}

type selectionConfig struct {
	TotalCap     int `yaml:"total_cap"`
	DiverseQuota int `yaml:"diverse_quota"`
}

type pacingConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	BatchPause  time.Duration `yaml:"batch_pause"`
}

// appConfig is the whole config file. Every field has a working default so
// the only strictly required setting is the API key.
type appConfig struct {
	DataDir      string          `yaml:"data_dir" env:"BRIEFBOT_DATA_DIR"`
	FetchTimeout time.Duration   `yaml:"fetch_timeout"`
	LLM          llmConfig       `yaml:"llm"`
	Selection    selectionConfig `yaml:"selection"`
	Pacing       pacingConfig    `yaml:"pacing"`
	Sources      []feeds.Source  `yaml:"sources"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		DataDir:      "data",
		FetchTimeout: 15 * time.Second,
		LLM: llmConfig{
			Provider: string(llm.Gemini),
			Models:   []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"},
			Timeout:  60 * time.Second,
		},
		Selection: selectionConfig{
			TotalCap:     pipeline.DefaultTotalCap,
			DiverseQuota: pipeline.DefaultDiverseQuota,
		},
		Pacing: pacingConfig{
			BatchSize:   pipeline.DefaultBatchSize,
			MaxAttempts: pipeline.DefaultMaxAttempts,
			BaseDelay:   pipeline.DefaultBaseDelay,
			BatchPause:  pipeline.DefaultBatchPause,
		},
	}
}

func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if path == "" {
		path = getEnv("BRIEFBOT_CONFIG", "briefbot.yaml")
	}
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (cfg appConfig) registry() *feeds.Registry {
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = feeds.DefaultSources()
	}
	return feeds.NewRegistry(sources)
}

// buildClients constructs the ordered model chain from the config.
func buildClients(cfg llmConfig) ([]llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key not set (LLM_API_KEY)")
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{llm.DefaultConfig().Model}
	}

	clients := make([]llm.Client, 0, len(models))
	for _, model := range models {
		c := llm.DefaultConfig()
		c.Provider = llm.Provider(cfg.Provider)
		c.Model = model
		c.APIKey = cfg.APIKey
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		client, err := llm.NewClient(c)
		if err != nil {
			return nil, fmt.Errorf("build client for %s: %w", model, err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

func runCmd() *cobra.Command {
	var configPath string
	var dateStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configPath, dateStr, force)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().StringVar(&dateStr, "date", "", "target date YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&force, "force", false, "re-run even if the day's snapshot exists")
	return cmd
}

func runPipeline(ctx context.Context, configPath, dateStr string, force bool) error {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}

	day := time.Now()
	if dateStr != "" {
		day, err = time.Parse(brief.DateFormat, dateStr)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", dateStr, err)
		}
	}

	logger := slog.Default()

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	clients, err := buildClients(cfg.LLM)
	if err != nil {
		return err
	}
	enricher := pipeline.NewEnricher(clients, logger)
	enricher.SetPacing(cfg.Pacing.BatchSize, cfg.Pacing.MaxAttempts, cfg.Pacing.BaseDelay, cfg.Pacing.BatchPause)

	archive, err := store.OpenArchive(filepath.Join(cfg.DataDir, "runs.db"))
	if err != nil {
		return err
	}
	defer archive.Close()

	renderer := images.NewCardRenderer(filepath.Join(cfg.DataDir, "cards"))
	background := pipeline.NewBackground(logger)

	registry := cfg.registry()
	runner := &pipeline.Runner{
		Registry:   registry,
		Fetcher:    feeds.NewFetcher(cfg.FetchTimeout, logger),
		Selector:   pipeline.NewSelector(cfg.Selection.TotalCap, cfg.Selection.DiverseQuota, registry.IsDiverse),
		Enricher:   enricher,
		Store:      st,
		Logger:     logger,
		Background: background,
		PostSave: func(ctx context.Context, snap brief.Snapshot, res pipeline.RunResult) {
			rec := store.RunRecord{
				Date:           res.Date,
				RanAt:          time.Now(),
				TotalScraped:   res.TotalScraped,
				TotalProcessed: res.TotalProcessed,
				Categories:     res.ByCategory,
				DurationMs:     res.Duration.Milliseconds(),
			}
			if err := archive.Record(ctx, rec); err != nil {
				logger.Warn("archive record failed", "error", err)
			}
			if path, err := renderer.RenderDaily(snap); err != nil {
				logger.Warn("card render failed", "error", err)
			} else {
				logger.Info("card rendered", "path", path)
			}
		},
	}

	res, err := runner.Run(ctx, day, force)
	if err != nil {
		return err
	}
	background.Wait()

	switch {
	case res.Skipped:
		fmt.Printf("Snapshot for %s already exists (%d articles); use --force to re-run.\n",
			res.Date, res.TotalProcessed)
	case res.Empty:
		fmt.Printf("Run for %s complete: no articles today.\n", res.Date)
	default:
		fmt.Printf("Run for %s complete: %d scraped, %d published, %d batches skipped.\n",
			res.Date, res.TotalScraped, res.TotalProcessed, res.SkippedBatches)
	}
	return nil
}

func showCmd() *cobra.Command {
	var configPath string
	var latest bool

	cmd := &cobra.Command{
		Use:   "show [date]",
		Short: "Print a day's snapshot as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DataDir, slog.Default())
			if err != nil {
				return err
			}

			var snap brief.Snapshot
			switch {
			case len(args) == 1:
				snap, err = st.LoadByDate(args[0])
			case latest:
				snap, err = st.LoadLatest()
			default:
				snap, err = st.LoadByDate(time.Now().Format(brief.DateFormat))
			}
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().BoolVar(&latest, "latest", false, "show the most recent snapshot")
	return cmd
}

func datesCmd() *cobra.Command {
	var configPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List available snapshot dates, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DataDir, slog.Default())
			if err != nil {
				return err
			}
			for _, d := range st.ListDates(limit) {
				fmt.Println(d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().IntVar(&limit, "limit", 0, "max dates to list (0 = all)")
	return cmd
}

func historyCmd() *cobra.Command {
	var configPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			archive, err := store.OpenArchive(filepath.Join(cfg.DataDir, "runs.db"))
			if err != nil {
				return err
			}
			defer archive.Close()

			runs, err := archive.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s  ran %s  scraped=%d published=%d  %dms\n",
					r.Date, r.RanAt.Format(time.RFC3339), r.TotalScraped, r.TotalProcessed, r.DurationMs)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("briefbot", version)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
