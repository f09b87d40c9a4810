package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/backup"
	"techtrends/aggregator/internal/categorize"
	"techtrends/aggregator/internal/config"
	"techtrends/aggregator/internal/database"
	"techtrends/aggregator/internal/ingest"
	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/server"
	"techtrends/aggregator/internal/server/api"
	"techtrends/aggregator/internal/sources"
	"techtrends/aggregator/internal/sources/devto"
	"techtrends/aggregator/internal/sources/hackernews"
	"techtrends/aggregator/internal/store"
	"techtrends/aggregator/internal/summarize"
	"techtrends/aggregator/internal/trends"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.DefaultConfig()

	ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	ingestCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("TECHTRENDS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: TECHTRENDS_DB_PATH)")
	ingestCmd.StringVar(&cfg.RulesPath, "rules", config.GetEnvString("TECHTRENDS_RULES_PATH", config.DefaultRulesPath),
		"Path to a category rules YAML file, empty for the built-in rules (env: TECHTRENDS_RULES_PATH)")
	ingestCmd.IntVar(&cfg.MaxItems, "max-items", config.GetEnvInt("TECHTRENDS_MAX_ITEMS", config.DefaultMaxItems),
		"Maximum items fetched per source in one run, 0 for no cap (env: TECHTRENDS_MAX_ITEMS)")
	ingestCmd.DurationVar(&cfg.FetchDelay, "delay", config.GetEnvDuration("TECHTRENDS_FETCH_DELAY", cfg.FetchDelay),
		"Minimum delay between requests against one source (env: TECHTRENDS_FETCH_DELAY)")
	ingestCmd.StringVar(&cfg.DevToTag, "tag", config.GetEnvString("TECHTRENDS_DEVTO_TAG", config.DefaultDevToTag),
		"Restrict the dev.to fetch to one tag, empty for all articles (env: TECHTRENDS_DEVTO_TAG)")

	var intervalMinutes int
	ingestCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("TECHTRENDS_INTERVAL", config.DefaultInterval),
		"Interval in minutes between ingestion runs, 0 for one-shot mode (env: TECHTRENDS_INTERVAL)")

	var ingestLogLevelStr string
	ingestCmd.StringVar(&ingestLogLevelStr, "log-level", config.GetEnvString("TECHTRENDS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: TECHTRENDS_LOG_LEVEL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("TECHTRENDS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: TECHTRENDS_DB_PATH)")
	serverCmd.StringVar(&cfg.RulesPath, "rules", config.GetEnvString("TECHTRENDS_RULES_PATH", config.DefaultRulesPath),
		"Path to a category rules YAML file, empty for the built-in rules (env: TECHTRENDS_RULES_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("TECHTRENDS_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: TECHTRENDS_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("TECHTRENDS_PORT", config.DefaultServerPort),
		"Port to listen on (env: TECHTRENDS_PORT)")
	serverCmd.IntVar(&cfg.MaxItems, "max-items", config.GetEnvInt("TECHTRENDS_MAX_ITEMS", config.DefaultMaxItems),
		"Default per-source cap for ingestion runs triggered over HTTP (env: TECHTRENDS_MAX_ITEMS)")
	serverCmd.DurationVar(&cfg.FetchDelay, "delay", config.GetEnvDuration("TECHTRENDS_FETCH_DELAY", cfg.FetchDelay),
		"Minimum delay between requests against one source (env: TECHTRENDS_FETCH_DELAY)")
	serverCmd.StringVar(&cfg.DevToTag, "tag", config.GetEnvString("TECHTRENDS_DEVTO_TAG", config.DefaultDevToTag),
		"Restrict the dev.to fetch to one tag, empty for all articles (env: TECHTRENDS_DEVTO_TAG)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("TECHTRENDS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: TECHTRENDS_LOG_LEVEL)")

	recategorizeCmd := flag.NewFlagSet("recategorize", flag.ExitOnError)
	recategorizeCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("TECHTRENDS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: TECHTRENDS_DB_PATH)")
	recategorizeCmd.StringVar(&cfg.RulesPath, "rules", config.GetEnvString("TECHTRENDS_RULES_PATH", config.DefaultRulesPath),
		"Path to a category rules YAML file, empty for the built-in rules (env: TECHTRENDS_RULES_PATH)")

	var recategorizeLogLevelStr string
	recategorizeCmd.StringVar(&recategorizeLogLevelStr, "log-level", config.GetEnvString("TECHTRENDS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: TECHTRENDS_LOG_LEVEL)")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("TECHTRENDS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: TECHTRENDS_DB_PATH)")

	var exportFormat string
	exportCmd.StringVar(&exportFormat, "format", "csv", "Export format: csv or json")

	var exportOut string
	exportCmd.StringVar(&exportOut, "out", "", "Output file path, empty for stdout")

	var exportLogLevelStr string
	exportCmd.StringVar(&exportLogLevelStr, "log-level", config.GetEnvString("TECHTRENDS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: TECHTRENDS_LOG_LEVEL)")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("TECHTRENDS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: TECHTRENDS_DB_PATH)")

	var importCSVPath string
	importCmd.StringVar(&importCSVPath, "csv", "", "Path to the articles CSV file to import")

	var importFresh bool
	importCmd.BoolVar(&importFresh, "fresh", false, "Delete the existing database before importing")

	var importLogLevelStr string
	importCmd.StringVar(&importLogLevelStr, "log-level", config.GetEnvString("TECHTRENDS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: TECHTRENDS_LOG_LEVEL)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd.Parse(os.Args[2:])

		// Handle log level parsing separately since it needs conversion
		if level, err := zerolog.ParseLevel(ingestLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		// Convert interval minutes to duration
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runIngest(cfg); err != nil {
			log.Error().Err(err).Msg("Ingestion failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])

		// Handle log level parsing separately
		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "recategorize":
		recategorizeCmd.Parse(os.Args[2:])

		// Handle log level parsing separately
		if level, err := zerolog.ParseLevel(recategorizeLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runRecategorize(cfg); err != nil {
			log.Error().Err(err).Msg("Recategorization failed")
			os.Exit(1)
		}

	case "export":
		exportCmd.Parse(os.Args[2:])

		// Handle log level parsing separately
		if level, err := zerolog.ParseLevel(exportLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runExport(cfg, exportFormat, exportOut); err != nil {
			log.Error().Err(err).Msg("Export failed")
			os.Exit(1)
		}

	case "import":
		importCmd.Parse(os.Args[2:])

		// Handle log level parsing separately
		if level, err := zerolog.ParseLevel(importLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runImport(cfg, importCSVPath, importFresh); err != nil {
			log.Error().Err(err).Msg("Import failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: techtrends [command] [options]")
	fmt.Println("Commands: ingest, server, recategorize, export, import")
	fmt.Println("\nFor command-specific options, use: techtrends [command] -h")
}

// openDB opens the SQLite database, running migrations unless readOnly.
func openDB(path string, readOnly bool) (*database.DB, error) {
	dbCfg := database.NewConfig(path)
	dbCfg.ReadOnly = readOnly

	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// loadRules returns the category rule set, either the built-in one or the
// YAML file named in the configuration.
func loadRules(cfg *config.Config) ([]categorize.Rule, error) {
	if cfg.RulesPath == "" {
		return categorize.DefaultRules(), nil
	}

	rules, err := categorize.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}
	log.Info().Str("path", cfg.RulesPath).Int("rule_count", len(rules)).Msg("Loaded category rules")
	return rules, nil
}

// buildAdapters assembles the source adapters used by an ingestion runner.
func buildAdapters(cfg *config.Config) []sources.Adapter {
	return []sources.Adapter{
		hackernews.New(nil, sources.NewPacer(cfg.FetchDelay)),
		devto.New(nil, cfg.DevToTag),
	}
}

// runIngest executes ingestion either once or periodically based on configuration.
func runIngest(cfg *config.Config) error {
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DBPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := ingest.New(buildAdapters(cfg), rules, store.New(db))

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel() // Cancel the context to stop the current run
	}()

	if err := runIngestCycle(ctx, runner, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Ingestion canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("One-shot ingestion completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next ingestion cycle")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled ingestion cycle")

			if err := runIngestCycle(ctx, runner, cfg); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Ingestion canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Ingestion cycle failed")
				// Continue to the next cycle rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next ingestion cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic ingestion")
			return nil
		}
	}
}

// runIngestCycle executes a single ingestion run against all sources.
func runIngestCycle(ctx context.Context, runner *ingest.Runner, cfg *config.Config) error {
	cycleCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	startTime := time.Now()
	report, err := runner.Run(cycleCtx, cfg.MaxItems)
	if err != nil {
		return fmt.Errorf("ingestion error: %w", err)
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("fetched", report.Fetched).
		Int("inserted", report.Inserted).
		Int("skipped_duplicate", report.SkippedDuplicate).
		Int("skipped_invalid", report.SkippedInvalid).
		Int("failed", report.Failed).
		Int("failed_sources", len(report.FailedSources)).
		Msg("Ingestion cycle finished")
	return nil
}

// runServer starts the HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	// The ingestion endpoint writes, so the server opens read-write.
	db, err := openDB(cfg.DBPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db)
	runner := ingest.New(buildAdapters(cfg), rules, st)
	summarizer := summarize.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, nil)

	handler := api.NewHandler(st, trends.New(db), runner, summarizer, api.Config{
		MaxItems:       cfg.MaxItems,
		RecordSearches: cfg.RecordSearches,
	})

	return server.RunServer(handler, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}

// runRecategorize reapplies the category rules to every stored article.
func runRecategorize(cfg *config.Config) error {
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DBPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := store.New(db).RecategorizeAll(context.Background(), func(a models.Article) *string {
		return categorize.Apply(a, rules).Category
	})
	if err != nil {
		return fmt.Errorf("recategorizing articles: %w", err)
	}

	log.Info().Int64("changed", changed).Msg("Recategorization complete")
	return nil
}

// runExport writes the whole corpus to a file or stdout as CSV or JSON.
func runExport(cfg *config.Config, format, outPath string) error {
	format = strings.ToLower(format)
	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported export format %q: use csv or json", format)
	}

	db, err := openDB(cfg.DBPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	articles, err := store.New(db).All(context.Background())
	if err != nil {
		return fmt.Errorf("loading articles: %w", err)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "csv":
		err = backup.WriteCSV(out, articles)
	case "json":
		err = backup.WriteJSON(out, articles)
	}
	if err != nil {
		return fmt.Errorf("writing %s export: %w", format, err)
	}

	log.Info().Int("article_count", len(articles)).Str("format", format).Msg("Export complete")
	return nil
}

// runImport loads articles from a CSV backup into the database.
// With -fresh it prompts for confirmation before deleting an existing database.
func runImport(cfg *config.Config, csvPath string, fresh bool) error {
	if csvPath == "" {
		return fmt.Errorf("missing required -csv flag")
	}

	if fresh {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			fmt.Printf("Database %s already exists. All existing articles will be lost.\n", cfg.DBPath)
			fmt.Print("Delete and recreate? (y/N): ")

			var answer string
			fmt.Scanln(&answer)

			if strings.ToLower(answer) != "y" {
				log.Info().Msg("Operation canceled by user")
				return fmt.Errorf("operation canceled by user")
			}

			if err := database.DeleteDB(cfg.DBPath); err != nil {
				log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to delete existing database")
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			log.Info().Str("path", cfg.DBPath).Msg("Deleted existing database")
		}
	}

	db, err := openDB(cfg.DBPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := backup.NewImporter(store.New(db)).ImportCSV(context.Background(), csvPath)
	if err != nil {
		return err
	}

	log.Info().
		Int("inserted", result.Inserted).
		Int("skipped_duplicate", result.SkippedDuplicate).
		Int("failed", result.Failed).
		Int("line_errors", len(result.LineErrors)).
		Msg("Import complete")
	return nil
}
