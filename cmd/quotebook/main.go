package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/justyntemme/quotebook/internal/config"
	"github.com/justyntemme/quotebook/internal/library"
	"github.com/justyntemme/quotebook/internal/logging"
	"github.com/justyntemme/quotebook/internal/metadata"
	"github.com/justyntemme/quotebook/internal/storage"
)

func main() {
	// QUOTEBOOK_* values already set in the environment win over these files
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	app := &cli.Command{
		Name:  "quotebook",
		Usage: "Keep a personal library of books and the quotes you collect from them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			searchCommand(),
			booksCommand(),
			quotesCommand(),
			tagsCommand(),
			langsCommand(),
			coverCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}

// env holds every component a command may need
type env struct {
	cfg      *config.Config
	log      *slog.Logger
	library  *library.Service
	prefs    *storage.Preferences
	recent   *storage.RecentLanguages
	covers   *storage.ImageCache
	searcher metadata.Searcher
}

// openEnv loads config and wires storage, search and the library service
func openEnv(c *cli.Command) (*env, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if c.Bool("debug") {
		level = "debug"
	}
	logger := logging.InitLogger(level, cfg.LogFormat)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	prefs, err := storage.NewPreferences(cfg.PreferencesPath())
	if err != nil {
		return nil, fmt.Errorf("opening preferences: %w", err)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout.Duration}
	covers, err := storage.NewImageCache(cfg.CoversPath(), storage.ImageCacheOptions{
		HTTPClient:    client,
		MemoryEntries: cfg.MemoryCacheEntries,
		Logger:        logger,
	})
	if err != nil {
		prefs.Close()
		return nil, fmt.Errorf("opening cover cache: %w", err)
	}

	searcher, err := newSearcher(cfg, client, logger)
	if err != nil {
		prefs.Close()
		return nil, err
	}

	store := storage.NewLibraryStore(cfg.LibraryPath(), logger)
	svc := library.NewService(store, logger)
	if err := svc.Load(); err != nil {
		prefs.Close()
		return nil, fmt.Errorf("loading library: %w", err)
	}

	logger.Debug("environment ready", "data_dir", cfg.DataDir, "library", store.Path(), "provider", searcher.Name())

	return &env{
		cfg:      cfg,
		log:      logger,
		library:  svc,
		prefs:    prefs,
		recent:   storage.NewRecentLanguages(prefs),
		covers:   covers,
		searcher: searcher,
	}, nil
}

// newSearcher picks the remote search backend named in the config
func newSearcher(cfg *config.Config, client *http.Client, logger *slog.Logger) (metadata.Searcher, error) {
	switch cfg.Provider {
	case "googlebooks":
		return metadata.NewGoogleBooksProvider(cfg.APIKey, metadata.GoogleBooksOptions{
			BaseURL:           cfg.APIBaseURL,
			HTTPClient:        client,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		}), nil
	case "openlibrary":
		return metadata.NewOpenLibraryProvider(metadata.OpenLibraryOptions{
			BaseURL:           cfg.APIBaseURL,
			HTTPClient:        client,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

func (e *env) Close() error {
	return e.prefs.Close()
}

// withEnv adapts a command body that needs the wired components
func withEnv(fn func(ctx context.Context, c *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, c, e)
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a sample configuration file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.String("config")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			cfg, err := config.GetDefaultConfig()
			if err != nil {
				return err
			}
			if err := cfg.SaveTemplateConfig(path); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Wrote " + path))
			return nil
		},
	}
}
