package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/config"
	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

var (
	configPath string
	dbOverride string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lifeaxes",
	Short: "Turn activity history into life axes",
	Long: "lifeaxes reads the habits, journal entries, finances and biography events you log " +
		"and finds the recurring themes of your life, tracks achievements and compares " +
		"what you do with how you describe yourself.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbOverride != "" {
			cfg.Database.Path = dbOverride
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = buildLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.lifeaxes/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(axesCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(declareCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(catalogCmd)
}

// buildLogger writes JSON logs to stderr, or console logs in development.
func buildLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	zc.OutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// openDB opens the configured database.
func openDB() (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

// newEngine builds an engine over db with a fixed catalog.
func newEngine(db *store.DB) (*engine.Engine, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return configureEngine(engine.New(db, catalog.Static{C: cat}, logger))
}

func configureEngine(e *engine.Engine) (*engine.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	e.Location = loc
	e.Concurrency = cfg.Pipeline.Concurrency
	return e, nil
}

func defaultWindow() (engine.Window, error) {
	return engine.ParseWindow(cfg.Pipeline.DefaultWindow, engine.Window90d)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
