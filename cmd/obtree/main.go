// Package main provides the obtree command line tool.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/KilimcininKorOglu/obtree/internal/config"
	"github.com/KilimcininKorOglu/obtree/internal/logging"
	"github.com/KilimcininKorOglu/obtree/internal/storage/engine"
)

func main() {
	os.Exit(run(os.Args))
}

// run executes the CLI and returns an exit code.
func run(args []string) int {
	return runWith(args, os.Stdout, os.Stderr)
}

func runWith(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var coder cli.ExitCoder
		if errors.As(err, &coder) && coder.ExitCode() != 0 {
			return coder.ExitCode()
		}
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "obtree",
		Usage:     "inspect and edit an obtree database",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		// Errors are reported by runWith.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"OBTREE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "storage directory (overrides config)",
				EnvVars: []string{"OBTREE_DIR"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "storage backend: memory, file, or pebble (overrides config)",
				EnvVars: []string{"OBTREE_BACKEND"},
			},
			&cli.IntFlag{
				Name:  "degree",
				Usage: "minimum degree for a new tree (overrides config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity level (eg: warn, info, debug)",
				EnvVars: []string{"OBTREE_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			putCommand,
			getCommand,
			delCommand,
			scanCommand,
			statsCommand,
			verifyCommand,
			configCommand,
			metricsCommand,
			versionCommand,
		},
	}
}

// loadConfig reads the configuration named by --config, or the defaults,
// then applies the global override flags.
func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := cctx.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if cctx.IsSet("dir") {
		cfg.Storage.Dir = cctx.String("dir")
	}
	if cctx.IsSet("backend") {
		cfg.Storage.Backend = cctx.String("backend")
	}
	if cctx.IsSet("degree") {
		cfg.Tree.Degree = cctx.Int("degree")
	}
	if cctx.IsSet("log-level") {
		cfg.Logging.Level = cctx.String("log-level")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// withDB opens the configured database, runs fn and closes it. When write
// is set the database is created if needed and flushed before closing;
// otherwise it is opened read-only and left untouched on disk.
func withDB(cctx *cli.Context, write bool, fn func(db *engine.DB) error) (err error) {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	open := engine.OpenReadOnly
	if write {
		open = engine.Open
	}
	db, err := open(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()

	if err := fn(db); err != nil {
		return err
	}
	if write {
		return db.Flush()
	}
	return nil
}
