package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
	"github.com/yndnr/savekeep-go/internal/infra/confloader"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/storage/slot"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

const envKey = "env"

// Env is what every command needs, built once by the Before hook.
type Env struct {
	Config  *config.Config
	Logger  logger.Logger
	Catalog *slot.Catalog
	Out     io.Writer
	ErrOut  io.Writer
	Format  output.Format
	Wide    bool
}

// Print formats v with the selected formatter.
func (e *Env) Print(v any) error {
	return output.NewFormatter(e.Format, e.Wide).Format(e.Out, v)
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "savekeep-cli",
		Usage:   "Inspect and maintain game save slots",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SlotsCommand(),
			WatchCommand(),
			SelftestCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			env, err := newEnv(c)
			if err != nil {
				return err
			}
			c.App.Metadata[envKey] = env
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"SAVEKEEP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "save-dir",
			Aliases: []string{"d"},
			Usage:   "Save directory (overrides storage.save_dir)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Slot file format for writes: json, binary",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// flagOverrides maps explicitly set global flags onto config keys.
func flagOverrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("save-dir") {
		m["storage.save_dir"] = c.String("save-dir")
	}
	if c.IsSet("format") {
		m["storage.format"] = c.String("format")
	}
	if c.IsSet("log-level") {
		m["log.level"] = c.String("log-level")
	}
	return m
}

// loadConfig layers defaults, the config file, SAVEKEEP_* variables and
// flags, in that order, and verifies the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	l := confloader.NewLoader()
	if err := l.LoadFile(c.String("config")); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := l.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := l.LoadMap(flagOverrides(c)); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newEnv(c *cli.Context) (*Env, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: errOut,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.SetDefault(log)

	catalog, err := newCatalog(cfg, log)
	if err != nil {
		return nil, err
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	return &Env{
		Config:  cfg,
		Logger:  log,
		Catalog: catalog,
		Out:     out,
		ErrOut:  errOut,
		Format:  format,
		Wide:    c.Bool("wide"),
	}, nil
}

func newCatalog(cfg *config.Config, log logger.Logger) (*slot.Catalog, error) {
	format, err := codec.ParseFormat(cfg.Storage.Format)
	if err != nil {
		return nil, err
	}
	mode, err := config.ParseFileMode(cfg.Storage.FileMode)
	if err != nil {
		return nil, err
	}
	return slot.NewCatalog(slot.Config{
		Dir:      cfg.Storage.SaveDir,
		Format:   format,
		FileMode: mode,
		Logger:   log,
	})
}

// GetEnv retrieves the environment built by the Before hook.
func GetEnv(c *cli.Context) (*Env, error) {
	if env, ok := c.App.Metadata[envKey].(*Env); ok {
		return env, nil
	}
	return nil, errors.New("command environment not initialised")
}

// slotArg parses the first positional argument as a slot index.
func slotArg(c *cli.Context) (domain.SlotIndex, error) {
	if c.NArg() < 1 {
		return 0, fmt.Errorf("missing SLOT argument")
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("invalid SLOT %q: not a number", c.Args().First())
	}
	s := domain.SlotIndex(n)
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return s, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
