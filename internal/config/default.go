package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
)

// Default configuration values.
const (
	DefaultFormat          = "json"
	DefaultFileMode        = "0644"
	DefaultSaveName        = "Save"
	DefaultAutosaveSlot    = 99
	DefaultAutosaveMinimum = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultMetricsNamespace = "savekeep"
)

// DefaultSaveDir returns the per-user save directory, falling back to
// ./saves when no user config directory is known.
func DefaultSaveDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "saves"
	}
	return filepath.Join(dir, "savekeep", "saves")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			SaveDir:  DefaultSaveDir(),
			Format:   DefaultFormat,
			FileMode: DefaultFileMode,
		},
		Game: GameSection{
			Version:         buildinfo.Get().Version,
			DefaultSaveName: DefaultSaveName,
		},
		Autosave: AutosaveSection{
			Enabled:     false,
			Slot:        DefaultAutosaveSlot,
			MinInterval: DefaultAutosaveMinimum,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Namespace: DefaultMetricsNamespace,
		},
	}
}
