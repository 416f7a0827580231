package config

import "time"

// Config is the root configuration.
type Config struct {
	Storage  StorageSection  `koanf:"storage"`
	Game     GameSection     `koanf:"game"`
	Autosave AutosaveSection `koanf:"autosave"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// StorageSection configures where and how slots are written.
type StorageSection struct {
	SaveDir string `koanf:"save_dir"`

	// Format is "json" or "binary".
	Format string `koanf:"format"`

	// FileMode is an octal permission string such as "0644".
	FileMode string `koanf:"file_mode"`
}

// GameSection configures values stamped into every save.
type GameSection struct {
	// Version defaults to the build version.
	Version         string `koanf:"version"`
	DefaultSaveName string `koanf:"default_save_name"`
}

// AutosaveSection configures the autosave scheduler.
type AutosaveSection struct {
	Enabled     bool          `koanf:"enabled"`
	Slot        int           `koanf:"slot"`
	MinInterval time.Duration `koanf:"min_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures Prometheus metrics.
type MetricsSection struct {
	Namespace string `koanf:"namespace"`
}
