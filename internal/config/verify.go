package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/yndnr/savekeep-go/internal/storage/codec"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyAutosave(&cfg.Autosave); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SaveDir == "" {
		return errors.New("storage.save_dir is required")
	}
	if _, err := codec.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("storage.format: %w", err)
	}
	if _, err := ParseFileMode(cfg.FileMode); err != nil {
		return fmt.Errorf("storage.file_mode: %w", err)
	}
	return nil
}

func verifyAutosave(cfg *AutosaveSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Slot < 0 {
		return errors.New("autosave.slot must not be negative")
	}
	if cfg.MinInterval < 0 {
		return errors.New("autosave.min_interval must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

// ParseFileMode parses an octal permission string. Empty means 0644.
func ParseFileMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0o644, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q", s)
	}
	if v == 0 || v > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return os.FileMode(v), nil
}
