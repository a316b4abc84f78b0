package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to run a conversion.
type Config struct {
	InputPath   string
	OutputPath  string
	ResourceDir string
	Workers     int
	LogLevel    string
	LogDir      string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("dir", "images", "Subdirectory for extracted resources, relative to the output file")
	flags.Int("workers", 4, "Number of concurrent resource extraction workers")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (file logging disabled when empty)")
	return nil
}

// LoadConfig converts the parsed Cobra flags and positional arguments
// into a Config struct with validation. args holds the input archive
// path and the output HTML path.
func LoadConfig(cmd *cobra.Command, args []string) (Config, error) {
	if len(args) != 2 {
		return Config{}, fmt.Errorf("expected <archive> and <output> arguments, got %d", len(args))
	}

	flags := cmd.Flags()

	resourceDir, err := flags.GetString("dir")
	if err != nil {
		return Config{}, err
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		InputPath:   filepath.Clean(args[0]),
		OutputPath:  filepath.Clean(args[1]),
		ResourceDir: resourceDir,
		Workers:     workers,
		LogLevel:    logLevel,
		LogDir:      logDir,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.InputPath == "" {
		return fmt.Errorf("archive path is required")
	}
	if cfg.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if strings.TrimSpace(cfg.ResourceDir) == "" {
		return fmt.Errorf("--dir must not be empty")
	}
	if filepath.IsAbs(cfg.ResourceDir) {
		return fmt.Errorf("--dir must be relative to the output directory")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
