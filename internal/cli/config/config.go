package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the Vireo project configuration.
type Config struct {
	ProjectName string       `mapstructure:"project_name"`
	Manifest    string       `mapstructure:"manifest"`
	Report      ReportConfig `mapstructure:"report"`
}

// ReportConfig controls how diagnostics are presented.
type ReportConfig struct {
	Format string `mapstructure:"format"`
}

// Load loads the configuration from vireo.yml or vireo.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("manifest", "app.yml")
	v.SetDefault("report.format", "terminal")

	// Set config name and paths
	v.SetConfigName("vireo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InProject checks if the current directory is a Vireo project.
func InProject() bool {
	if _, err := os.Stat("vireo.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("vireo.yaml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot tries to find the project root by looking for vireo.yml.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "vireo.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "vireo.yaml")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in a Vireo project (no vireo.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	switch cfg.Report.Format {
	case "terminal", "json":
		return nil
	default:
		return fmt.Errorf("report.format must be \"terminal\" or \"json\", got: %s", cfg.Report.Format)
	}
}
