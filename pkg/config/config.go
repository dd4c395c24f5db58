// Package config provides configuration management for the reconciliation toolkit.
// It loads configuration from environment variables and .env files. The pipelines
// themselves never read the environment; only the CLI consults this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Output OutputConfig
	NACHA  NACHAConfig
	// Registry is an optional YAML file replacing the built-in location registry.
	Registry string
	Debug    bool
	// LogJSON switches the log formatter to JSON.
	LogJSON bool
}

// OutputConfig represents where and how reports are written.
type OutputConfig struct {
	Root  string `validate:"required"`
	Audit bool
}

// NACHAConfig represents the originator data for ACH files.
type NACHAConfig struct {
	Enabled     bool
	ODFIRouting string `validate:"omitempty,numeric,len=9"`
	CompanyID   string `validate:"omitempty,max=10"`
	CompanyName string `validate:"omitempty,max=16"`
}

var validate = validator.New()

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	audit, err := parseBoolEnv("RECON_AUDIT_DB", true)
	if err != nil {
		return nil, err
	}
	nacha, err := parseBoolEnv("RECON_NACHA", false)
	if err != nil {
		return nil, err
	}
	debug, err := parseBoolEnv("RECON_DEBUG", false)
	if err != nil {
		return nil, err
	}
	logJSON, err := parseBoolEnv("RECON_LOG_JSON", false)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Output: OutputConfig{
			Root:  getEnvOrDefault("RECON_OUTPUT_ROOT", "./output"),
			Audit: audit,
		},
		NACHA: NACHAConfig{
			Enabled:     nacha,
			ODFIRouting: strings.TrimSpace(os.Getenv("RECON_ODFI_ROUTING")),
			CompanyID:   strings.TrimSpace(os.Getenv("RECON_COMPANY_ID")),
			CompanyName: strings.TrimSpace(os.Getenv("RECON_COMPANY_NAME")),
		},
		Registry: strings.TrimSpace(os.Getenv("RECON_REGISTRY")),
		Debug:    debug,
		LogJSON:  logJSON,
	}

	return config, nil
}

// Validate checks struct rules plus any required dotted paths (e.g. []string{"nacha", "odfiRouting"}).
func (c *Config) Validate(required ...[]string) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.NACHA.Enabled {
		required = append(required,
			[]string{"nacha", "odfiRouting"},
			[]string{"nacha", "companyId"},
			[]string{"nacha", "companyName"},
		)
	}

	var missing []string
	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "output":
			switch path[1] {
			case "root":
				value = c.Output.Root
			}
		case "nacha":
			switch path[1] {
			case "odfiRouting":
				value = c.NACHA.ODFIRouting
			case "companyId":
				value = c.NACHA.CompanyID
			case "companyName":
				value = c.NACHA.CompanyName
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBoolEnv parses a bool from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}

	return parsed, nil
}
