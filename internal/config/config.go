// Package config loads the teamtree YAML configuration.
//
// Values may reference the environment with {{ env.NAME || fallback }}.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"teamtree/internal/layout"
	"teamtree/internal/tracing"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "TEAMTREE_CONFIG"

type Config struct {
	Database Database       `yaml:"database"`
	Log      Log            `yaml:"log"`
	Metrics  Metrics        `yaml:"metrics"`
	Tracing  tracing.Config `yaml:"tracing"`
	Layout   layout.Config  `yaml:"layout"`
}

type Database struct {
	// Path to the SQLite file. Empty means discover it.
	Path          string `yaml:"path"`
	BusyTimeoutMs int    `yaml:"busy_timeout_ms" validate:"gte=0"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type Metrics struct {
	// Textfile is a node-exporter textfile to write after each command.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: Database{BusyTimeoutMs: 5000},
		Log:      Log{Level: "info", Format: "text"},
		Layout:   layout.Default(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path, or the file named by TEAMTREE_CONFIG when path is
// empty. With neither set it returns Default. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration file: %w", err)
	}
	if err := yaml.Unmarshal(Template(raw), cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

var templateRegex = regexp.MustCompile(`\{\{\s*([^}]+)\s*}}`)

// Template replaces each {{ a || b || ... }} with the first alternative
// that resolves: env.NAME resolves when the variable is non-empty, any
// other alternative is used literally.
func Template(raw []byte) []byte {
	return templateRegex.ReplaceAllFunc(raw, func(match []byte) []byte {
		content := strings.TrimSpace(string(match[2 : len(match)-2]))
		for _, part := range strings.Split(content, "||") {
			part = strings.TrimSpace(part)
			if key, ok := strings.CutPrefix(part, "env."); ok {
				if v := os.Getenv(key); v != "" {
					return []byte(v)
				}
				continue
			}
			if part != "" {
				return []byte(part)
			}
		}
		return nil
	})
}
