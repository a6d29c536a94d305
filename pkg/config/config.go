package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/nektos/artifact-relay/pkg/model"
)

// Config contains the settings of the relay server. It is not modified once the server starts.
type Config struct {
	Addr              string        `env:"RELAY_ADDR" envDefault:":56988"`            // address the server listens on
	Repos             []string      `env:"RELAY_REPOS" envSeparator:","`              // owner/name pairs that may be served, all when empty
	CacheValidity     time.Duration `env:"RELAY_CACHE_VALIDITY" envDefault:"1m"`      // how long latest artifact IDs are cached for
	CacheSize         int           `env:"RELAY_CACHE_SIZE" envDefault:"1024"`        // how many workflows are cached at most
	Coalesce          bool          `env:"RELAY_COALESCE"`                            // share concurrent upstream lookups of one workflow
	Branch            string        `env:"RELAY_BRANCH"`                              // only consider runs on this branch
	Token             string        `env:"GITHUB_TOKEN"`                              // GitHub API token
	APIURL            string        `env:"RELAY_API_URL"`                             // GitHub API base URL
	APITimeout        time.Duration `env:"RELAY_API_TIMEOUT" envDefault:"30s"`        // timeout of a single GitHub call
	ArtifactDir       string        `env:"RELAY_ARTIFACT_DIR"`                        // where downloaded artifact archives are kept
	ArtifactRetention time.Duration `env:"RELAY_ARTIFACT_RETENTION" envDefault:"24h"` // how long unused archives are kept
	JSONLogger        bool          `env:"RELAY_JSON"`                                // use json or text logger
	Verbose           bool          `env:"RELAY_VERBOSE"`                             // log at debug level
}

// Load reads the configuration from the environment, after adding the variables of envFile to
// it. Variables already set in the environment win over the file. A missing file is ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = filepath.Join(xdg.CacheHome, "artifact-relay")
	}
	return cfg, nil
}

// Repositories returns the allow-list
func (c *Config) Repositories() (model.RepositorySet, error) {
	repos := make([]model.Repository, 0, len(c.Repos))
	for _, s := range c.Repos {
		if s == "" {
			continue
		}
		repo, err := model.ParseRepository(s)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return model.NewRepositorySet(repos...), nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if _, err := c.Repositories(); err != nil {
		errs = append(errs, err)
	}
	if c.CacheValidity <= 0 {
		errs = append(errs, fmt.Errorf("cache validity must be positive, got %v", c.CacheValidity))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("cache size must be positive, got %d", c.CacheSize))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("api timeout must be positive, got %v", c.APITimeout))
	}
	if c.ArtifactRetention <= 0 {
		errs = append(errs, fmt.Errorf("artifact retention must be positive, got %v", c.ArtifactRetention))
	}
	if c.ArtifactDir == "" {
		errs = append(errs, errors.New("artifact directory is required"))
	}
	return errors.Join(errs...)
}
