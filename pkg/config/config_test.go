package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nektos/artifact-relay/pkg/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":56988", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.CacheValidity)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 24*time.Hour, cfg.ArtifactRetention)
	assert.NotEmpty(t, cfg.ArtifactDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RELAY_REPOS", "acme/widgets,acme/gadgets")
	t.Setenv("RELAY_CACHE_VALIDITY", "5m")
	t.Setenv("RELAY_COALESCE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.CacheValidity)
	assert.True(t, cfg.Coalesce)

	repos, err := cfg.Repositories()
	require.NoError(t, err)
	assert.Equal(t, model.NewRepositorySet(
		model.Repository{Owner: "acme", Name: "widgets"},
		model.Repository{Owner: "acme", Name: "gadgets"},
	), repos)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "relay.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RELAY_BRANCH=main\nRELAY_ADDR=:1234\n"), 0o600))
	// the process environment wins over the file
	t.Setenv("RELAY_ADDR", ":9999")
	t.Setenv("RELAY_BRANCH", "")
	require.NoError(t, os.Unsetenv("RELAY_BRANCH"))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, ":9999", cfg.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err, "a missing env file is ignored")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Addr:              ":0",
			CacheValidity:     time.Minute,
			CacheSize:         1,
			APITimeout:        time.Second,
			ArtifactDir:       t.TempDir(),
			ArtifactRetention: time.Hour,
		}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"bad repo":           func(c *Config) { c.Repos = []string{"nope"} },
		"zero validity":      func(c *Config) { c.CacheValidity = 0 },
		"negative size":      func(c *Config) { c.CacheSize = -1 },
		"no address":         func(c *Config) { c.Addr = "" },
		"zero timeout":       func(c *Config) { c.APITimeout = 0 },
		"no artifact dir":    func(c *Config) { c.ArtifactDir = "" },
		"negative retention": func(c *Config) { c.ArtifactRetention = -time.Hour },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
