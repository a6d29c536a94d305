package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/nektos/artifact-relay/pkg/config"
)

// Input contains the input for the root command
type Input struct {
	envFile           string
	addr              string
	repos             []string
	cacheValidity     time.Duration
	cacheSize         int
	coalesce          bool
	branch            string
	token             string
	apiURL            string
	apiTimeout        time.Duration
	artifactDir       string
	artifactRetention time.Duration
	jsonLogger        bool
	verbose           bool
}

// EnvFile returns the absolute path of the env file
func (i *Input) EnvFile() string {
	if i.envFile == "" {
		return ""
	}
	path, err := filepath.Abs(i.envFile)
	if err != nil {
		return i.envFile
	}
	return path
}

// apply overrides cfg with the flags given on the command line. Flags left at their default do
// not override the environment.
func (i *Input) apply(flags *pflag.FlagSet, cfg *config.Config) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = i.addr
		case "repos":
			cfg.Repos = i.repos
		case "cache-validity":
			cfg.CacheValidity = i.cacheValidity
		case "cache-size":
			cfg.CacheSize = i.cacheSize
		case "coalesce":
			cfg.Coalesce = i.coalesce
		case "branch":
			cfg.Branch = i.branch
		case "token":
			cfg.Token = i.token
		case "api-url":
			cfg.APIURL = i.apiURL
		case "api-timeout":
			cfg.APITimeout = i.apiTimeout
		case "artifact-dir":
			cfg.ArtifactDir = i.artifactDir
		case "artifact-retention":
			cfg.ArtifactRetention = i.artifactRetention
		case "json":
			cfg.JSONLogger = i.jsonLogger
		case "verbose":
			cfg.Verbose = i.verbose
		}
	})
}
