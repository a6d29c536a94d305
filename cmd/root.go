package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nektos/artifact-relay/pkg/artifactcache"
	"github.com/nektos/artifact-relay/pkg/artifacts"
	"github.com/nektos/artifact-relay/pkg/common"
	"github.com/nektos/artifact-relay/pkg/config"
	"github.com/nektos/artifact-relay/pkg/gh"
)

const shutdownTimeout = 10 * time.Second

// Execute is the entry point to running the CLI
func Execute(ctx context.Context, version string) {
	input := new(Input)
	rootCmd := createRootCommand(ctx, input, version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand(ctx context.Context, input *Input, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "artifact-relay",
		Short:        "Serve stable links to the latest GitHub Actions artifacts of a workflow.",
		Args:         cobra.NoArgs,
		RunE:         newRunCommand(ctx, input),
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&input.envFile, "env-file", ".env", "environment file to read settings from")
	rootCmd.Flags().StringVarP(&input.addr, "addr", "a", ":56988", "address to listen on")
	rootCmd.Flags().StringSliceVarP(&input.repos, "repos", "r", nil, "owner/name of the repositories that may be served, all when empty")
	rootCmd.Flags().DurationVar(&input.cacheValidity, "cache-validity", time.Minute, "how long the latest artifacts of a workflow are cached")
	rootCmd.Flags().IntVar(&input.cacheSize, "cache-size", artifactcache.DefaultSize, "maximum number of cached workflows")
	rootCmd.Flags().BoolVar(&input.coalesce, "coalesce", false, "share concurrent GitHub lookups of the same workflow")
	rootCmd.Flags().StringVarP(&input.branch, "branch", "b", "", "only consider workflow runs on this branch")
	rootCmd.Flags().StringVar(&input.token, "token", "", "GitHub token, asks the gh CLI when empty")
	rootCmd.Flags().StringVar(&input.apiURL, "api-url", "", "GitHub REST API URL, for GitHub Enterprise")
	rootCmd.Flags().DurationVar(&input.apiTimeout, "api-timeout", 30*time.Second, "timeout of GitHub requests")
	rootCmd.Flags().StringVar(&input.artifactDir, "artifact-dir", "", "directory for downloaded artifacts, defaults to the user cache directory")
	rootCmd.Flags().DurationVar(&input.artifactRetention, "artifact-retention", 24*time.Hour, "how long unused artifacts are kept on disk")
	rootCmd.PersistentFlags().BoolVar(&input.jsonLogger, "json", false, "output logs in json format")
	rootCmd.PersistentFlags().BoolVarP(&input.verbose, "verbose", "v", false, "verbose output")
	return rootCmd
}

func newRunCommand(ctx context.Context, input *Input) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(input.EnvFile())
		if err != nil {
			return err
		}
		input.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := common.NewLogger(cmd.ErrOrStderr(), cfg.JSONLogger, cfg.Verbose)
		ctx = common.WithLogger(ctx, logger)

		server, err := newServer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := server.Start(cfg.Addr); err != nil {
			return err
		}

		<-common.DrainContext(ctx).Done()
		logger.Info("shutting down, interrupt again to abort running requests")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
			return server.Close()
		}
		return nil
	}
}

// newServer wires the GitHub client, the cache and the artifact storage into a server
func newServer(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (*artifacts.Server, error) {
	repos, err := cfg.Repositories()
	if err != nil {
		return nil, err
	}

	token, err := gh.ResolveToken(ctx, cfg.Token)
	if errors.Is(err, gh.ErrNoToken) {
		logger.Warnf("%v, continuing unauthenticated", err)
	} else if err != nil {
		return nil, err
	}

	client, err := gh.NewClient(gh.Options{
		Token:   token,
		APIURL:  cfg.APIURL,
		Branch:  cfg.Branch,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	cache, err := artifactcache.New(client, artifactcache.Options{
		Validity: cfg.CacheValidity,
		Size:     cfg.CacheSize,
		Coalesce: cfg.Coalesce,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	storage, err := artifacts.NewStorage(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("artifact storage: %w", err)
	}

	if len(repos) > 0 {
		logger.Infof("serving %d repositories", len(repos))
	}
	return artifacts.New(artifacts.Options{
		Repos:      repos,
		Resolver:   cache,
		Downloader: client,
		Storage:    storage,
		Retention:  cfg.ArtifactRetention,
		Logger:     logger,
	})
}
