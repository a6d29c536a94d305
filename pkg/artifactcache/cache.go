package artifactcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nektos/artifact-relay/pkg/model"
)

const DefaultSize = 1024

var errNotFound = errors.New("latest artifacts not found")

type Options struct {
	Validity time.Duration // how long a resolved artifact set is served without asking upstream
	Size     int           // maximum number of workflows remembered, DefaultSize if zero
	Coalesce bool          // share one upstream resolution between concurrent misses of a workflow
	Clock    clockwork.Clock
	Logger   logrus.FieldLogger
}

type Cache struct {
	directory Directory
	store     *store
	validity  time.Duration
	coalesce  bool
	group     singleflight.Group
	clock     clockwork.Clock
	logger    logrus.FieldLogger
}

func New(directory Directory, opts Options) (*Cache, error) {
	if directory == nil {
		return nil, fmt.Errorf("a directory is required")
	}
	if opts.Validity <= 0 {
		return nil, fmt.Errorf("invalid cache validity %v", opts.Validity)
	}
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	logger := opts.Logger
	if logger == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		logger = discard
	}

	store, err := newStore(opts.Size)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	return &Cache{
		directory: directory,
		store:     store,
		validity:  opts.Validity,
		coalesce:  opts.Coalesce,
		clock:     opts.Clock,
		logger:    logger.WithField("module", "artifactcache"),
	}, nil
}

// Latest returns the artifacts of the most recent run of the workflow. The second return value is
// false when upstream could not produce them; that outcome is not remembered.
func (c *Cache) Latest(ctx context.Context, workflow model.Workflow) (*Latest, bool) {
	now := c.clock.Now()
	if n := c.store.prune(now); n > 0 {
		c.logger.Debugf("pruned %d expired entries", n)
	}

	if cached, ok := c.store.get(workflow); ok && now.Before(cached.Expiry) {
		c.logger.Debugf("using cached artifacts for %s, valid until %s", workflow, cached.Expiry)
		return cached, true
	}

	if !c.coalesce {
		return c.resolve(ctx, workflow, now)
	}

	v, _, _ := c.group.Do(workflow.String(), func() (any, error) {
		latest, ok := c.resolve(ctx, workflow, now)
		if !ok {
			return nil, errNotFound
		}
		return latest, nil
	})
	latest, ok := v.(*Latest)
	return latest, ok
}

// Len is the number of workflows currently remembered, expired or not
func (c *Cache) Len() int {
	return c.store.len()
}

func (c *Cache) resolve(ctx context.Context, workflow model.Workflow, now time.Time) (*Latest, bool) {
	// the caller going away must not waste an upstream call that is already under way
	ctx = context.WithoutCancel(ctx)
	logger := c.logger.WithField("workflow", workflow.String())

	run, err := c.directory.LatestRun(ctx, workflow)
	if err != nil {
		logger.Warnf("find latest run: %v", err)
		return nil, false
	}
	if run == nil {
		logger.Debugf("no run found")
		return nil, false
	}

	artifacts, err := c.directory.Artifacts(ctx, run)
	if err != nil {
		logger.Warnf("list artifacts of run %d: %v", run.ID, err)
		return nil, false
	}
	if artifacts == nil {
		logger.Debugf("no artifact listing for run %d", run.ID)
		return nil, false
	}

	latest := &Latest{
		Artifacts: artifacts,
		Expiry:    now.Add(c.validity),
	}
	c.store.put(workflow, latest)
	logger.Infof("resolved %d artifacts from run %d, valid until %s", len(artifacts), run.ID, latest.Expiry)
	return latest, true
}
