package artifactcache

import (
	"context"
	"time"

	"github.com/nektos/artifact-relay/pkg/model"
)

// Directory finds workflow runs and the artifacts they produced
type Directory interface {
	// LatestRun returns nil, without error, when the workflow has no matching run
	LatestRun(ctx context.Context, workflow model.Workflow) (*model.Run, error)
	// Artifacts returns an empty, non-nil slice when the run produced nothing
	Artifacts(ctx context.Context, run *model.Run) ([]model.NamedArtifact, error)
}

// Latest is the artifact set of the most recent run of a workflow. It must not be modified once
// cached.
type Latest struct {
	Artifacts []model.NamedArtifact
	Expiry    time.Time
}

// Find returns the first artifact with the given name
func (l *Latest) Find(name string) (model.NamedArtifact, bool) {
	for _, a := range l.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return model.NamedArtifact{}, false
}
