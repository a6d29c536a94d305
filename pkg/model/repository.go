package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by upstream lookups for things that do not exist
var ErrNotFound = errors.New("not found")

// Repository identifies a GitHub repository. It is comparable and safe to use as a map key.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses an "owner/name" pair
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// Valid reports whether both parts are usable as single path segments
func (r Repository) Valid() bool {
	return validSegment(r.Owner) && validSegment(r.Name)
}

// validSegment rejects names that would change the meaning of a URL or file path they are put into
func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\?#")
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// Workflow identifies a workflow within a repository, by its file name or ID
type Workflow struct {
	Repository Repository
	Name       string
}

// Valid reports whether the repository and the workflow name are usable as path segments
func (w Workflow) Valid() bool {
	return w.Repository.Valid() && validSegment(w.Name)
}

func (w Workflow) String() string {
	return w.Repository.String() + "/" + w.Name
}

// Run is one execution of a workflow
type Run struct {
	ID       int64
	Workflow Workflow
}

// NamedArtifact is an artifact produced by a run
type NamedArtifact struct {
	Name string
	ID   int64
}

// RepositorySet is an allow-list of repositories. The empty set allows everything.
type RepositorySet map[Repository]struct{}

// NewRepositorySet builds a set from the given repositories
func NewRepositorySet(repos ...Repository) RepositorySet {
	set := make(RepositorySet, len(repos))
	for _, r := range repos {
		set[r] = struct{}{}
	}
	return set
}

// Allows reports whether the repository may be served
func (s RepositorySet) Allows(r Repository) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[r]
	return ok
}
