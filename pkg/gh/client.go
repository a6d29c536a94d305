package gh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/nektos/artifact-relay/pkg/model"
)

const artifactsPerPage = 100

// Options configures a Client
type Options struct {
	Token   string        // requests are unauthenticated when empty
	APIURL  string        // base URL of the REST API, api.github.com when empty
	Branch  string        // only runs on this branch are considered, any branch when empty
	Timeout time.Duration // applied to every API call and download
	Logger  logrus.FieldLogger
}

// Client finds workflow runs and artifacts through the GitHub Actions REST API
type Client struct {
	client   *github.Client
	api      *http.Client
	download *http.Client
	branch   string
	logger   logrus.FieldLogger
}

func NewClient(opts Options) (*Client, error) {
	api := &http.Client{Timeout: opts.Timeout}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		api = oauth2.NewClient(context.Background(), ts)
		api.Timeout = opts.Timeout
	}

	client := github.NewClient(api)
	if opts.APIURL != "" {
		baseURL, err := url.Parse(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		client.BaseURL = baseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		client: client,
		api:    api,
		// signed download locations must not receive our credentials
		download: &http.Client{Timeout: opts.Timeout},
		branch:   opts.Branch,
		logger:   logger.WithField("module", "gh"),
	}, nil
}

// LatestRun returns the most recent successful run of the workflow, or nil if there is none.
// The workflow name is either a workflow file name or a numeric workflow ID.
func (c *Client) LatestRun(ctx context.Context, workflow model.Workflow) (*model.Run, error) {
	opts := &github.ListWorkflowRunsOptions{
		Branch:      c.branch,
		Status:      "success",
		ListOptions: github.ListOptions{PerPage: 1},
	}

	if !workflow.Valid() {
		return nil, fmt.Errorf("invalid workflow %q", workflow.String())
	}
	owner, repo := url.PathEscape(workflow.Repository.Owner), url.PathEscape(workflow.Repository.Name)
	var (
		runs *github.WorkflowRuns
		resp *github.Response
		err  error
	)
	if id, perr := strconv.ParseInt(workflow.Name, 10, 64); perr == nil {
		runs, resp, err = c.client.Actions.ListWorkflowRunsByID(ctx, owner, repo, id, opts)
	} else {
		runs, resp, err = c.client.Actions.ListWorkflowRunsByFileName(ctx, owner, repo, url.PathEscape(workflow.Name), opts)
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			c.logger.Debugf("workflow %s not found", workflow)
			return nil, nil
		}
		return nil, fmt.Errorf("list runs of %s: %w", workflow, err)
	}
	if runs == nil || len(runs.WorkflowRuns) == 0 {
		return nil, nil
	}

	return &model.Run{
		ID:       runs.WorkflowRuns[0].GetID(),
		Workflow: workflow,
	}, nil
}

// Artifacts lists the unexpired artifacts of a run
func (c *Client) Artifacts(ctx context.Context, run *model.Run) ([]model.NamedArtifact, error) {
	if !run.Workflow.Repository.Valid() {
		return nil, fmt.Errorf("invalid repository %q", run.Workflow.Repository.String())
	}
	owner, repo := url.PathEscape(run.Workflow.Repository.Owner), url.PathEscape(run.Workflow.Repository.Name)
	opts := &github.ListOptions{PerPage: artifactsPerPage}

	artifacts := []model.NamedArtifact{}
	for {
		list, resp, err := c.client.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, run.ID, opts)
		if err != nil {
			return nil, fmt.Errorf("list artifacts of run %d: %w", run.ID, err)
		}
		for _, a := range list.Artifacts {
			if a.GetExpired() {
				continue
			}
			artifacts = append(artifacts, model.NamedArtifact{
				Name: a.GetName(),
				ID:   a.GetID(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return artifacts, nil
}

// DownloadArtifact writes the zip archive of an artifact to w
func (c *Client) DownloadArtifact(ctx context.Context, repo model.Repository, id int64, w io.Writer) error {
	location, err := c.downloadLocation(ctx, repo, id)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact %d: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download artifact %d: unexpected status %s", id, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("download artifact %d: %w", id, err)
	}
	c.logger.Debugf("downloaded artifact %d of %s: %d bytes", id, repo, n)
	return nil
}

// downloadLocation asks the API where the archive lives, without following the redirect
func (c *Client) downloadLocation(ctx context.Context, repo model.Repository, id int64) (*url.URL, error) {
	if !repo.Valid() {
		return nil, fmt.Errorf("invalid repository %q", repo.String())
	}
	u := fmt.Sprintf("repos/%v/%v/actions/artifacts/%v/zip", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), id)
	req, err := c.client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	noRedirect := *c.api
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := noRedirect.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("locate artifact %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("locate artifact %d of %s: %w", id, repo, model.ErrNotFound)
	}
	if resp.StatusCode != http.StatusFound {
		if err := github.CheckResponse(resp); err != nil {
			return nil, fmt.Errorf("locate artifact %d: %w", id, err)
		}
		return nil, fmt.Errorf("locate artifact %d: unexpected status %s", id, resp.Status)
	}

	location, err := resp.Location()
	if err != nil {
		return nil, fmt.Errorf("locate artifact %d: %w", id, err)
	}
	return location, nil
}
