package gh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nektos/artifact-relay/pkg/model"
)

var (
	widgets = model.Repository{Owner: "acme", Name: "widgets"}
	build   = model.Workflow{Repository: widgets, Name: "build.yml"}
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.APIURL = server.URL
	opts.Timeout = 5 * time.Second
	client, err := NewClient(opts)
	require.NoError(t, err)
	return client
}

func TestLatestRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/actions/workflows/build.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "success", r.URL.Query().Get("status"))
		assert.Equal(t, "main", r.URL.Query().Get("branch"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"total_count": 2, "workflow_runs": [{"id": 77}]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/actions/workflows/1234/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": 1, "workflow_runs": [{"id": 88}]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/actions/workflows/idle.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": 0, "workflow_runs": []}`)
	})
	mux.HandleFunc("/repos/acme/widgets/actions/workflows/broken.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "oops"}`)
	})
	client := newTestClient(t, mux, Options{Token: "secret", Branch: "main"})

	t.Run("by file name", func(t *testing.T) {
		run, err := client.LatestRun(context.Background(), build)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, int64(77), run.ID)
		assert.Equal(t, build, run.Workflow)
	})

	t.Run("by id", func(t *testing.T) {
		run, err := client.LatestRun(context.Background(), model.Workflow{Repository: widgets, Name: "1234"})
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, int64(88), run.ID)
	})

	t.Run("no runs", func(t *testing.T) {
		run, err := client.LatestRun(context.Background(), model.Workflow{Repository: widgets, Name: "idle.yml"})
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		run, err := client.LatestRun(context.Background(), model.Workflow{Repository: widgets, Name: "nope.yml"})
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := client.LatestRun(context.Background(), model.Workflow{Repository: widgets, Name: "broken.yml"})
		assert.Error(t, err)
	})
}

func TestLatestRunPathSegments(t *testing.T) {
	var paths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		assert.Equal(t, "success", r.URL.Query().Get("status"))
		fmt.Fprint(w, `{"total_count": 1, "workflow_runs": [{"id": 5}]}`)
	})
	client := newTestClient(t, handler, Options{})

	run, err := client.LatestRun(context.Background(), model.Workflow{Repository: widgets, Name: "100%.yml"})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, []string{"/repos/acme/widgets/actions/workflows/100%25.yml/runs"}, paths)

	for _, workflow := range []model.Workflow{
		{Repository: widgets, Name: ".."},
		{Repository: widgets, Name: "w?per_page=100&x="},
		{Repository: model.Repository{Owner: "..", Name: ".."}, Name: "orgs"},
	} {
		_, err := client.LatestRun(context.Background(), workflow)
		assert.Error(t, err, workflow.String())
	}
	_, err = client.Artifacts(context.Background(), &model.Run{ID: 1, Workflow: model.Workflow{Repository: model.Repository{Owner: "..", Name: "x"}, Name: "b"}})
	assert.Error(t, err)
	err = client.DownloadArtifact(context.Background(), model.Repository{Owner: "acme", Name: ".."}, 1, io.Discard)
	assert.Error(t, err)

	assert.Len(t, paths, 1, "invalid names never reach the API")
}

func TestArtifacts(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/actions/runs/77/artifacts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count": 3, "artifacts": [{"id": 3, "name": "logs"}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/widgets/actions/runs/77/artifacts?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `{"total_count": 3, "artifacts": [
			{"id": 1, "name": "report"},
			{"id": 2, "name": "old", "expired": true}
		]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/actions/runs/78/artifacts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": 0, "artifacts": []}`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(Options{APIURL: server.URL + "/"})
	require.NoError(t, err)

	artifacts, err := client.Artifacts(context.Background(), &model.Run{ID: 77, Workflow: build})
	require.NoError(t, err)
	assert.Equal(t, []model.NamedArtifact{
		{Name: "report", ID: 1},
		{Name: "logs", ID: 3},
	}, artifacts)

	empty, err := client.Artifacts(context.Background(), &model.Run{ID: 78, Workflow: build})
	require.NoError(t, err)
	assert.NotNil(t, empty, "an empty listing is not a failure")
	assert.Empty(t, empty)

	_, err = client.Artifacts(context.Background(), &model.Run{ID: 79, Workflow: build})
	assert.Error(t, err)
}

func TestDownloadArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/actions/artifacts/42/zip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		http.Redirect(w, r, "/blob/42?sig=abc", http.StatusFound)
	})
	mux.HandleFunc("/blob/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "credentials must not leak to the blob store")
		assert.Equal(t, "abc", r.URL.Query().Get("sig"))
		fmt.Fprint(w, "PK-zip-bytes")
	})
	client := newTestClient(t, mux, Options{Token: "secret"})

	var buf bytes.Buffer
	require.NoError(t, client.DownloadArtifact(context.Background(), widgets, 42, &buf))
	assert.Equal(t, "PK-zip-bytes", buf.String())

	err := client.DownloadArtifact(context.Background(), widgets, 43, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveToken(t *testing.T) {
	token, err := ResolveToken(context.Background(), "  explicit ")
	require.NoError(t, err)
	assert.Equal(t, "explicit", token)
}
