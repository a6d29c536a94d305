package artifacts

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nektos/artifact-relay/pkg/artifactcache"
	"github.com/nektos/artifact-relay/pkg/common"
	"github.com/nektos/artifact-relay/pkg/html"
	"github.com/nektos/artifact-relay/pkg/model"
)

const siteTitle = "artifact-relay"

// newPage starts a document with a heading that links back to the link form
func newPage() *html.Document {
	doc := html.NewDocument(siteTitle)
	doc.Body().H1().A("/", siteTitle)
	return doc
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, doc *html.Document) {
	body, err := doc.String()
	if err != nil {
		common.Logger(r.Context()).Errorf("render page: %v", err)
		http.Error(w, "Unexpected failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// showLinkForm is the answer to every request that can not be served otherwise
func (s *Server) showLinkForm(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		common.Logger(r.Context()).Warnf("%d: %s", status, message)
	} else if message != "" {
		common.Logger(r.Context()).Debugf("%d: %s", status, message)
	}

	doc := newPage()
	body := doc.Body()
	if message != "" {
		body.P(message)
	}
	form := body.Form().Attr("action", "/").Attr("method", "get")
	form.Elm("label").Attr("for", "link").Text("Paste a link to a GitHub workflow or artifact:")
	form.Br()
	form.Input().Attr("type", "text").Attr("id", "link").Attr("name", "link").Attr("size", "80")
	form.Input().Attr("type", "submit").Attr("value", "Go")
	s.respond(w, r, status, doc)
}

func (s *Server) showArtifactLinks(w http.ResponseWriter, r *http.Request, status int, workflow model.Workflow, latest *artifactcache.Latest) {
	doc := newPage()
	body := doc.Body()
	if len(latest.Artifacts) == 0 {
		body.P("No artifacts found for ", workflow.Name)
	} else {
		body.P("These stable links will redirect to the latest artifacts for the ", workflow.Name, " workflow. ",
			"Feel free to append path components to address files within the artifacts")
		ul := body.Ul()
		for _, a := range latest.Artifacts {
			ul.Li().A(latestPath(workflow, a.Name), a.Name)
		}
		body.P("If you use these links after ", latest.Expiry.UTC().Format(time.RFC3339),
			", then they might redirect to a newer artifact")
	}
	s.respond(w, r, status, doc)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, location string) {
	common.Logger(r.Context()).Debugf("redirect to %s", location)
	http.Redirect(w, r, location, http.StatusFound)
}

// latestPath is the stable link to an artifact of a workflow
func latestPath(workflow model.Workflow, artifact string) string {
	return joinPath("latest", workflow.Repository.Owner, workflow.Repository.Name, workflow.Name, artifact)
}

// artifactPath addresses a file, or with no sub path the root, of a concrete artifact
func artifactPath(repo model.Repository, id int64, sub ...string) string {
	root := joinPath("artifacts", repo.Owner, repo.Name, strconv.FormatInt(id, 10))
	return root + "/" + strings.TrimPrefix(joinPath(sub...), "/")
}

func joinPath(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(s))
	}
	return sb.String()
}
