package artifacts

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/nektos/artifact-relay/pkg/model"
)

// linkForm shows the form, or redirects to the relay equivalent of a submitted GitHub link
func (s *Server) linkForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	link := strings.TrimSpace(r.URL.Query().Get("link"))
	if link == "" {
		s.showLinkForm(w, r, http.StatusOK, "")
		return
	}
	target, ok := convertLink(link)
	if !ok {
		s.showLinkForm(w, r, http.StatusBadRequest, "Unrecognised link: "+link)
		return
	}
	s.redirect(w, r, target)
}

// convertLink understands
//
//	https://github.com/owner/repo/actions/runs/runId/artifacts/artifactId
//	https://github.com/owner/repo/actions/workflows/workflow.yml
func convertLink(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if host := strings.ToLower(u.Host); host != "github.com" && host != "www.github.com" {
		return "", false
	}

	p := splitPath(u.Path)
	if len(p) < 5 || p[2] != "actions" {
		return "", false
	}
	repo := model.Repository{Owner: p[0], Name: p[1]}

	switch {
	case len(p) == 7 && p[3] == "runs" && p[5] == "artifacts":
		id, err := strconv.ParseInt(p[6], 10, 64)
		if err != nil || id <= 0 {
			return "", false
		}
		return artifactPath(repo, id), true
	case len(p) == 5 && p[3] == "workflows":
		return joinPath("latest", repo.Owner, repo.Name, p[4]), true
	}
	return "", false
}
