package artifacts

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/nektos/artifact-relay/pkg/model"
)

// latest handles
//
//	/latest/owner/repo/workflow                 links to the artifacts of the latest run
//	/latest/owner/repo/workflow/artifact/sub    redirects to /artifacts/owner/repo/artifactId/sub
func (s *Server) latest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if r.Method != http.MethodGet {
		s.showLinkForm(w, r, http.StatusNotImplemented, "Only GET supported")
		return
	}

	path := splitPath(r.URL.Path)
	if len(path) < 4 {
		s.showLinkForm(w, r, http.StatusNotFound, "insufficient path")
		return
	}
	if path[0] != "latest" {
		s.showLinkForm(w, r, http.StatusInternalServerError, "unexpected root")
		return
	}

	repo := model.Repository{Owner: path[1], Name: path[2]}
	workflow := model.Workflow{Repository: repo, Name: path[3]}
	if !workflow.Valid() {
		s.showLinkForm(w, r, http.StatusNotFound, "invalid workflow path")
		return
	}
	if !s.repos.Allows(repo) {
		s.showLinkForm(w, r, http.StatusForbidden, "forbidden repository addressed")
		return
	}

	latest, ok := s.resolver.Latest(r.Context(), workflow)
	if !ok {
		s.showLinkForm(w, r, http.StatusBadGateway, "Failed to find latest artifacts of "+workflow.String())
		return
	}

	rest := path[4:]
	if len(rest) == 0 {
		s.showArtifactLinks(w, r, http.StatusOK, workflow, latest)
		return
	}

	selected, ok := latest.Find(rest[0])
	if !ok {
		s.showArtifactLinks(w, r, http.StatusNotFound, workflow, latest)
		return
	}
	s.redirect(w, r, artifactPath(repo, selected.ID, rest[1:]...))
}
