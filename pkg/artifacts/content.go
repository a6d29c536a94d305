package artifacts

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/nektos/artifact-relay/pkg/common"
	"github.com/nektos/artifact-relay/pkg/model"
)

// artifact handles /artifacts/owner/repo/artifactId/path, serving a file out of the artifact
// archive, or a listing when the path is a directory
func (s *Server) artifact(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if r.Method != http.MethodGet {
		s.showLinkForm(w, r, http.StatusNotImplemented, "Only GET supported")
		return
	}

	p := splitPath(r.URL.Path)
	if len(p) < 4 || p[0] != "artifacts" {
		s.showLinkForm(w, r, http.StatusNotFound, "insufficient path")
		return
	}

	repo := model.Repository{Owner: p[1], Name: p[2]}
	if !repo.Valid() {
		s.showLinkForm(w, r, http.StatusNotFound, "invalid repository")
		return
	}
	if !s.repos.Allows(repo) {
		s.showLinkForm(w, r, http.StatusForbidden, "forbidden repository addressed")
		return
	}
	id, err := strconv.ParseInt(p[3], 10, 64)
	if err != nil || id <= 0 {
		s.showLinkForm(w, r, http.StatusNotFound, "invalid artifact id "+p[3])
		return
	}

	archive, err := s.open(r.Context(), repo, id)
	if errors.Is(err, model.ErrNotFound) {
		s.showLinkForm(w, r, http.StatusNotFound, "No such artifact")
		return
	} else if err != nil {
		common.Logger(r.Context()).Warnf("open artifact %d: %v", id, err)
		s.showLinkForm(w, r, http.StatusBadGateway, "Failed to download artifact "+p[3])
		return
	}
	defer archive.Close()

	name := strings.Join(p[4:], "/")
	if name == "" {
		name = "."
	}

	info, err := fs.Stat(archive, name)
	if err != nil {
		s.showArchive(w, r, http.StatusNotFound, repo, id, archive, ".")
		return
	}
	if info.IsDir() {
		s.showArchive(w, r, http.StatusOK, repo, id, archive, name)
		return
	}
	s.serveFile(w, r, archive, name, info)
}

// open returns the archive, downloading it first if needed. Concurrent requests for the same
// artifact share one download.
func (s *Server) open(ctx context.Context, repo model.Repository, id int64) (*zip.ReadCloser, error) {
	ok, err := s.storage.Exist(repo, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		key := repo.String() + "/" + strconv.FormatInt(id, 10)
		_, err, _ := s.downloads.Do(key, func() (any, error) {
			if ok, err := s.storage.Exist(repo, id); err != nil || ok {
				return nil, err
			}
			// a download is shared, so it does not follow any single request's cancellation
			dctx := context.WithoutCancel(ctx)
			common.Logger(ctx).Infof("downloading artifact %d of %s", id, repo)
			return nil, s.storage.Write(repo, id, func(w io.Writer) error {
				return s.downloader.DownloadArtifact(dctx, repo, id, w)
			})
		})
		if err != nil {
			return nil, err
		}
	}

	archive, err := s.storage.Open(repo, id)
	if err != nil {
		// not a readable archive, fetch it again next time
		s.storage.Remove(repo, id)
		return nil, err
	}
	return archive, nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, archive fs.FS, name string, info fs.FileInfo) {
	f, err := archive.Open(name)
	if err != nil {
		s.showLinkForm(w, r, http.StatusInternalServerError, "Unexpected failure")
		return
	}
	defer f.Close()

	br := bufio.NewReader(f)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		head, _ := br.Peek(512)
		ctype = http.DetectContentType(head)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, br); err != nil {
		common.Logger(r.Context()).Warnf("serve %s: %v", name, err)
	}
}

// showArchive lists the entries directly inside dir
func (s *Server) showArchive(w http.ResponseWriter, r *http.Request, status int, repo model.Repository, id int64, archive fs.FS, dir string) {
	entries, err := fs.ReadDir(archive, dir)
	if err != nil {
		s.showLinkForm(w, r, http.StatusInternalServerError, "Unexpected failure")
		return
	}
	var base []string
	if dir != "." {
		base = strings.Split(dir, "/")
	}

	doc := newPage()
	body := doc.Body()
	heading := body.P("Contents of ")
	heading.Code("/" + strings.Join(base, "/"))
	heading.Text(" in artifact ", id, " of ", repo)
	ul := body.Ul()
	if len(base) > 0 {
		parent := artifactPath(repo, id, base[:len(base)-1]...)
		if len(base) > 1 {
			parent += "/"
		}
		ul.Li().A(parent, "..")
	}
	for _, e := range entries {
		label := e.Name()
		href := artifactPath(repo, id, append(base[:len(base):len(base)], e.Name())...)
		if e.IsDir() {
			label += "/"
			href += "/"
		}
		ul.Li().A(href, label)
	}
	if len(entries) == 0 {
		body.P("This artifact is empty")
	}
	s.respond(w, r, status, doc)
}
