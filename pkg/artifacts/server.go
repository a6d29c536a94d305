package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nektos/artifact-relay/pkg/artifactcache"
	"github.com/nektos/artifact-relay/pkg/common"
	"github.com/nektos/artifact-relay/pkg/model"
)

const gcInterval = time.Hour

// Resolver finds the latest artifacts of a workflow
type Resolver interface {
	Latest(ctx context.Context, workflow model.Workflow) (*artifactcache.Latest, bool)
}

// Downloader fetches artifact archives from upstream
type Downloader interface {
	DownloadArtifact(ctx context.Context, repo model.Repository, id int64, w io.Writer) error
}

type Options struct {
	Repos      model.RepositorySet // repositories that may be served, all when empty
	Resolver   Resolver
	Downloader Downloader
	Storage    *Storage
	Retention  time.Duration // archives unused for longer are removed from storage
	Logger     logrus.FieldLogger
}

// Server answers /latest requests with redirects to /artifacts, and serves the artifact contents
type Server struct {
	repos      model.RepositorySet
	resolver   Resolver
	downloader Downloader
	storage    *Storage
	retention  time.Duration
	router     *httprouter.Router
	logger     logrus.FieldLogger

	downloads singleflight.Group

	gcing atomic.Bool
	gcAt  time.Time

	listener net.Listener
	server   *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Resolver == nil || opts.Downloader == nil || opts.Storage == nil {
		return nil, errors.New("resolver, downloader and storage are required")
	}

	logger := opts.Logger
	if logger == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		logger = discard
	}

	s := &Server{
		repos:      opts.Repos,
		resolver:   opts.Resolver,
		downloader: opts.Downloader,
		storage:    opts.Storage,
		retention:  opts.Retention,
		logger:     logger.WithField("module", "artifacts"),
	}

	router := httprouter.New()
	// sub paths address files inside artifacts and must reach the handlers untouched
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleOPTIONS = false

	// every method is routed so that unsupported ones are answered by the handlers
	for _, method := range []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	} {
		router.Handle(method, "/latest/*path", s.middleware(s.latest))
		router.Handle(method, "/artifacts/*path", s.middleware(s.artifact))
	}
	router.GET("/", s.middleware(s.linkForm))
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.showLinkForm(w, r, http.StatusNotFound, "Nothing here")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// methods outside the routed set still get the answer of the handlers
		if strings.HasPrefix(r.URL.Path, "/latest/") || strings.HasPrefix(r.URL.Path, "/artifacts/") {
			s.showLinkForm(w, r, http.StatusNotImplemented, "Only GET supported")
			return
		}
		s.showLinkForm(w, r, http.StatusMethodNotAllowed, "Only GET supported")
	})
	router.PanicHandler = s.recover
	s.router = router

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background until Close or Shutdown
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           s,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("http serve: %v", err)
		}
	}()
	s.listener = listener
	s.server = server
	s.logger.Infof("listening on %s", s.URL())
	return nil
}

// URL is where a started server can be reached. A server listening on all interfaces is
// addressed by the preferred outbound IP.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok || !addr.IP.IsUnspecified() {
		return fmt.Sprintf("http://%s", s.listener.Addr())
	}
	ip, err := common.GetOutboundIP()
	if err != nil {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(ip.String(), strconv.Itoa(addr.Port)))
}

// Shutdown stops accepting requests and waits for the running ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) Close() error {
	if s == nil || s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) middleware(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		logger := s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		logger.Debugf("%s %s", r.Method, r.RequestURI)
		handler(w, r.WithContext(common.WithLogger(r.Context(), logger)), params)
		go s.gcStorage()
	}
}

// recover is the last resort for a request that panicked
func (s *Server) recover(w http.ResponseWriter, r *http.Request, v any) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Errorf("request handling failure: %v\n%s", v, debug.Stack())
	s.showLinkForm(w, r, http.StatusInternalServerError, "Unexpected failure")
}

func (s *Server) gcStorage() {
	if !s.gcing.CompareAndSwap(false, true) {
		return
	}
	defer s.gcing.Store(false)

	if time.Since(s.gcAt) < gcInterval || s.retention <= 0 {
		return
	}
	s.gcAt = time.Now()

	removed, err := s.storage.RemoveUnused(s.gcAt.Add(-s.retention))
	if err != nil {
		s.logger.Warnf("remove unused artifacts: %v", err)
	}
	if removed > 0 {
		s.logger.Infof("removed %d unused artifacts", removed)
	}
}

// splitPath returns the non-empty segments of a URL path
func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
