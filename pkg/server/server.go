// Package server exposes the stored catalog as a Composer repository over
// HTTP.
//
// Routes:
//
//	GET  /packages.json               whole repository document
//	GET  /p/{vendor}/{package}.json   one package
//	POST /refresh                     run a new resolution pass (bearer token when configured)
//	GET  /healthz                     liveness
//
// Responses are gzip-compressed when the client accepts it.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
	"github.com/matzehuels/gitlab-composer/pkg/store"
)

// RebuildFunc runs one resolution pass.
type RebuildFunc func(ctx context.Context) (*repository.Catalog, error)

// Option configures a [Server].
type Option func(*Server)

// WithVendorAlias also publishes every package under alias.
func WithVendorAlias(alias string) Option {
	return func(s *Server) { s.vendorAlias = alias }
}

// WithRefreshToken requires "Authorization: Bearer <token>" on /refresh.
// An empty token leaves the route open.
func WithRefreshToken(token string) Option {
	return func(s *Server) { s.refreshToken = token }
}

// Server serves the latest stored catalog.
type Server struct {
	store        store.Store
	rebuild      RebuildFunc
	logger       *log.Logger
	vendorAlias  string
	refreshToken string

	refreshMu sync.Mutex
	handler   http.Handler
}

// New builds the router. rebuild may be nil, which disables /refresh.
func New(st store.Store, rebuild RebuildFunc, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: st, rebuild: rebuild, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/packages.json", s.handlePackages)
	r.Get("/p/{vendor}/{package}.json", s.handlePackage)
	r.With(s.requireToken).Post("/refresh", s.handleRefresh)

	s.handler = gzhttp.GzipHandler(r)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving composer repository", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := cat.Repository(s.vendorAlias).WriteJSON(w); err != nil {
		s.logger.Debug("write packages.json", "err", err)
	}
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.latest(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "vendor") + "/" + chi.URLParam(r, "package")
	versions, found := cat.Repository(s.vendorAlias).Package(name)
	if !found {
		writeError(w, http.StatusNotFound, "package "+name+" not found")
		return
	}
	doc := composer.Repository{Packages: map[string]map[string]composer.PackageVersion{name: versions}}
	w.Header().Set("Content-Type", "application/json")
	if err := doc.WriteJSON(w); err != nil {
		s.logger.Debug("write package", "package", name, "err", err)
	}
}

// refreshResult summarizes a pass triggered over HTTP.
type refreshResult struct {
	PassID   string `json:"pass_id"`
	Versions int    `json:"versions"`
	Projects int    `json:"projects"`
	Skipped  int    `json:"skipped"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// handleRefresh runs one pass at a time. A pass that ended early is
// reported but not stored, so the previous complete catalog keeps serving.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.rebuild == nil {
		writeError(w, http.StatusNotImplemented, "refresh is disabled")
		return
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	cat, err := s.rebuild(r.Context())
	if cat == nil {
		s.logger.Error("refresh failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	res := refreshResult{
		PassID:   cat.PassID.String(),
		Versions: len(cat.Versions),
		Projects: len(cat.Projects),
		Skipped:  len(cat.Skipped()),
		Duration: cat.Duration().Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Error = err.Error()
		s.logger.Warn("refresh ended early, keeping stored catalog", "pass", cat.PassID, "err", err)
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	if err := s.store.Save(r.Context(), cat); err != nil {
		s.logger.Error("saving catalog failed", "pass", cat.PassID, "err", err)
		writeError(w, http.StatusInternalServerError, "saving catalog failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.refreshToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.refreshToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="refresh"`)
			writeError(w, http.StatusUnauthorized, "missing or invalid refresh token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*repository.Catalog, bool) {
	cat, err := s.store.Latest(r.Context())
	if errors.Is(err, store.ErrNoCatalog) {
		writeError(w, http.StatusServiceUnavailable, "no catalog has been built yet")
		return nil, false
	}
	if err != nil {
		s.logger.Error("loading catalog failed", "err", err)
		writeError(w, http.StatusInternalServerError, "loading catalog failed")
		return nil, false
	}
	return cat, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
