// Package devserver serves a project's compiled bundle during
// development. Every request for the bundle rebuilds it from the
// templates on disk, so editing a template and reloading the page is
// the whole workflow; production deploys use the written bundle from
// `hyperfixi build` instead.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/core/config"
)

// shutdownGrace bounds how long in-flight requests may finish after the
// context is canceled.
const shutdownGrace = 5 * time.Second

// Server is the development server for one project.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New returns a server for cfg; nil means defaults.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{cfg: cfg, logger: slog.Default()}
}

// Handler builds the route tree: the bundle and its manifest, a health
// probe, and the project root as static files so templates can be
// browsed directly.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/bundle.js", s.serveBundle)
	r.Get("/manifest.json", s.serveManifest)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	root := "."
	if len(s.cfg.Roots) > 0 {
		root = s.cfg.Roots[0]
	}
	r.Handle("/*", http.FileServer(http.Dir(root)))

	return r
}

// rebuild compiles the project fresh from disk. The compile cache is
// read if a previous build wrote one, never written.
func (s *Server) rebuild() (*bundler.BuildResult, error) {
	return bundler.Build(s.cfg, false)
}

func (s *Server) serveBundle(w http.ResponseWriter, _ *http.Request) {
	res, err := s.rebuild()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(res.Bundle))
}

func (s *Server) serveManifest(w http.ResponseWriter, _ *http.Request) {
	res, err := s.rebuild()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(res.Manifest)
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Serve.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("dev server listening",
		"addr", s.cfg.Serve.Addr,
		"roots", s.cfg.Roots,
		"tier", s.cfg.Tier)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
