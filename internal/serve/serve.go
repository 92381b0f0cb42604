// Package serve runs the local preview server for a built site. It serves
// the output directory with pretty-URL fallbacks, exposes health and
// Prometheus endpoints, and pushes live-reload events to browsers after
// successful rebuilds.
package serve

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// Options configures the preview server.
type Options struct {
	Addr       string
	Root       string // built site directory
	LiveReload bool
	Metrics    http.Handler // mounted at /metrics when non-nil
	Logger     *slog.Logger
}

// Server serves a built site over HTTP.
type Server struct {
	addr   string
	root   string
	reload *ReloadHub
	server *http.Server
	logger *slog.Logger
}

// New assembles the router and server. Call ListenAndServe to run it.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   opts.Addr,
		root:   opts.Root,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	static := http.Handler(http.HandlerFunc(s.serveStatic))
	if opts.LiveReload {
		s.reload = NewReloadHub(logger)
		r.Handle("/livereload", s.reload)
		r.Get("/livereload.js", handleReloadScript)
		static = injectReloadScript(static)
	}
	r.Handle("/*", static)

	// WriteTimeout stays zero so SSE streams are not cut off.
	s.server = &http.Server{
		Addr:        opts.Addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("serving site", "addr", s.addr, "root", s.root)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return rerrors.Wrap(err, rerrors.CategoryDaemon, rerrors.SeverityFatal, "preview server failed")
	}
	return nil
}

// Shutdown stops the server and disconnects live-reload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.reload != nil {
		s.reload.Shutdown()
	}
	return s.server.Shutdown(ctx)
}

// NotifyReload tells connected browsers the site changed.
func (s *Server) NotifyReload() {
	if s.reload != nil {
		s.reload.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 10))
	}
}

// serveStatic serves the output directory. Extensionless requests fall
// back to the matching .html file so non-pretty sites still answer
// /guide/install, and directory requests pick up index.html as usual.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if p != "" && p != "." && path.Ext(p) == "" {
		target := filepath.Join(s.root, filepath.FromSlash(p))
		if st, err := os.Stat(target); err != nil || !st.IsDir() {
			if html := target + ".html"; fileExists(html) {
				http.ServeFile(w, r, html)
				return
			}
		}
	}
	http.FileServer(http.Dir(s.root)).ServeHTTP(w, r)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func handleReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(reloadScript))
}

const reloadScriptTag = `<script src="/livereload.js" defer></script>`

// injectReloadScript buffers HTML responses and splices the live-reload
// script tag in before </body>. Non-HTML requests pass through untouched.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !likelyHTML(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		rec := &captureWriter{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		body := rec.buf.Bytes()
		modified := false
		if rec.status == http.StatusOK && strings.Contains(rec.header.Get("Content-Type"), "text/html") {
			if idx := bytes.LastIndex(body, []byte("</body>")); idx >= 0 {
				var out bytes.Buffer
				out.Grow(len(body) + len(reloadScriptTag))
				out.Write(body[:idx])
				out.WriteString(reloadScriptTag)
				out.Write(body[idx:])
				body = out.Bytes()
			} else {
				body = append(body, []byte(reloadScriptTag)...)
			}
			modified = true
		}

		h := w.Header()
		for k, vv := range rec.header {
			h[k] = vv
		}
		if modified {
			h.Set("Content-Length", strconv.Itoa(len(body)))
		}
		w.WriteHeader(rec.status)
		_, _ = w.Write(body)
	})
}

// likelyHTML matches requests the file server could answer with a page:
// directories, explicit .html paths, and extensionless pretty URLs.
func likelyHTML(urlPath string) bool {
	p := path.Clean(urlPath)
	ext := path.Ext(p)
	return ext == "" || ext == ".html"
}

// captureWriter buffers a downstream response so it can be rewritten.
type captureWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) { c.status = status }

func (c *captureWriter) Write(p []byte) (int, error) { return c.buf.Write(p) }
