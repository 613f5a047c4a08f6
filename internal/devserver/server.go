// Package devserver serves the build output with live reload.
//
// HTML pages get a small client script injected that connects to the
// /__livereload websocket. When tasks write files the server tells every
// browser to either swap stylesheets in place (CSS only) or reload.
package devserver

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/yacobolo/assetpipe/internal/console"
)

//go:embed client.js
var clientScript []byte

// Paths served next to the static files.
const (
	LiveReloadPath = "/__livereload"
	MetricsPath    = "/__metrics"
)

// Options configures a Server.
type Options struct {
	Root       string // Directory served at "/"
	Host       string // Default "localhost"
	Port       int    // 0 picks a free port
	LiveReload bool
	Log        *console.Logger
	Metrics    http.Handler // Served at MetricsPath when set
	OnReload   func(kind string)
}

// Server is the development HTTP server.
type Server struct {
	opts Options
	log  *console.Logger
	hub  *hub

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// New creates a server. Nothing listens until Start.
func New(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	log := opts.Log
	if log == nil {
		log = console.Discard()
	}
	return &Server{opts: opts, log: log, hub: newHub(log)}
}

// Handler returns the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	if s.opts.LiveReload {
		r.HandleFunc(LiveReloadPath, s.hub.serveWS)
		r.HandleFunc(ClientPath, serveClient).Methods(http.MethodGet, http.MethodHead)
	}
	if s.opts.Metrics != nil {
		r.Handle(MetricsPath, s.opts.Metrics).Methods(http.MethodGet)
	}
	r.PathPrefix("/").Handler(s.static()).Methods(http.MethodGet, http.MethodHead)
	r.Use(s.logRequests)

	return cors.AllowAll().Handler(r)
}

func serveClient(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientScript)
}

// static serves files below Root. HTML documents are rewritten to load
// the live reload client.
func (s *Server) static() http.Handler {
	files := http.FileServer(http.Dir(s.opts.Root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if !s.opts.LiveReload {
			files.ServeHTTP(w, r)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		file := filepath.Join(s.opts.Root, filepath.FromSlash(name))
		if info, err := os.Stat(file); err == nil && info.IsDir() {
			if !strings.HasSuffix(r.URL.Path, "/") {
				files.ServeHTTP(w, r) // redirects to the slash form
				return
			}
			file = filepath.Join(file, "index.html")
		}
		if !isHTML(file) {
			files.ServeHTTP(w, r)
			return
		}

		// #nosec G304 - the path is cleaned and rooted at the output directory
		data, err := os.ReadFile(file)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}
		body := InjectClient(data)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	})
}

func isHTML(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	return ext == ".html" || ext == ".htm"
}

// statusWriter captures the response status for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the original writer.
		if r.URL.Path == LiveReloadPath {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debugf("%s %s %d %s", r.Method, r.URL.Path, sw.status, console.FormatDuration(time.Since(start)))
	})
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("devserver: already started")
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan error, 1)
	go func(srv *http.Server, done chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}(s.srv, s.done)

	s.log.Infof("Local: %s", s.baseURL())
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL browsers should open.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL()
}

func (s *Server) baseURL() string {
	host := s.opts.Host
	port := strconv.Itoa(s.opts.Port)
	if s.listener != nil {
		if _, p, err := net.SplitHostPort(s.listener.Addr().String()); err == nil {
			port = p
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Shutdown closes live reload connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.hub.closeAll()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown dev server: %w", err)
	}
	err := <-done

	s.mu.Lock()
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	return err
}

// Run starts the server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-done:
		return err
	}
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Notify tells browsers about written files. Stylesheets are injected;
// any other file triggers a single full reload. Nothing is sent while no
// browser is connected.
func (s *Server) Notify(paths ...string) {
	if !s.opts.LiveReload || len(paths) == 0 || s.hub.count() == 0 {
		return
	}

	var injects []string
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			s.send(Message{Type: TypeReload})
			return
		}
		injects = append(injects, s.urlPath(p))
	}
	for _, p := range injects {
		s.send(Message{Type: TypeInject, Path: p})
	}
}

func (s *Server) send(msg Message) {
	s.hub.broadcast(msg)
	if s.opts.OnReload != nil {
		s.opts.OnReload(msg.Type)
	}
}

// urlPath maps a file below Root to the URL it is served at.
func (s *Server) urlPath(file string) string {
	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return ""
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel)
}
