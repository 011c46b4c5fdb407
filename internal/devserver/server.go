package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
)

// State is the lifecycle state of a Server.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Options configures a Server.
type Options struct {
	// Upstream is the site being proxied, e.g. http://localhost/wp_learn/.
	Upstream string
	Host     string
	// Port 0 picks a free port.
	Port int
	// OutputDir is the absolute output directory served under ServeDist.
	OutputDir string
	ServeDist string
	Recorder  metrics.Recorder
	// Metrics, when set, is mounted at /__themebuilder/metrics.
	Metrics http.Handler
}

// Server is the development proxy. Its zero value is not usable; call New.
type Server struct {
	opts     Options
	upstream *url.URL

	mu    sync.Mutex
	state State
	hub   *LiveReloadHub
	srv   *http.Server
	addr  string
}

// New validates opts and returns a stopped server.
func New(opts Options) (*Server, error) {
	u, err := url.Parse(opts.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ferrors.ConfigError("dev server upstream must be an absolute http(s) URL").
			WithContext("upstream", opts.Upstream).Build()
	}
	if opts.ServeDist != "" && !strings.HasSuffix(opts.ServeDist, "/") {
		opts.ServeDist += "/"
	}
	return &Server{opts: opts, upstream: u, hub: NewLiveReloadHub(opts.Recorder)}, nil
}

// State reports whether the server is running.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the listen address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL is the address a browser should open: the proxy origin plus the
// upstream path.
func (s *Server) URL() string {
	return "http://" + s.Addr() + s.upstream.Path
}

// Handler returns the routing handler. It is usable without Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(liveReloadPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := s.liveReload()
		if hub == nil {
			http.Error(w, "livereload stopped", http.StatusServiceUnavailable)
			return
		}
		hub.ServeHTTP(w, r)
	}))
	mux.HandleFunc(clientPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(clientScript)); err != nil {
			slog.Debug("write livereload client", "error", err)
		}
	})
	if s.opts.Metrics != nil {
		mux.Handle(metricsPath, s.opts.Metrics)
	}
	if s.opts.ServeDist != "" && s.opts.OutputDir != "" {
		files := http.StripPrefix(s.opts.ServeDist, http.FileServer(http.Dir(s.opts.OutputDir)))
		mux.Handle(s.opts.ServeDist, noCache(files))
	}

	proxy := newProxy(s.upstream)
	upstreamPath := s.upstream.Path
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && upstreamPath != "" && upstreamPath != "/" {
			http.Redirect(w, r, upstreamPath, http.StatusFound)
			return
		}
		proxy.ServeHTTP(w, r)
	})
	return mux
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) liveReload() *LiveReloadHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub
}

// Start binds the listener and serves in the background until ctx is
// cancelled. It returns once the server is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ferrors.ServerError("dev server already running").Build()
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return ferrors.WrapError(err, ferrors.CategoryServer, "listen").Fatal().WithContext("addr", addr).Build()
	}
	if s.hub == nil {
		s.hub = NewLiveReloadHub(s.opts.Recorder)
	}
	// No write timeout: livereload streams stay open.
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}
	s.srv = srv
	s.addr = ln.Addr().String()
	s.state = StateRunning
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Dev server stopped", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			slog.Warn("Dev server shutdown", logfields.Error(err))
		}
	}()

	slog.Info("Dev server running",
		logfields.URL(s.URL()),
		slog.String("upstream", s.upstream.String()))
	return nil
}

// Shutdown disconnects live reload clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	srv, hub := s.srv, s.hub
	s.state = StateStopped
	s.srv = nil
	s.hub = nil
	s.mu.Unlock()

	hub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	return nil
}

// Reload pushes a reload message to connected browsers. It is a no-op while
// the server is stopped.
func (s *Server) Reload(kind reload.Kind, paths ...string) {
	s.mu.Lock()
	hub, running := s.hub, s.state == StateRunning
	s.mu.Unlock()
	if !running || hub == nil {
		return
	}
	slog.Info("Reloading browsers", logfields.Reload(string(kind)), logfields.Files(len(paths)))
	hub.Broadcast(Message{Kind: kind, Paths: paths})
}

var _ reload.Notifier = (*Server)(nil)
