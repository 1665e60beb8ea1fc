package plot

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/gorilla/websocket"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/feed"
	"github.com/raykavin/nsechart/pkg/indicator"
	"github.com/raykavin/nsechart/pkg/logger"
	"github.com/samber/lo"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

// Server serves the browser chart, its websocket sessions and PNG renders
type Server struct {
	port     int
	debug    bool
	seed     indicator.Seed
	theme    core.Theme
	width    int
	period   string
	interval string

	source        feed.Source
	log           logger.Logger
	scriptContent string
	indexHTML     *template.Template
	upgrader      websocket.Upgrader
	started       time.Time

	mu          sync.Mutex
	sessions    *set.LinkedHashSetINT64
	lastSession int64
}

// ServerOption defines a function type for configuring a Server instance
type ServerOption func(*Server)

// WithPort sets the HTTP server port
func WithPort(port int) ServerOption {
	return func(s *Server) {
		s.port = port
	}
}

// WithDebug enables debug mode (disables minification)
func WithDebug() ServerOption {
	return func(s *Server) {
		s.debug = true
	}
}

// WithSeed selects the EMA overlay seed of every session
func WithSeed(seed indicator.Seed) ServerOption {
	return func(s *Server) {
		s.seed = seed
	}
}

// WithTheme sets the theme used when a request names none
func WithTheme(theme core.Theme) ServerOption {
	return func(s *Server) {
		s.theme = theme
	}
}

// WithDefaultWidth sets the chart width used before a client reports its own
func WithDefaultWidth(width int) ServerOption {
	return func(s *Server) {
		if width > 0 {
			s.width = width
		}
	}
}

// WithHistoryWindow sets the period and interval used when a request names none
func WithHistoryWindow(period, interval string) ServerOption {
	return func(s *Server) {
		s.period, s.interval = period, interval
	}
}

// NewServer creates a chart server reading history from source
func NewServer(log logger.Logger, source feed.Source, options ...ServerOption) (*Server, error) {
	server := &Server{
		port:     8080,
		seed:     indicator.SeedFirstClose,
		theme:    core.ThemeDark,
		width:    1200,
		period:   feed.DefaultPeriod,
		interval: feed.DefaultInterval,
		source:   source,
		log:      log,
		sessions: set.NewLinkedHashSetINT64(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		started: time.Now(),
	}

	for _, option := range options {
		option(server)
	}

	var err error
	server.indexHTML, err = template.ParseFS(staticFiles, "assets/chart.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	chartJS, err := staticFiles.ReadFile("assets/chart.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read chart.js: %w", err)
	}

	transpiled := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !server.debug,
		MinifyIdentifiers: !server.debug,
		MinifyWhitespace:  !server.debug,
	})

	if len(transpiled.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpiled.Errors)
	}

	server.scriptContent = string(transpiled.Code)

	return server, nil
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/chart.js", s.handleScript)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/chart.png", s.handlePNG)
	mux.HandleFunc("/history.csv", s.handleHistoryCSV)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start serves HTTP until ctx is done
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdown); err != nil {
			s.log.WithError(err).Error("server shutdown failed")
		}
	}()

	s.log.Infof("Chart available at http://localhost:%d", s.port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Sessions returns the IDs of the connected websocket sessions in connection order
func (s *Server) Sessions() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, s.sessions.Length())
	for id := range s.sessions.Iter() {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) register() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSession++
	s.sessions.Add(s.lastSession)
	return s.lastSession
}

func (s *Server) unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Remove(id)
}

// window applies the server defaults to an empty period or interval
func (s *Server) window(period, interval string) (string, string) {
	return lo.Ternary(period == "", s.period, period), lo.Ternary(interval == "", s.interval, interval)
}

// parseToggles reads a toggle list and a theme name, falling back to the server theme
func (s *Server) parseToggles(list, theme string) (core.ToggleSet, error) {
	toggles, err := core.ParseToggles(list)
	if err != nil {
		return core.ToggleSet{}, err
	}

	toggles.Theme, err = core.ParseTheme(lo.Ternary(theme == "", string(s.theme), theme))
	if err != nil {
		return core.ToggleSet{}, err
	}

	return toggles, nil
}
