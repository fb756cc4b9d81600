package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/thermoboard/internal/chart"
	"github.com/jpalmerr/thermoboard/internal/store"
	"github.com/jpalmerr/thermoboard/internal/view"
)

const (
	// streamWriteTimeout is the maximum time allowed for a single SSE or
	// WebSocket write. Must be <= shutdown timeout to ensure clean shutdown.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// dashboardTemplate is the path of the page template inside the assets FS.
	dashboardTemplate = "assets/index.html"

	maxChartDimension = 4000
)

// Refresher issues an out-of-schedule fetch. Refresh reports whether a fetch
// was started.
type Refresher interface {
	Refresh() bool
}

// Config holds the static settings of a [Server].
type Config struct {
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// Title is the dashboard heading.
	Title string

	// Address is the device address shown on the page.
	Address string

	// Assets holds the dashboard template. Nil disables "/".
	Assets fs.FS

	// Gatherer backs "/metrics". Nil disables it.
	Gatherer prometheus.Gatherer

	// Location formats times. Nil uses time.Local.
	Location *time.Location

	Logger *slog.Logger
}

// Server handles HTTP requests for the dashboard and API.
//
// Routes:
//   - GET /: Server-rendered dashboard page
//   - GET /api/state: Current acquisition state as JSON
//   - GET /api/view: Current view model as JSON
//   - GET /api/sse: Server-Sent Events stream of view models
//   - GET /api/ws: WebSocket stream of view models
//   - POST /api/refresh: Request an immediate fetch
//   - GET /api/chart.svg, /api/chart.png: History chart image
//   - GET /healthz: Liveness probe
//   - GET /metrics: Prometheus exposition
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store     store.Store
	refresher Refresher
	cfg       Config
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	// page template, parsed on first use
	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, refresher Refresher, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Server{
		store:     st,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboard is served on a local network
			},
		},
	}
}

// Handler returns the router with access logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	if s.cfg.Assets != nil {
		r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/state", handlers.CompressHandler(http.HandlerFunc(s.handleState))).Methods(http.MethodGet)
	api.Handle("/view", handlers.CompressHandler(http.HandlerFunc(s.handleView))).Methods(http.MethodGet)
	api.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.Handle("/chart.{format:svg|png}", handlers.CompressHandler(http.HandlerFunc(s.handleChart))).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return handlers.CustomLoggingHandler(io.Discard, r, s.logAccess)
}

// logAccess writes one DEBUG record per request through the server logger.
func (s *Server) logAccess(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.Debug("http request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp),
	)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context,
		// so streaming handlers end when ctx is cancelled.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listen address once started, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) render(state store.State) view.Model {
	return view.Render(state, view.Options{
		Title:    s.cfg.Title,
		Address:  s.cfg.Address,
		Location: s.cfg.Location,
	})
}

// pageData is the template input for the dashboard page.
type pageData struct {
	view.Model

	// Initial is the model as JSON for the page script.
	Initial template.JS
}

// pageTemplate parses the dashboard template once and returns the cached
// result on every later call.
func (s *Server) pageTemplate() (*template.Template, error) {
	s.tmplOnce.Do(func() {
		s.tmpl, s.tmplErr = template.ParseFS(s.cfg.Assets, dashboardTemplate)
	})
	return s.tmpl, s.tmplErr
}

// handleDashboard serves the server-rendered dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.pageTemplate()
	if err != nil {
		s.logger.Error("failed to load dashboard template", "error", err)
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	model := s.render(s.store.Get())
	initial, err := json.Marshal(model)
	if err != nil {
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}

	// render into a buffer so a template error still yields a clean 500
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pageData{Model: model, Initial: template.JS(initial)}); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleState returns the current acquisition state as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

// handleView returns the current view model as JSON.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.render(s.store.Get()))
}

type refreshResponse struct {
	Issued bool `json:"issued"`
}

// handleRefresh requests an immediate fetch. It answers 202 when a fetch was
// started and 409 when one was already in flight or polling is stopped.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		http.Error(w, "Refresh not available", http.StatusServiceUnavailable)
		return
	}

	if s.refresher.Refresh() {
		s.writeJSON(w, http.StatusAccepted, refreshResponse{Issued: true})
		return
	}
	s.writeJSON(w, http.StatusConflict, refreshResponse{Issued: false})
}

// handleChart renders the history chart. It answers 204 while history is empty.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	opts := chart.Options{Location: s.cfg.Location}
	if opts.Width, err = dimension(r, "width"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Height, err = dimension(r, "height"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	err = chart.Render(&buf, format, s.store.Get().History, opts)
	if errors.Is(err, chart.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error("failed to render chart", "format", string(format), "error", err)
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write chart response", "error", err)
	}
}

// dimension parses an optional positive pixel size from the query string.
func dimension(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > maxChartDimension {
		return 0, fmt.Errorf("%s must be between 1 and %d", name, maxChartDimension)
	}
	return v, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams view models via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked write would prevent the
// handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientID := uuid.NewString()
	s.logger.Debug("sse client connected", "client_id", clientID)
	defer s.logger.Debug("sse client disconnected", "client_id", clientID)

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	send := func(state store.State) error {
		data, err := json.Marshal(s.render(state))
		if err != nil {
			return nil
		}
		return writeAndFlush(data)
	}

	// send the current model first (also protected by write deadline)
	if err := send(s.store.Get()); err != nil {
		return
	}

	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			if err := send(state); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// wsCommand is a message a WebSocket client may send.
type wsCommand struct {
	Action string `json:"action"`
}

// handleWS streams view models over a WebSocket. Clients may send
// {"action":"refresh"} to request an immediate fetch.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	clientID := uuid.NewString()
	s.logger.Debug("websocket client connected", "client_id", clientID)
	defer s.logger.Debug("websocket client disconnected", "client_id", clientID)

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// the reader goroutine owns reads; this goroutine owns writes
	closed := make(chan struct{})
	go s.readCommands(conn, clientID, closed)

	send := func(state store.State) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(s.render(state))
	}

	if err := send(s.store.Get()); err != nil {
		return
	}

	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			if err := send(state); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, clientID string, closed chan<- struct{}) {
	defer close(closed)
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "client_id", clientID, "error", err)
			}
			return
		}

		switch cmd.Action {
		case "refresh":
			if s.refresher != nil {
				s.refresher.Refresh()
			}
		default:
			s.logger.Debug("unknown websocket action", "client_id", clientID, "action", cmd.Action)
		}
	}
}
