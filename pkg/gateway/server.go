package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Server is the gateway's HTTP front: it owns the session table, routes each
// request on /endpoint to a session transport per the session state machine,
// and serves the observer event stream.
type Server struct {
	host        string
	port        int
	registry    *tools.Registry
	table       *Table
	observers   *ObserverRegistry
	broadcaster *EventBroadcaster
	sweeper     *Sweeper
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	serverInfo  ServerInfo
	toolTimeout time.Duration

	server         *http.Server
	upgrader       websocket.Upgrader
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host          string
	Port          int
	Registry      *tools.Registry
	Metrics       *metrics.Metrics // optional
	Logger        zerolog.Logger
	ToolTimeout   time.Duration
	IdleTimeout   time.Duration // 0 disables the idle sweep
	SweepSchedule string
	Version       string
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = tools.DefaultDispatchTimeout
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	observers := NewObserverRegistry()
	broadcaster := NewEventBroadcaster(observers, cfg.Logger)
	table := NewTable()

	s := &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		registry:    cfg.Registry,
		table:       table,
		observers:   observers,
		broadcaster: broadcaster,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		serverInfo:  ServerInfo{Name: "toolbridge", Version: cfg.Version},
		toolTimeout: cfg.ToolTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local observer tooling only
			},
		},
	}

	sweeper, err := NewSweeper(table, cfg.IdleTimeout, cfg.SweepSchedule, s.onSessionEvicted, cfg.Logger)
	if err != nil {
		return nil, err
	}
	s.sweeper = sweeper

	return s, nil
}

// Table exposes the session table, mainly for tests and status reporting
func (s *Server) Table() *Table {
	return s.table
}

// Handler returns the HTTP handler tree served by Start
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/endpoint", s.handleEndpoint)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start starts the gateway server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.sweeper.Start()

	return nil
}

// Stop gracefully stops the gateway server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")
	s.sweeper.Stop()

	s.broadcaster.Broadcast(newEvent("server.shutdown", "", nil))

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, session := range s.table.Snapshot() {
		session.Transport.Close()
		s.table.Remove(session.ID)
	}
	for _, o := range s.observers.All() {
		_ = o.Conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) onSessionEvicted(session *Session) {
	if s.metrics != nil {
		s.metrics.SessionsSwept.Inc()
		s.metrics.SessionsActive.Set(float64(s.table.Len()))
	}
	s.broadcaster.Broadcast(newEvent("session.expired", session.ID, nil))
}

// handleEndpoint multiplexes the session protocol over one path
func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		s.countRequest(r.Method, http.StatusMethodNotAllowed)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost implements the router's session state machine: a bound request
// routes to its transport; an unbound initialize creates a session; anything
// else is rejected without mutating state.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, r.Method, "", InvalidRequest, "failed to read request body")
		return
	}

	req, err := ParseRequest(body)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.writeErrorEnvelope(w, http.StatusBadRequest, r.Method, "", rpcErr)
			return
		}
		s.writeError(w, http.StatusBadRequest, r.Method, "", ParseError, err.Error())
		return
	}

	sessionID := r.Header.Get(SessionHeader)

	if sessionID != "" {
		session, ok := s.table.Lookup(sessionID)
		if !ok {
			s.writeError(w, http.StatusBadRequest, r.Method, req.ID, NoValidSession, "no valid session")
			return
		}
		s.writeResponse(w, r.Method, session.Transport.HandleRequest(r.Context(), req))
		return
	}

	if req.Method != MethodInitialize {
		s.writeError(w, http.StatusBadRequest, r.Method, req.ID, NoValidSession, "no valid session")
		return
	}

	transport, err := NewTransport(TransportConfig{
		Registry:    s.registry,
		ToolTimeout: s.toolTimeout,
		ServerInfo:  s.serverInfo,
		Events:      s.broadcaster,
		Metrics:     s.metrics,
		Logger:      s.logger,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, r.Method, req.ID, InternalError, err.Error())
		return
	}

	session := s.table.Create(transport)

	if s.metrics != nil {
		s.metrics.SessionsTotal.Inc()
		s.metrics.SessionsActive.Set(float64(s.table.Len()))
	}

	s.logger.Info().Str("session", session.ID).Msg("Session established")
	s.broadcaster.Broadcast(newEvent("session.created", session.ID, nil))

	w.Header().Set(SessionHeader, session.ID)
	s.writeResponse(w, r.Method, transport.HandleRequest(r.Context(), req))
}

// handleGet pulls queued server-to-client messages for a bound session
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := s.boundSession(w, r)
	if !ok {
		return
	}

	s.countRequest(r.Method, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	msgs := session.Transport.Drain()
	if msgs == nil {
		msgs = []EventMessage{}
	}
	if err := json.NewEncoder(w).Encode(PullResult{Messages: msgs}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode pull response")
	}
}

// handleDelete tears a bound session down at the client's request
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := s.boundSession(w, r)
	if !ok {
		return
	}

	session.Transport.Close()
	s.table.Remove(session.ID)

	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.table.Len()))
	}

	s.logger.Info().Str("session", session.ID).Msg("Session closed by client")
	s.broadcaster.Broadcast(newEvent("session.closed", session.ID, nil))

	s.countRequest(r.Method, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// boundSession resolves the Session-Id header to a live session, writing the
// protocol rejection when it cannot.
func (s *Server) boundSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, r.Method, "", NoValidSession, "missing session header")
		return nil, false
	}

	session, ok := s.table.Lookup(sessionID)
	if !ok {
		s.writeError(w, http.StatusBadRequest, r.Method, "", NoValidSession, "no valid session")
		return nil, false
	}

	return session, true
}

// handleEvents upgrades an observer connection onto the event stream
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade observer connection")
		return
	}

	observerID, _ := gonanoid.New()
	observer := &Observer{
		ID:          observerID,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	s.observers.Add(observer)

	s.logger.Info().
		Str("observerId", observerID).
		Str("ip", r.RemoteAddr).
		Msg("Observer connected")

	go func() {
		defer func() {
			conn.Close()
			s.observers.Remove(observerID)
			s.logger.Info().Str("observerId", observerID).Msg("Observer disconnected")
		}()

		// Observers are read-only; drain until the peer goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeResponse(w http.ResponseWriter, httpMethod string, resp *RPCResponse) {
	s.countRequest(httpMethod, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, httpMethod, requestID string, code int, message string) {
	s.writeErrorEnvelope(w, status, httpMethod, requestID, &RPCError{Code: code, Message: message})
}

func (s *Server) writeErrorEnvelope(w http.ResponseWriter, status int, httpMethod, requestID string, rpcErr *RPCError) {
	s.countRequest(httpMethod, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := &RPCResponse{
		ID:      requestID,
		JSONRPC: "2.0",
		Error:   rpcErr,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

func (s *Server) countRequest(method string, status int) {
	if s.metrics == nil {
		return
	}
	s.metrics.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
