package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Transport frames the session protocol for one session: it decodes tool
// calls, runs them through the registry's dispatch boundary, and queues
// server-to-client messages on its outbox. Requests within one session are
// handled in arrival order; sessions never share a transport.
type Transport struct {
	registry    *tools.Registry
	toolTimeout time.Duration
	serverInfo  ServerInfo
	events      *EventBroadcaster
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	// reqMu serializes request handling for this session
	reqMu sync.Mutex

	stateMu    sync.Mutex
	id         string
	outbox     []EventMessage
	closed     bool
	lastActive time.Time
}

// TransportConfig configures a session transport
type TransportConfig struct {
	Registry    *tools.Registry
	ToolTimeout time.Duration
	ServerInfo  ServerInfo
	Events      *EventBroadcaster // optional
	Metrics     *metrics.Metrics  // optional
	Logger      zerolog.Logger
}

// NewTransport creates an unbound transport. The session table assigns its
// identifier at registration time.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = tools.DefaultDispatchTimeout
	}

	return &Transport{
		registry:    cfg.Registry,
		toolTimeout: cfg.ToolTimeout,
		serverInfo:  cfg.ServerInfo,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		lastActive:  time.Now(),
	}, nil
}

func (t *Transport) bind(id string) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.id = id
}

// ID returns the bound session identifier, or "" before binding
func (t *Transport) ID() string {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.id
}

// LastActive returns when the transport last handled a request
func (t *Transport) LastActive() time.Time {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.lastActive
}

// Closed reports whether the transport has been torn down
func (t *Transport) Closed() bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.closed
}

// Close tears the transport down. Idempotent.
func (t *Transport) Close() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.outbox = nil
}

func (t *Transport) touch() {
	t.stateMu.Lock()
	t.lastActive = time.Now()
	t.stateMu.Unlock()
}

// Enqueue appends a message to the session outbox for the next GET pull
func (t *Transport) Enqueue(msg EventMessage) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.closed {
		return
	}
	t.outbox = append(t.outbox, msg)
}

// Drain removes and returns all queued server-to-client messages
func (t *Transport) Drain() []EventMessage {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	msgs := t.outbox
	t.outbox = nil
	t.touchLocked()
	return msgs
}

func (t *Transport) touchLocked() {
	t.lastActive = time.Now()
}

// HandleRequest routes one decoded request to its method handler and returns
// the response. A malformed payload or unknown method yields a protocol
// error; a failing tool yields an error-marked result; neither closes the
// session.
func (t *Transport) HandleRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	t.reqMu.Lock()
	defer t.reqMu.Unlock()

	t.touch()

	switch req.Method {
	case MethodInitialize:
		return resultResponse(req.ID, InitializeResult{ServerInfo: t.serverInfo})

	case MethodPing:
		return resultResponse(req.ID, "pong")

	case MethodToolsList:
		return resultResponse(req.ID, t.listTools())

	case MethodToolsCall:
		return t.callTool(ctx, req)

	default:
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (t *Transport) listTools() ToolsListResult {
	descriptors := t.registry.DescribeAll()
	infos := make([]ToolInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		infos = append(infos, ToolInfo{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema(),
		})
	}
	return ToolsListResult{Tools: infos}
}

func (t *Transport) callTool(ctx context.Context, req *RPCRequest) *RPCResponse {
	name, _ := req.Params["name"].(string)
	if name == "" {
		return errorResponse(req.ID, InvalidParams, "tools/call requires a tool name")
	}

	args, _ := req.Params["arguments"].(map[string]interface{})

	t.emit("tool.start", map[string]interface{}{"tool": name})

	start := time.Now()
	result := t.registry.Dispatch(ctx, name, args, t.toolTimeout)
	duration := time.Since(start)

	if t.metrics != nil {
		t.metrics.ToolExecutionsTotal.WithLabelValues(name).Inc()
		t.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(duration.Seconds())
		if result.IsError {
			t.metrics.ToolExecutionErrorsTotal.WithLabelValues(name).Inc()
		}
	}

	t.emit("tool.finish", map[string]interface{}{
		"tool":     name,
		"is_error": result.IsError,
		"duration": duration.Milliseconds(),
	})

	t.logger.Debug().
		Str("session", t.ID()).
		Str("tool", name).
		Bool("is_error", result.IsError).
		Dur("duration", duration).
		Msg("Tool call handled")

	return resultResponse(req.ID, CallToolResult{
		Content: result.Parts,
		IsError: result.IsError,
	})
}

// emit queues a lifecycle event on the session outbox and mirrors it to
// websocket observers when a broadcaster is attached.
func (t *Transport) emit(event string, data interface{}) {
	msg := newEvent(event, t.ID(), data)
	t.Enqueue(msg)
	if t.events != nil {
		t.events.Broadcast(msg)
	}
}
