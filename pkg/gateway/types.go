package gateway

import (
	"encoding/json"
	"time"

	"github.com/toolbridge/toolbridge/pkg/tools"
)

// SessionHeader is the HTTP header binding a request to a live session.
// It is absent on the first (initialize) request and returned on its response.
const SessionHeader = "Session-Id"

// Session protocol methods
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
	MethodPing       = "ping"
)

// RPCRequest represents a JSON-RPC 2.0 request
type RPCRequest struct {
	ID      string                 `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
	JSONRPC string                 `json:"jsonrpc"`
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	ID      string      `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	JSONRPC string      `json:"jsonrpc"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	NoValidSession = -32000
)

// ParseRequest parses and validates a JSON-RPC request body
func ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}
	}

	if req.ID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing id field",
		}
	}

	if req.Method == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing method field",
		}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}

	return &req, nil
}

func errorResponse(id string, code int, message string) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
}

func resultResponse(id string, result interface{}) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Result:  result,
	}
}

// InitializeResult is the payload returned for a successful initialize.
type InitializeResult struct {
	ServerInfo ServerInfo `json:"serverInfo"`
}

// ServerInfo identifies the gateway to a newly bound client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsListResult carries the advertised tool descriptors.
type ToolsListResult struct {
	Tools []ToolInfo `json:"tools"`
}

// ToolInfo is the wire form of a tool descriptor.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// CallToolResult is the wire form of a tool result.
type CallToolResult struct {
	Content []tools.Part `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// EventMessage is a server-initiated message, either queued on a session's
// outbox for GET pulls or broadcast to websocket observers.
type EventMessage struct {
	Event     string      `json:"event"`
	Session   string      `json:"session,omitempty"`
	Seq       int64       `json:"seq,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// PullResult is the GET /endpoint payload carrying queued messages.
type PullResult struct {
	Messages []EventMessage `json:"messages"`
}

func newEvent(event, session string, data interface{}) EventMessage {
	return EventMessage{
		Event:     event,
		Session:   session,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
