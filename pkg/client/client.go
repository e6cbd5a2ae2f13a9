package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/toolbridge/toolbridge/pkg/gateway"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Client speaks the session protocol against a gateway: initialize once,
// then call tools under the returned session id. It implements the
// orchestration loop's Dispatcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	sessionID  string
	serverInfo gateway.ServerInfo
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// New creates an unbound client; call Initialize to establish a session
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}, nil
}

// SessionID returns the bound session id, empty before Initialize
func (c *Client) SessionID() string {
	return c.sessionID
}

// ServerInfo returns the gateway identity captured at Initialize
func (c *Client) ServerInfo() gateway.ServerInfo {
	return c.serverInfo
}

// Initialize establishes the session and captures its id from the response
// header.
func (c *Client) Initialize(ctx context.Context) (gateway.ServerInfo, error) {
	if c.sessionID != "" {
		return c.serverInfo, nil
	}

	raw, header, err := c.post(ctx, gateway.MethodInitialize, nil)
	if err != nil {
		return gateway.ServerInfo{}, err
	}

	sessionID := header.Get(gateway.SessionHeader)
	if sessionID == "" {
		return gateway.ServerInfo{}, fmt.Errorf("initialize response missing %s header", gateway.SessionHeader)
	}

	var result gateway.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return gateway.ServerInfo{}, fmt.Errorf("failed to decode initialize result: %w", err)
	}

	c.sessionID = sessionID
	c.serverInfo = result.ServerInfo
	c.logger.Debug().Str("session", sessionID).Str("server", result.ServerInfo.Name).Msg("Session established")

	return result.ServerInfo, nil
}

// ListTools fetches the advertised descriptors
func (c *Client) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	raw, _, err := c.post(ctx, gateway.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}

	var result gateway.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tools list: %w", err)
	}

	descriptors := make([]tools.Descriptor, 0, len(result.Tools))
	for _, info := range result.Tools {
		descriptors = append(descriptors, descriptorFromInfo(info))
	}
	return descriptors, nil
}

// CallTool invokes one tool on the bound session
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error) {
	raw, _, err := c.post(ctx, gateway.MethodToolsCall, map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return tools.Result{}, err
	}

	var result gateway.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return tools.Result{}, fmt.Errorf("failed to decode tool result: %w", err)
	}

	return tools.Result{Parts: result.Content, IsError: result.IsError}, nil
}

// Ping checks session liveness
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.post(ctx, gateway.MethodPing, nil)
	return err
}

// Pull drains queued server-to-client messages
func (c *Client) Pull(ctx context.Context) ([]gateway.EventMessage, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("client is not initialized")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/endpoint", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(gateway.SessionHeader, c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull rejected with status %d", resp.StatusCode)
	}

	var result gateway.PullResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pull result: %w", err)
	}
	return result.Messages, nil
}

// Close tears the session down; safe to call more than once
func (c *Client) Close(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/endpoint", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(gateway.SessionHeader, c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	defer resp.Body.Close()

	c.sessionID = ""
	return nil
}

// post sends one JSON-RPC request and returns the raw result payload
func (c *Client) post(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, http.Header, error) {
	if method != gateway.MethodInitialize && c.sessionID == "" {
		return nil, nil, fmt.Errorf("client is not initialized")
	}

	requestID, err := gonanoid.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate request id: %w", err)
	}

	body, err := json.Marshal(gateway.RPCRequest{
		ID:      requestID,
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/endpoint", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(gateway.SessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		ID      string            `json:"id"`
		Result  json.RawMessage   `json:"result,omitempty"`
		Error   *gateway.RPCError `json:"error,omitempty"`
		JSONRPC string            `json:"jsonrpc"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if envelope.Error != nil {
		return nil, nil, fmt.Errorf("%s failed: %w", method, envelope.Error)
	}

	return envelope.Result, resp.Header, nil
}

// descriptorFromInfo rebuilds a descriptor from its wire schema
func descriptorFromInfo(info gateway.ToolInfo) tools.Descriptor {
	desc := tools.Descriptor{
		Name:        info.Name,
		Description: info.Description,
	}

	properties, _ := info.InputSchema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if reqList, ok := info.InputSchema["required"].([]interface{}); ok {
		for _, name := range reqList {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		param := tools.Param{Name: name, Required: required[name]}
		if prop, ok := properties[name].(map[string]interface{}); ok {
			param.Type, _ = prop["type"].(string)
			param.Description, _ = prop["description"].(string)
		}
		desc.Params = append(desc.Params, param)
	}

	return desc
}
