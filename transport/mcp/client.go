package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/fieldsync/game/config"
	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Fieldsync",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Fieldsync - MCP Interface

This is a thin client that proxies all requests to the REST API of a running
field server. The field is a square 2D world with rectangular obstacles and
moving entities: humans connected over WebSocket and server-driven bots.

AVAILABLE TOOLS:
- field_info: Field size and obstacle list
- list_entities: Entity positions and velocities, optionally only bots or humans
- get_entity: One entity by id
- list_sessions: Connected WebSocket clients
- server_stats: Broadcast ticks, moves, failures and other counters
- list_configs: Available configuration presets
- protocol_reference: The binary WebSocket protocol used by clients`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "field_info",
		Description: "Get the field size and its obstacles",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_obstacles": map[string]interface{}{
					"type":        "boolean",
					"description": "List every obstacle rectangle (default true)",
				},
			},
		},
	}, c.handleFieldInfo)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_entities",
		Description: "List entities on the field with their position and velocity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"all", "bots", "humans"},
					"description": "Restrict the listing to bots or humans (default all)",
				},
			},
		},
	}, c.handleListEntities)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_entity",
		Description: "Get one entity by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Entity id",
				},
			},
			Required: []string{"id"},
		},
	}, c.handleGetEntity)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List connected WebSocket clients",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get server counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available configuration presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_reference",
		Description: "Describe the binary WebSocket protocol spoken by clients",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocolReference)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleFieldInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeObstacles := true
	if v, ok := arguments(request)["include_obstacles"].(bool); ok {
		includeObstacles = v
	}

	var info service.FieldInfo
	if err := c.apiCall(ctx, "GET", "/api/field", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFieldInfo(&info, includeObstacles)), nil
}

func (c *Client) handleListEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, _ := arguments(request)["kind"].(string)
	if _, ok := service.ParseEntityKind(kind); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q: use all, bots or humans", kind)), nil
	}

	path := "/api/entities"
	if kind != "" && kind != "all" {
		path += "?kind=" + url.QueryEscape(kind)
	}

	var response struct {
		Count    int                  `json:"count"`
		Entities []engine.EntityState `json:"entities"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Entities (%d):\n\n", response.Count)
	for _, e := range response.Entities {
		result += formatEntityLine(e) + "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := entityID(arguments(request)["id"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var entity engine.EntityState
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/entities/%d", id), nil, &entity); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatEntityLine(entity)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions?sort=created&order=asc", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Connected Clients (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s -> %s (entity %d, connected %s, last move %s)\n",
			s.ID, s.EntityName, s.EntityID,
			s.CreatedAt.Format("15:04:05"), s.LastAccessedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(&stats)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []config.Info
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("- %s: %s (%dx%d, %d obstacles, %d bots)\n",
			cfg.ID, cfg.Name, cfg.FieldSize, cfg.FieldSize, cfg.ObstacleCount, cfg.BotCount)
		if cfg.Description != "" {
			result += fmt.Sprintf("  %s\n", cfg.Description)
		}
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleProtocolReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolReference), nil
}

const protocolReference = `Fieldsync WebSocket Protocol

CONNECTING:
1. Open a WebSocket to /ws
2. Send the text frame "start"
3. Receive the text frame "<id>|<name>", e.g. "1804289383|client_1804289383"
4. Receive FieldParams, then ConnectedInfo (binary)

BINARY FRAMES:
Every binary frame starts with a one byte tag. All integers are 32-bit
little-endian two's complement. Names are 64 bytes, space padded.

  0 Close          (no payload, ignored by the server)
  1 FieldParams    size, start x, start y, count, count x (x, y, w, h)
  2 CheckMove      vx, vy                       client -> server
  3 ResultMove     vx, vy                       server -> client
  4 EntitiesInfo   count, count x (id, x, y, vx, vy)
  5 ConnectedInfo  count, count x (id, name[64])

MOVING:
Send CheckMove with the desired velocity. The server reflects each axis that
would hit a wall or obstacle, moves the entity by the corrected velocity and
answers with ResultMove carrying it. Every 30ms the server sends EntitiesInfo
with every entity on the field.

ERRORS:
A malformed binary frame closes the connection. Text frames after the
handshake are ignored.`

// Formatting helpers

func formatFieldInfo(info *service.FieldInfo, includeObstacles bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Field: %dx%d\n", info.Size, info.Size)
	fmt.Fprintf(&b, "Obstacles: %d\n", info.ObstacleCount)

	if includeObstacles {
		for i, box := range info.Obstacles {
			fmt.Fprintf(&b, "  %2d. x=%d y=%d w=%d h=%d\n", i+1, box.X, box.Y, box.W, box.H)
		}
	}
	return b.String()
}

func formatEntityLine(e engine.EntityState) string {
	kind := "human"
	if e.IsBot {
		kind = "bot"
	}
	return fmt.Sprintf("- %s [%s id=%d] pos=(%d,%d) vel=(%d,%d)",
		e.Name, kind, e.ID, e.Position.X, e.Position.Y, e.Velocity.X, e.Velocity.Y)
}

func formatStats(stats *service.Stats) string {
	status := "stopped"
	if stats.Running {
		status = "running"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", status)
	if !stats.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", stats.StartedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Broadcast interval: %dms\n", stats.BroadcastIntervalMs)
	fmt.Fprintf(&b, "Connections: %d\n", stats.Connections)
	fmt.Fprintf(&b, "Entities: %d (bots: %d)\n", stats.Entities, stats.Bots)
	fmt.Fprintf(&b, "Ticks: %d\n", stats.Ticks)
	fmt.Fprintf(&b, "Moves: %d\n", stats.Moves)
	fmt.Fprintf(&b, "Send failures: %d\n", stats.SendFailures)
	fmt.Fprintf(&b, "Protocol violations: %d\n", stats.ProtocolViolations)
	fmt.Fprintf(&b, "Disconnects: %d\n", stats.Disconnects)
	if stats.RecoveredPanics > 0 {
		fmt.Fprintf(&b, "Recovered panics: %d\n", stats.RecoveredPanics)
	}
	return b.String()
}

// entityID accepts the JSON number, integer or string forms of an id
func entityID(v interface{}) (int32, error) {
	switch id := v.(type) {
	case float64:
		if id != float64(int32(id)) {
			return 0, fmt.Errorf("invalid entity id %v", id)
		}
		return int32(id), nil
	case int:
		return int32(id), nil
	case int32:
		return id, nil
	case string:
		n, err := strconv.ParseInt(id, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid entity id %q", id)
		}
		return int32(n), nil
	case nil:
		return 0, fmt.Errorf("id is required")
	default:
		return 0, fmt.Errorf("invalid entity id %v", v)
	}
}

// arguments returns the tool call arguments, or an empty map when absent
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}
