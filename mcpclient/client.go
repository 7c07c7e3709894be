// Package mcpclient connects to a callbridge MCP server (or any MCP server)
// to list and call its tools.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Transport names accepted by Target
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Environment variables consulted by ResolveTarget
const (
	EnvServerURL  = "MCP_SERVER_URL"
	EnvServerPath = "MCP_SERVER_PATH"
)

const defaultTimeout = 30 * time.Second

// ErrNoTarget means neither a URL nor a command was given
var ErrNoTarget = errors.New("no MCP server given: set --url, --command, " + EnvServerURL + " or " + EnvServerPath)

// Target describes how to reach an MCP server
type Target struct {
	// Transport is stdio, http (streamable) or sse
	Transport string

	// URL of the streamable endpoint or the SSE endpoint
	URL string

	// Command and Args start a stdio server
	Command string
	Args    []string
	Env     []string

	Timeout time.Duration
}

// ResolveTarget builds a target from explicit values, falling back to the
// environment. A URL ending in the SSE path selects the SSE transport.
func ResolveTarget(url, command string, args []string, getenv func(string) string) (Target, error) {
	if url == "" && command == "" {
		url = strings.TrimSpace(getenv(EnvServerURL))
		if url == "" {
			command = strings.TrimSpace(getenv(EnvServerPath))
		}
	}

	switch {
	case url != "":
		transport := TransportHTTP
		if strings.HasSuffix(strings.TrimRight(url, "/"), "/sse") {
			transport = TransportSSE
		}
		return Target{Transport: transport, URL: url, Timeout: defaultTimeout}, nil
	case command != "":
		return Target{Transport: TransportStdio, Command: command, Args: args, Timeout: defaultTimeout}, nil
	default:
		return Target{}, ErrNoTarget
	}
}

// Client is an initialized MCP session
type Client struct {
	mcp        *client.Client
	serverInfo mcp.Implementation
	timeout    time.Duration
	logger     zerolog.Logger
}

// ToolResult is the text of a tool response
type ToolResult struct {
	Text    string
	IsError bool
}

// Connect opens the transport and runs the initialize handshake.
func Connect(ctx context.Context, target Target, logger zerolog.Logger) (*Client, error) {
	var (
		c       *client.Client
		err     error
		started bool
	)
	switch target.Transport {
	case TransportStdio:
		// the stdio client starts its subprocess on creation
		c, err = client.NewStdioMCPClient(target.Command, target.Env, target.Args...)
		started = true
	case TransportHTTP:
		c, err = client.NewStreamableHttpClient(target.URL)
	case TransportSSE:
		c, err = client.NewSSEMCPClient(target.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP transport type: %s", target.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP %s client: %w", target.Transport, err)
	}

	return start(ctx, c, started, target.Timeout, logger)
}

// NewInProcess connects to a server in the same process.
func NewInProcess(ctx context.Context, s *server.MCPServer, logger zerolog.Logger) (*Client, error) {
	c, err := client.NewInProcessClient(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-process client: %w", err)
	}
	return start(ctx, c, false, defaultTimeout, logger)
}

func start(ctx context.Context, c *client.Client, started bool, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if !started {
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to start MCP transport: %w", err)
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "callbridge", Version: "1.0.0"}
	res, err := c.Initialize(initCtx, req)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("MCP initialize failed: %w", err)
	}

	logger.Debug().
		Str("server", res.ServerInfo.Name).
		Str("version", res.ServerInfo.Version).
		Str("protocol", res.ProtocolVersion).
		Msg("MCP session initialized")

	return &Client{mcp: c, serverInfo: res.ServerInfo, timeout: timeout, logger: logger}, nil
}

// ServerInfo names the connected server.
func (c *Client) ServerInfo() mcp.Implementation {
	return c.serverInfo
}

// ListTools returns every tool the server offers.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.mcp.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return res.Tools, nil
}

// CallTool invokes name with args and joins the text content of the result.
// A tool-level failure is reported in ToolResult.IsError, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	start := time.Now()
	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return ToolResult{}, fmt.Errorf("tool %s failed: %w", name, err)
	}
	c.logger.Debug().Str("tool", name).Dur("duration", time.Since(start)).Bool("is_error", res.IsError).Msg("tool called")

	var parts []string
	for _, content := range res.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return ToolResult{Text: strings.Join(parts, "\n"), IsError: res.IsError}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// ParseArgs turns key=value pairs into tool arguments. Integers, true, false
// and JSON objects or arrays are decoded; everything else stays a string.
func ParseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		args[strings.TrimSpace(key)] = parseValue(value)
	}
	return args, nil
}

func parseValue(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if v == "true" || v == "false" {
		return v == "true"
	}
	if strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			return decoded
		}
	}
	return v
}
