package mcptools

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

var secretArgs = map[string]bool{
	"api_key":    true,
	"auth_token": true,
	"password":   true,
	"token":      true,
}

// LoggingMiddleware logs every tool call with its duration and argument
// names. Values are never logged; secret-looking keys are redacted even as
// names.
func LoggingMiddleware(logger zerolog.Logger) server.ToolHandlerMiddleware {
	logger = logger.With().Str("component", "mcp").Logger()
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			result, err := next(ctx, req)

			event := logger.Info()
			if err != nil {
				event = logger.Error().Err(err)
			} else if result != nil && result.IsError {
				event = logger.Warn()
			}
			event.
				Str("tool", req.Params.Name).
				Strs("args", argumentKeys(req.GetArguments())).
				Dur("duration", time.Since(start)).
				Msg("tool call")
			return result, err
		}
	}
}

func argumentKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		if secretArgs[strings.ToLower(k)] {
			k = "[REDACTED]"
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
