// Package webhook serves the voice-agent webhooks, the REST bridge routes
// and the MCP HTTP transports.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/config"
	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/intake"
)

// DefaultServiceName is reported by /health
const DefaultServiceName = "elevenlabs-followupboss-bridge"

// CallLogger runs a call through the intake pipeline
type CallLogger interface {
	LogCall(ctx context.Context, req intake.Request) (intake.Result, error)
}

// CRM is the subset of *crm.Client used by the bridge routes
type CRM interface {
	ListPeople(ctx context.Context, opts crm.ListOptions) (*crm.PeopleList, error)
	CreatePerson(ctx context.Context, data crm.Fields) (*crm.Person, error)
	CreateEvent(ctx context.Context, in crm.EventInput) (*crm.Event, error)
	CreateNote(ctx context.Context, in crm.NoteInput) (*crm.Note, error)
}

// Dependencies holds everything the server routes to. A nil Processor or
// CRM makes the matching routes answer that the API key is missing; a nil
// MCP server leaves the MCP transports unmounted.
type Dependencies struct {
	Processor   CallLogger
	CRM         CRM
	MCP         *server.MCPServer
	MCPConfig   config.MCPConfig
	Tools       []mcp.Tool
	ServiceName string
	Logger      zerolog.Logger

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	sse             *server.SSEServer
	streamable      *server.StreamableHTTPServer
	deps            Dependencies
	logger          zerolog.Logger
	shutdownTimeout time.Duration
}

func New(addr string, deps Dependencies) *Server {
	if deps.ServiceName == "" {
		deps.ServiceName = DefaultServiceName
	}
	readTimeout := orDefault(deps.ReadTimeout, 15*time.Second)
	writeTimeout := orDefault(deps.WriteTimeout, 60*time.Second)

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			ReadTimeout: readTimeout,
			IdleTimeout: 120 * time.Second,
		},
		deps:            deps,
		logger:          deps.Logger.With().Str("component", "webhook").Logger(),
		shutdownTimeout: orDefault(deps.ShutdownTimeout, 10*time.Second),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)

	mux.HandleFunc("POST /webhook/elevenlabs", s.handleElevenLabs)
	mux.HandleFunc("POST /webhook/call-completed", s.handleCallCompleted)
	mux.HandleFunc("POST /webhook/generic", s.handleGeneric)

	mux.HandleFunc("POST /people", s.handleCreatePerson)
	mux.HandleFunc("GET /people", s.handleListPeople)
	mux.HandleFunc("POST /events", s.handleCreateEvent)
	mux.HandleFunc("POST /notes", s.handleCreateNote)

	if deps.MCP != nil {
		s.mountMCP(mux)
	}
	// SSE streams stay open for the whole session
	if s.sse == nil {
		s.httpServer.WriteTimeout = writeTimeout
	}

	var handler http.Handler = mux
	handler = Recover(s.logger)(handler)
	handler = Logging(s.logger)(handler)
	handler = RequestID(handler)

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

func (s *Server) mountMCP(mux *http.ServeMux) {
	cfg := s.deps.MCPConfig
	heartbeat := time.Duration(cfg.HeartbeatSecs) * time.Second

	if cfg.EnableStreamable && cfg.EndpointPath != "" {
		opts := []server.StreamableHTTPOption{server.WithEndpointPath(cfg.EndpointPath)}
		if heartbeat > 0 {
			opts = append(opts, server.WithHeartbeatInterval(heartbeat))
		}
		s.streamable = server.NewStreamableHTTPServer(s.deps.MCP, opts...)
		mux.Handle(cfg.EndpointPath, s.streamable)
	}

	if cfg.EnableSSE && cfg.SSEPath != "" && cfg.MessagePath != "" {
		opts := []server.SSEOption{
			server.WithSSEEndpoint(cfg.SSEPath),
			server.WithMessageEndpoint(cfg.MessagePath),
			server.WithHTTPServer(s.httpServer),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, server.WithBaseURL(cfg.BaseURL))
		}
		if heartbeat > 0 {
			opts = append(opts, server.WithKeepAlive(true), server.WithKeepAliveInterval(heartbeat))
		}
		s.sse = server.NewSSEServer(s.deps.MCP, opts...)
		mux.Handle("GET "+cfg.SSEPath, s.sse)
		mux.Handle("POST "+cfg.MessagePath, s.sse)
	}
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if s.streamable != nil {
			if err := s.streamable.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Err(err).Msg("streamable transport shutdown")
			}
		}
		// The SSE transport owns httpServer when mounted and closes its
		// sessions before shutting it down.
		if s.sse != nil {
			return s.sse.Shutdown(shutdownCtx)
		}
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   s.deps.ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type toolParameter struct {
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type toolInfo struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]toolParameter `json:"parameters,omitempty"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	webhookTool := toolInfo{
		Name:        "create_contact_from_call",
		Description: "Create a Follow Up Boss contact and call event from a completed voice-agent call",
		Parameters: map[string]toolParameter{
			"caller_name":   {Type: "string", Required: true},
			"caller_phone":  {Type: "string", Required: true},
			"transcript":    {Type: "string"},
			"call_summary":  {Type: "string"},
			"call_outcome":  {Type: "string"},
			"call_duration": {Type: "integer"},
		},
	}

	mcpTools := make([]toolInfo, 0, len(s.deps.Tools))
	for _, t := range s.deps.Tools {
		mcpTools = append(mcpTools, toolInfo{Name: t.Name, Description: t.Description})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tools":     []toolInfo{webhookTool},
		"mcp_tools": mcpTools,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(message string) map[string]string {
	return map[string]string{"status": "error", "message": message}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
