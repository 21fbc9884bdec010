// Package api serves chat turns over HTTP: a JSON POST /chat endpoint and an
// MCP endpoint exposing the same flow as a tool.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// ChatService answers one chat turn. *chat.Service satisfies it.
type ChatService interface {
	Reply(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Server is the stateless chatrelay HTTP backend. Each request carries its
// full history, so any number of clients can share one server.
type Server struct {
	config  Config
	service ChatService
	logger  *zap.Logger
	server  *fiber.App
}

// NewServer creates a Server and registers its routes.
func NewServer(config Config, service ChatService, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("chat service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
		server:  app,
	}

	app.Get("/", s.handleIndex)
	app.Post("/chat", s.handleChat)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	if !config.DisableMCP {
		mcpServer := NewMCPServer(service, logger)
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpServer
		}, nil)
		app.All("/mcp", adaptor.HTTPHandler(handler))
	}

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting chat server", zap.String("listen", s.config.ListenAddr))
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server on an existing listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting chat server", zap.String("listen", listener.Addr().String()))
	return s.server.Listener(listener)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}

// ShutdownWithTimeout is Shutdown bounded by timeout.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	return s.server.ShutdownWithTimeout(timeout)
}

// RouteInfo describes one endpoint in the index.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Name   string      `json:"name"`
	Routes []RouteInfo `json:"routes"`
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	routes := []RouteInfo{
		{Method: "POST", Path: "/chat", Description: `send {"message", "history"}, receive {"reply"}`},
		{Method: "GET", Path: "/health", Description: "liveness check"},
	}
	if !s.config.DisableMCP {
		routes = append(routes, RouteInfo{Method: "POST", Path: "/mcp", Description: "MCP streamable HTTP endpoint with a chat tool"})
	}

	return c.JSON(IndexResponse{Name: "chatrelay", Routes: routes})
}

// handleChat answers one turn. The reply is returned as soon as the provider
// answers; logging the turn happens in the background.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Debug("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	s.logger.Debug("received chat request",
		zap.Int("history_turns", len(req.History)),
		zap.String("message_preview", chat.Truncate(req.Message, 100)),
	)

	resp, err := s.service.Reply(c.UserContext(), req)
	if err != nil {
		status, body := errorResponse(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("chat request failed", zap.Int("status", status), zap.Error(err))
		} else {
			s.logger.Debug("rejected chat request", zap.Int("status", status), zap.Error(err))
		}
		return c.Status(status).JSON(body)
	}

	s.logger.Info("chat request completed",
		zap.String("reply_preview", chat.Truncate(resp.Reply, 100)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(resp)
}

// errorResponse maps a service error to a status and a body that never
// includes provider payloads.
func errorResponse(err error) (int, llm.ErrorResponse) {
	var providerErr *completion.ProviderError
	body := llm.ErrorResponse{Error: chat.ErrorMessage(err)}

	switch {
	case errors.Is(err, completion.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidHistory):
		return fiber.StatusBadRequest, body
	case errors.As(err, &providerErr) && errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, body
	case errors.As(err, &providerErr):
		return fiber.StatusBadGateway, body
	default:
		return fiber.StatusInternalServerError, body
	}
}
