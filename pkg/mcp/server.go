// Package mcp exposes the gateway to LLM assistants as MCP tools over
// stdio. Tool calls are forwarded to the daemon's HTTP API.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Server wraps the MCP server with Zigman's gateway tools
type Server struct {
	mcpServer *server.MCPServer
	client    *Client
	log       zerolog.Logger
}

// NewServer creates a new MCP server backed by the gateway HTTP API
func NewServer(client *Client, log zerolog.Logger) *Server {
	s := &Server{
		client: client,
		log:    log.With().Str("component", "mcp").Logger(),
	}

	// Create MCP server
	s.mcpServer = server.NewMCPServer(
		"zigman",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register all tools
	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
