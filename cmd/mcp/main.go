package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/zigman/pkg/mcp"
)

func main() {
	// Logging must go to stderr — stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	gatewayURL := flag.String("gateway", "", "Base URL of the Zigman gateway API (default: http://127.0.0.1:8080, or ZIGMAN_URL)")
	flag.Parse()

	baseURL := *gatewayURL
	if baseURL == "" {
		baseURL = os.Getenv("ZIGMAN_URL")
	}
	if baseURL == "" {
		baseURL = mcp.DefaultBaseURL
	}

	client := mcp.NewClient(baseURL)

	// Create and start MCP server
	mcpServer := mcp.NewServer(client, log.Logger)

	log.Info().Str("gateway", baseURL).Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
