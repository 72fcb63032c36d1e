// Package mcp exposes the search pipeline as an MCP tool over streamable HTTP.
package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ToolName = "search_uk_gov_code"

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
}

// NewServer creates the MCP server and registers the search tool.
func NewServer(cfg ServerConfig, handler *SearchTool) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name: ToolName,
		Description: "Semantic search over UK government source repositories. " +
			"Returns ranked repositories with a matching snippet, language, last update and GitHub links.",
	}, handler.Handle)

	return s
}

// NewHTTPHandler serves the MCP server using the stateless Streamable HTTP transport.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}
