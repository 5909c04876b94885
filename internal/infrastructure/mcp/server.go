// Package mcp exposes the index to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Querier answers and searches over the index.
type Querier interface {
	Answer(ctx context.Context, question string, k int) (*entities.Answer, error)
	Search(ctx context.Context, question string, k int) ([]entities.QueryResult, error)
}

// Indexer starts background builds and reports their status.
type Indexer interface {
	Trigger(ctx context.Context) entities.TriggerResult
	Status() entities.BuildStatus
}

// Server is the MCP server for coderag.
type Server struct {
	query   Querier
	indexer Indexer
	server  *mcp.Server
}

// NewServer creates an MCP server with all tools registered.
func NewServer(query Querier, indexer Indexer) (*Server, error) {
	if query == nil || indexer == nil {
		return nil, errors.New("mcp: query and indexer are required")
	}

	s := &Server{
		query:   query,
		indexer: indexer,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "coderag",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over transport; used with in-memory transports.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
