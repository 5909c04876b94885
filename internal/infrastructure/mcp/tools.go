package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/usecases"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question about the codebase"`
	K        int    `json:"k,omitempty" jsonschema:"number of snippets to ground the answer on (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string            `json:"answer"`
	Sources []entities.Source `json:"sources"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"text to find similar code and document chunks for"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Rank    int     `json:"rank"`
	File    string  `json:"file"`
	Kind    string  `json:"kind"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// IndexInput is the (empty) input schema for the index tool.
type IndexInput struct{}

// IndexOutput reports whether a build was started.
type IndexOutput struct {
	Status string `json:"status"`
}

// StatusOutput mirrors the HTTP status endpoint.
type StatusOutput struct {
	IsRunning bool                  `json:"is_running"`
	Status    string                `json:"status"`
	Message   string                `json:"message"`
	Error     string                `json:"error,omitempty"`
	Duration  float64               `json:"duration"`
	Report    *entities.BuildReport `json:"report,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question about the indexed codebase, citing source files",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the code and document chunks most similar to a query",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index",
		Description: "Start a full rebuild of the index in the background",
	}, s.handleIndex)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the state of the latest index build",
	}, s.handleIndexStatus)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return errorResult("question is required"), AskOutput{}, nil
	}
	answer, err := s.query.Answer(ctx, input.Question, input.K)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: answer.Text, Sources: answer.Sources}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query is required"), SearchOutput{}, nil
	}
	results, err := s.query.Search(ctx, input.Query, input.K)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{
			Rank:    r.Rank,
			File:    r.Record.Metadata.Source,
			Kind:    string(r.Record.Metadata.Kind),
			Score:   r.Score,
			Content: usecases.Truncate(r.Record.Text, usecases.DefaultExcerptLen),
		}
	}
	return nil, output, nil
}

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest, _ IndexInput) (*mcp.CallToolResult, IndexOutput, error) {
	return nil, IndexOutput{Status: string(s.indexer.Trigger(ctx))}, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexInput) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.indexer.Status()
	return nil, StatusOutput{
		IsRunning: st.IsRunning(),
		Status:    string(st.State),
		Message:   st.Message,
		Error:     st.Error,
		Duration:  st.Duration.Round(time.Millisecond).Seconds(),
		Report:    st.Report,
	}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
