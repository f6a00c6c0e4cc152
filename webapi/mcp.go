package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tushrpal/instagram-follower-analyzer/analyze"
	"github.com/tushrpal/instagram-follower-analyzer/store"
)

// RegisterMCP registers the query layer as MCP tools on srv, so agent
// clients can inspect analysis results without going through HTTP.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerLatestTool(srv)
	s.registerContactsTool(srv)
	s.registerGrowthTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// registerTool adapts a typed endpoint into an MCP tool handler: decode the
// JSON arguments, run the endpoint, marshal the response as text content.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &in)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- sessions_latest ---

type latestReq struct{}

func (s *Server) registerLatestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sessions_latest",
		Description: "Return the latest analysis session summary (counts per category, totals).",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, _ *latestReq) (any, error) {
		id, err := s.store.LatestSessionID(ctx)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, store.ErrSessionNotFound
		}
		return s.store.GetSession(ctx, id)
	})
}

// --- contacts_list ---

type contactsReq struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
	Search    string `json:"search,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) registerContactsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_list",
		Description: "List a session's categorized contacts (mutual, followers_only, following_only, pending) with pagination and handle search.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session id"},
			"category":   map[string]any{"type": "string", "description": "mutual | followers_only | following_only | pending"},
			"search":     map[string]any{"type": "string", "description": "Substring match on handle"},
			"page":       map[string]any{"type": "integer", "description": "1-based page (default 1)"},
			"limit":      map[string]any{"type": "integer", "description": "Page size 1-100 (default 20)"},
		}, []string{"session_id", "category"}),
	}
	registerTool(srv, tool, func(ctx context.Context, in *contactsReq) (any, error) {
		cat, err := store.ParseCategory(in.Category)
		if err != nil {
			return nil, err
		}
		page, limit := in.Page, in.Limit
		if page == 0 {
			page = 1
		}
		if limit == 0 {
			limit = 20
		}
		return s.store.ListContacts(ctx, in.SessionID, cat, in.Search, page, limit)
	})
}

// --- growth_stats ---

type growthReq struct {
	SessionID string `json:"session_id"`
}

func (s *Server) registerGrowthTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "growth_stats",
		Description: "Windowed net growth (day, week, month, all-time) for a session's timeline.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session id"},
		}, []string{"session_id"}),
	}
	registerTool(srv, tool, func(ctx context.Context, in *growthReq) (any, error) {
		if _, err := s.store.GetSession(ctx, in.SessionID); err != nil {
			return nil, err
		}
		events, err := s.store.Timeline(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		return analyze.Growth(events, time.Now()), nil
	})
}
