package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/devlens/kit"
)

// RegisterMCP registers the triage tools on an MCP server. Tools act as the
// user in the call context, or as the owner of Config.MCPAPIKey.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerListFeedback(srv)
	svc.registerGetFeedback(srv)
	svc.registerUpdateFeedback(srv)
	svc.registerResolveFeedback(srv)
	svc.registerMatchProject(srv)
	svc.registerReport(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// mcpUser resolves the acting user of a tool call.
func (svc *Service) mcpUser(ctx context.Context) (string, error) {
	if id := kit.GetUserID(ctx); id != "" {
		return id, nil
	}
	if svc.cfg.MCPAPIKey == "" {
		return "", errors.New("no user: set an API key for the MCP server")
	}
	id, err := svc.UserIDByKey(ctx, svc.cfg.MCPAPIKey)
	if err != nil {
		return "", fmt.Errorf("resolve API key: %w", err)
	}
	if id == "" {
		return "", errors.New("invalid API key")
	}
	return id, nil
}

func (svc *Service) registerListFeedback(srv *mcp.Server) {
	type req struct {
		ProjectID string `json:"project_id"`
		Status    string `json:"status"`
		Limit     int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_list_feedback",
		Description: "List DevLens bug reports, newest first",
		InputSchema: inputSchema(map[string]any{
			"project_id": map[string]any{"type": "string", "description": "Only reports of this project"},
			"status":     map[string]any{"type": "string", "description": "pending, in_progress, resolved or wont_fix"},
			"limit":      map[string]any{"type": "integer", "description": "Maximum number of reports (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		return svc.ListFeedback(ctx, userID, ListOptions{ProjectID: p.ProjectID, Status: p.Status, Limit: p.Limit})
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[req]())
}

func (svc *Service) registerGetFeedback(srv *mcp.Server) {
	type req struct {
		ID string `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_get_feedback",
		Description: "Get one DevLens bug report with its element, console errors and browser info",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Feedback ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		return svc.GetFeedback(ctx, userID, p.ID)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (svc *Service) registerUpdateFeedback(srv *mcp.Server) {
	type req struct {
		ID             string  `json:"id"`
		Status         *string `json:"status"`
		Priority       *string `json:"priority"`
		ResolutionNote *string `json:"resolution_note"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_update_feedback",
		Description: "Change the status, priority or resolution note of a DevLens bug report",
		InputSchema: inputSchema(map[string]any{
			"id":              map[string]any{"type": "string", "description": "Feedback ID"},
			"status":          map[string]any{"type": "string", "description": "pending, in_progress, resolved or wont_fix"},
			"priority":        map[string]any{"type": "string", "description": "low, medium, high or critical"},
			"resolution_note": map[string]any{"type": "string", "description": "What was done"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		return svc.UpdateFeedback(ctx, userID, p.ID, FeedbackUpdate{
			Status:         p.Status,
			Priority:       p.Priority,
			ResolutionNote: p.ResolutionNote,
		})
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[req]())
}

func (svc *Service) registerResolveFeedback(srv *mcp.Server) {
	type req struct {
		ID   string `json:"id"`
		Note string `json:"note"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_resolve_feedback",
		Description: "Mark a DevLens bug report as resolved",
		InputSchema: inputSchema(map[string]any{
			"id":   map[string]any{"type": "string", "description": "Feedback ID"},
			"note": map[string]any{"type": "string", "description": "Resolution note, e.g. the fixing commit"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		return svc.ResolveFeedback(ctx, userID, p.ID, p.Note)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[req]())
}

func (svc *Service) registerMatchProject(srv *mcp.Server) {
	type req struct {
		URL string `json:"url"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_match_project",
		Description: "Show which project a page URL routes to, and by which domain rule",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		res, ok, err := svc.MatchProject(ctx, userID, p.URL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]any{"matched": false}, nil
		}
		return map[string]any{"matched": true, "match": res}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[req]())
}

func (svc *Service) registerReport(srv *mcp.Server) {
	type req struct {
		ProjectID string `json:"project_id"`
		Status    string `json:"status"`
		Limit     int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "devlens_feedback_report",
		Description: "Markdown digest of DevLens bug reports (pending by default)",
		InputSchema: inputSchema(map[string]any{
			"project_id": map[string]any{"type": "string", "description": "Only reports of this project"},
			"status":     map[string]any{"type": "string", "description": "Status filter (default pending)"},
			"limit":      map[string]any{"type": "integer", "description": "Maximum number of reports (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		userID, err := svc.mcpUser(ctx)
		if err != nil {
			return nil, err
		}
		return svc.Report(ctx, userID, ListOptions{ProjectID: p.ProjectID, Status: p.Status, Limit: p.Limit})
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[req]())
}
