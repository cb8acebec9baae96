package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentic-research/tagnav/internal/session"
)

const maxSteps = 1000

type frame struct {
	Query string   `json:"query"`
	URL   string   `json:"url"`
	Refs  []string `json:"refs"`
}

type stepResult struct {
	Frames []frame       `json:"frames"`
	View   *session.View `json:"view"`
}

type dimension struct {
	Depth int      `json:"depth"`
	Name  string   `json:"name"`
	Keys  []string `json:"keys"`
}

func (s *Server) handleResolveSelection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sess.View())
}

func (s *Server) handleSelectValue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: value"), nil
	}
	depth, err := request.RequireInt("depth")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: depth"), nil
	}

	sess, err := s.session(request.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.SelectValue(depth, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sess.View())
}

func (s *Server) handleStepAnimation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetInt("dir", 1)
	count := request.GetInt("count", 1)
	if count < 1 || count > maxSteps {
		return mcp.NewToolResultError(fmt.Sprintf("count must be between 1 and %d", maxSteps)), nil
	}

	sess, err := s.session(request.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var res stepResult
	for range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		moved, err := sess.Step(dir)
		if errors.Is(err, session.ErrNoAnimation) {
			return mcp.NewToolResultError("this page has no animated dimension"), nil
		}
		if err != nil {
			return nil, err
		}
		if !moved {
			break
		}
		f := frame{Query: sess.Query(), URL: sess.URL(""), Refs: []string{}}
		if p := sess.Result().Payload; !p.Empty() {
			f.Refs = p.Refs
		}
		res.Frames = append(res.Frames, f)
	}
	v := sess.View()
	res.View = &v
	return jsonResult(res)
}

func (s *Server) handleListDimensions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := session.Keys(s.page, s.tree)
	dims := make([]dimension, len(s.page.Dimensions))
	for d, dim := range s.page.Dimensions {
		dims[d] = dimension{Depth: d, Name: dim.Name, Keys: keys[d]}
	}
	return jsonResult(dims)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
