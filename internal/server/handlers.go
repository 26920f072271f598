package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detect-tools-mcp/internal/app"
	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/history"
	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

// ErrHistoryDisabled is returned by detection_history when no history
// database is configured.
var ErrHistoryDisabled = app.ErrHistoryDisabled

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "detect_objects").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithFields(logrus.Fields{"tool": params.Name}).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	switch name {
	case "detect_objects":
		return s.handleDetectObjects(ctx, args)
	case "compare_images":
		return s.handleCompareImages(ctx, args)
	case "list_models":
		return s.handleListModels()
	case "detection_history":
		return s.handleDetectionHistory(ctx, args)
	case "image_load":
		return s.handleImageLoad(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Detection Handlers ===

type thresholdArgs struct {
	Model      string   `json:"model"`
	Confidence *float64 `json:"confidence_threshold"`
	Overlap    *float64 `json:"overlap_threshold"`
}

func (s *Server) thresholds(a thresholdArgs) (detection.Thresholds, error) {
	if a.Model == "" {
		return detection.Thresholds{}, errors.New("model is required")
	}
	return s.app.Thresholds(a.Model, a.Confidence, a.Overlap)
}

type detectObjectsArgs struct {
	Path string `json:"path"`
	thresholdArgs
}

func (s *Server) handleDetectObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectObjectsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	th, err := s.thresholds(a.thresholdArgs)
	if err != nil {
		return nil, err
	}
	return s.app.Detect(ctx, a.Path, a.Model, th)
}

type compareImagesArgs struct {
	Path1 string `json:"path1"`
	Path2 string `json:"path2"`
	thresholdArgs
}

func (s *Server) handleCompareImages(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a compareImagesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path1 == "" || a.Path2 == "" {
		return nil, errors.New("path1 and path2 are required")
	}
	th, err := s.thresholds(a.thresholdArgs)
	if err != nil {
		return nil, err
	}
	return s.app.Compare(ctx, a.Path1, a.Path2, a.Model, th)
}

// === Model Handlers ===

type listModelsResult struct {
	Models []detection.Entry `json:"models"`
}

func (s *Server) handleListModels() (interface{}, error) {
	return listModelsResult{Models: s.app.Registry.Entries()}, nil
}

// === History Handlers ===

type detectionHistoryArgs struct {
	Kind  string `json:"kind"`
	Model string `json:"model"`
	Limit int    `json:"limit"`
	RunID int64  `json:"run_id"`
}

type runDetail struct {
	*history.Run
	Detections []detection.Detection `json:"detections"`
}

func (s *Server) handleDetectionHistory(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectionHistoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	store := s.app.History
	if store == nil {
		return nil, ErrHistoryDisabled
	}

	if a.Kind == "delete" {
		if a.RunID == 0 {
			return nil, errors.New("run_id is required to delete a run")
		}
		run, err := s.app.DeleteRun(ctx, a.RunID)
		if err != nil {
			return nil, err
		}
		s.cache.Evict(run.Source)
		return map[string]interface{}{"deleted": run}, nil
	}

	if a.RunID != 0 {
		run, err := store.Run(ctx, a.RunID)
		if err != nil {
			return nil, err
		}
		dets, err := store.Detections(ctx, a.RunID)
		if err != nil {
			return nil, err
		}
		return runDetail{Run: run, Detections: dets}, nil
	}

	switch a.Kind {
	case "", "runs":
		runs, err := store.Runs(ctx, history.Filter{Variant: a.Model, Limit: a.Limit})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"runs": runs}, nil
	case "comparisons":
		comps, err := store.Comparisons(ctx, a.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"comparisons": comps}, nil
	case "labels":
		labels, err := store.Labels(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"labels": labels}, nil
	default:
		return nil, fmt.Errorf("unknown history kind: %s", a.Kind)
	}
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
