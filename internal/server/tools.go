package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func thresholdProperties(props map[string]interface{}) map[string]interface{} {
	props["model"] = map[string]interface{}{
		"type":        "string",
		"description": "Model variant key as reported by list_models (e.g. \"vegetation\", \"soil\")",
	}
	props["confidence_threshold"] = map[string]interface{}{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"description": "Minimum detection confidence. Defaults to the model's default (0.3 for soil, 0.5 otherwise)",
	}
	props["overlap_threshold"] = map[string]interface{}{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"description": "IoU above which overlapping same-label boxes are suppressed. Default 0.5",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Detection
		{
			Name:        "detect_objects",
			Description: "Run object detection on an image. Writes an annotated copy (<name>_detected.jpg) and a translucent mask overlay (<name>_mask.png) to the output directory and returns the detection summary: count, highest confidence, top confidences, class labels and the thresholds used.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": thresholdProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file (png, jpg, jpeg or webp)",
					},
				}),
				"required": []string{"path", "model"},
			},
		},
		{
			Name:        "compare_images",
			Description: "Run the same detection on two images and compare them. Returns both summaries, the detection count delta and highest-confidence delta (second minus first), an interpretation (increased, decreased or equal) and the artifact paths for both images.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": thresholdProperties(map[string]interface{}{
					"path1": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the first image",
					},
					"path2": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the second image",
					},
				}),
				"required": []string{"path1", "path2", "model"},
			},
		},

		// Models
		{
			Name:        "list_models",
			Description: "List the registered detection models with their display names and default thresholds.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// History
		{
			Name:        "detection_history",
			Description: "List recent detection runs or comparisons, newest first. Pass run_id to get one run with its detections, or with kind delete to remove it. Requires DETECT_HISTORY_DB to be set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"runs", "comparisons", "labels", "delete"},
						"description": "What to list, or delete to remove the run given by run_id with its artifacts. Default runs",
						"default":     "runs",
					},
					"model": map[string]interface{}{
						"type":        "string",
						"description": "Only list runs of this model variant",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of records. Default 20",
						"default":     20,
					},
					"run_id": map[string]interface{}{
						"type":        "integer",
						"description": "Return (or with kind delete, remove) this run",
					},
				},
			},
		},

		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and size. Rejects formats the detector cannot read (e.g. avif).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
