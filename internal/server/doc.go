// Package server implements the MCP (Model Context Protocol) server for the
// detection tools.
//
// This package provides a JSON-RPC 2.0 server that exposes the detection
// pipeline through the MCP protocol, so MCP clients can run detections,
// compare images and browse earlier runs.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - detect_objects: detect, annotate and mask one image
//   - compare_images: run detect_objects on two images and diff the summaries
//   - list_models: registered model variants and their default thresholds
//   - detection_history: recent runs, comparisons or labels, or delete a run (needs DETECT_HISTORY_DB)
//   - image_load: image metadata
//
// detect_objects and compare_images write their artifacts to the configured
// output directory and return the paths together with the summaries.
// Thresholds that are not given fall back to the model's defaults.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, which names the failing pipeline stage
//
// # Usage
//
//	a, err := app.New(cfg, log)
//	...
//	srv := server.New(a)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
