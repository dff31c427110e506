// Package mcpserver exposes read-only introspection tools over the Model
// Context Protocol: current scan status, the most recent PeakTable and the
// last scan's timing summary (SPEC_FULL.md §B.1).
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
)

// Snapshot is the most recent pipeline state the MCP tools read from. A
// Server holds exactly one, overwritten under lock as messages flow
// through the pipeline (Server.Deliver).
type Snapshot struct {
	ScanName    string
	Active      bool
	FrameNumber int
	NShots      int
	PeakTable   processor.Result
	LastTiming  []processor.TimingRow
}

// Server wraps an mcp-go MCPServer with the pipeline's introspection tools.
type Server struct {
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Server with its tools registered.
func New() *Server {
	s := &Server{}
	s.mcpServer = server.NewMCPServer("tr-ap-xps", "1.0.0", server.WithToolCapabilities(true))
	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// HTTPServer returns the http.Handler-compatible MCP transport for mounting
// under the composition root's mux.
func (s *Server) HTTPServer() *server.StreamableHTTPServer { return s.httpServer }

// Deliver implements publisher.Sink, letting the MCP server track pipeline
// state passively alongside the WebSocket and Archive sinks.
func (s *Server) Deliver(msg pipeline.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case msg.Start != nil:
		s.snap = Snapshot{ScanName: msg.Start.ScanName, Active: true}
	case msg.Result != nil:
		s.snap.FrameNumber = msg.Result.FrameNumber
		s.snap.NShots = msg.Result.NShots
		s.snap.PeakTable = *msg.Result
	case msg.Stop != nil:
		s.snap.Active = false
		s.snap.LastTiming = msg.Stop.Timing
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_scan_status",
			mcp.WithDescription("Get whether a scan is currently active, its name, frame number and shot count."),
		),
		s.handleGetScanStatus,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_latest_peaks",
			mcp.WithDescription("Get the PeakTable (index, amplitude, FWHM) computed for the most recent shot boundary."),
		),
		s.handleGetLatestPeaks,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_timing_summary",
			mcp.WithDescription("Get the per-stage wall-clock timing table accumulated over the most recently completed scan."),
		),
		s.handleGetTimingSummary,
	)
}

func (s *Server) handleGetScanStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := struct {
		ScanName    string `json:"scan_name"`
		Active      bool   `json:"active"`
		FrameNumber int    `json:"frame_number"`
		NShots      int    `json:"n_shots"`
	}{s.snap.ScanName, s.snap.Active, s.snap.FrameNumber, s.snap.NShots}

	body, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal scan status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleGetLatestPeaks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.snap.Active {
		return mcp.NewToolResultError("no active scan"), nil
	}
	body, err := json.MarshalIndent(s.snap.PeakTable.PeakTable, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal peak table: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleGetTimingSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snap.LastTiming) == 0 {
		return mcp.NewToolResultError("no timing table available yet"), nil
	}
	body, err := json.MarshalIndent(s.snap.LastTiming, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal timing table: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
