package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/wire"
)

func TestGetScanStatusBeforeAnyScan(t *testing.T) {
	s := New()
	res, err := s.handleGetScanStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("expected a non-nil result")
	}
	if !s.snap.Active && s.snap.ScanName != "" {
		t.Fatalf("expected an empty scan name before any scan starts, got %q", s.snap.ScanName)
	}
}

func TestDeliverUpdatesSnapshotAcrossLifecycle(t *testing.T) {
	s := New()
	s.Deliver(pipeline.Message{Start: &wire.ScanStart{ScanName: "scan-1"}})
	if !s.snap.Active || s.snap.ScanName != "scan-1" {
		t.Fatalf("snapshot after Start = %+v", s.snap)
	}

	s.Deliver(pipeline.Message{Result: &processor.Result{FrameNumber: 3, NShots: 2}})
	if s.snap.FrameNumber != 3 || s.snap.NShots != 2 {
		t.Fatalf("snapshot after Result = %+v", s.snap)
	}

	s.Deliver(pipeline.Message{Stop: &pipeline.ResultStop{
		ScanName: "scan-1",
		Timing:   []processor.TimingRow{{"integrate": 0.001}},
	}})
	if s.snap.Active {
		t.Fatal("expected Active=false after Stop")
	}
	if len(s.snap.LastTiming) != 1 {
		t.Fatalf("expected LastTiming to carry the stop's timing table, got %+v", s.snap.LastTiming)
	}
}

func TestHandlersReturnResultsForEveryLifecycleStage(t *testing.T) {
	s := New()

	if _, err := s.handleGetLatestPeaks(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handleGetLatestPeaks before any scan: %v", err)
	}
	if _, err := s.handleGetTimingSummary(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handleGetTimingSummary before any scan: %v", err)
	}

	s.Deliver(pipeline.Message{Start: &wire.ScanStart{ScanName: "scan-1"}})
	s.Deliver(pipeline.Message{Result: &processor.Result{FrameNumber: 1}})
	if _, err := s.handleGetLatestPeaks(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handleGetLatestPeaks during an active scan: %v", err)
	}

	s.Deliver(pipeline.Message{Stop: &pipeline.ResultStop{ScanName: "scan-1", Timing: []processor.TimingRow{{"x": 1}}}})
	if _, err := s.handleGetTimingSummary(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handleGetTimingSummary after stop: %v", err)
	}
}
