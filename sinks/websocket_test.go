package sinks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/als-computing/tr-ap-xps/peakfit"
	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/wire"
)

func dialTestSink(t *testing.T, sink *WebSocketSink) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(sink.HandleUpgrade))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() { conn.Close(); srv.Close() }
}

func TestWebSocketSinkBroadcastsStartAsJSON(t *testing.T) {
	sink := NewWebSocketSink(nil)
	conn, cleanup := dialTestSink(t, sink)
	defer cleanup()

	time.Sleep(20 * time.Millisecond) // let HandleUpgrade register the client
	sink.Deliver(pipeline.Message{Start: &wire.ScanStart{ScanName: "scan-1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("kind = %d, want TextMessage", kind)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["scan_name"] != "scan-1" {
		t.Fatalf("got %+v, want scan_name=scan-1", got)
	}
}

func TestWebSocketSinkBroadcastsResultAsTwoFrames(t *testing.T) {
	sink := NewWebSocketSink(nil)
	conn, cleanup := dialTestSink(t, sink)
	defer cleanup()

	time.Sleep(20 * time.Millisecond)
	sink.Deliver(pipeline.Message{Result: &processor.Result{
		FrameNumber:     5,
		IntegratedStack: [][]float64{{1, 2}, {3, 4}},
		VFFT:            [][]float64{{1, 1}, {1, 1}},
		IFFT:            [][]float64{{1, 1}, {1, 1}},
		PeakTable:       peakfit.Table{{Index: 1, Amplitude: 10, FWHM: 2}},
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("first ReadMessage: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("first frame kind = %d, want TextMessage", kind)
	}
	var notice struct {
		FrameNumber int `json:"frame_number"`
	}
	if err := json.Unmarshal(data, &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if notice.FrameNumber != 5 {
		t.Fatalf("frame_number = %d, want 5", notice.FrameNumber)
	}

	kind, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("second ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("second frame kind = %d, want BinaryMessage", kind)
	}
	var envelope struct {
		Width  int `msgpack:"width"`
		Height int `msgpack:"height"`
	}
	if err := msgpack.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	if envelope.Height != 2 || envelope.Width != 2 {
		t.Fatalf("envelope = %+v, want 2x2", envelope)
	}
}

func TestWebSocketSinkIgnoresStop(t *testing.T) {
	sink := NewWebSocketSink(nil)
	sink.Deliver(pipeline.Message{Stop: &pipeline.ResultStop{ScanName: "scan-1"}})
	// No panic, no broadcast target required: Stop is a no-op per spec.md §4.5.
}
