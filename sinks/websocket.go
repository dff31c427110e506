// Package sinks implements the WebSocket live-visualization sink, the HTTP
// archive sink and the supplemental MQTT lifecycle sink (spec.md §4.5).
package sinks

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ua-parser/uap-go/uaparser"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    8192,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// wsFrame is one queued outbound frame: a gorilla/websocket message type
// plus its payload.
type wsFrame struct {
	kind int
	data []byte
}

// wsClient wraps one connected client with a dedicated writer goroutine, so
// a slow client never blocks the broadcast to the rest of the set.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	send    chan wsFrame
	done    chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan wsFrame, 8), done: make(chan struct{})}
	go c.writeLoop()
	return c
}

func (c *wsClient) writeLoop() {
	defer close(c.done)
	for frame := range c.send {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := c.conn.WriteMessage(frame.kind, frame.data)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// offer is a non-blocking send; a full queue means the client is too slow
// and gets dropped by the caller (spec.md §4.5 "send failures drop the
// offending client").
func (c *wsClient) offer(frame wsFrame) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	close(c.send)
	<-c.done
	c.conn.Close()
}

// resultEnvelope is the self-describing map sent per Result (spec.md §4.5
// "Outbound to WebSocket clients": keys raw, vfft, ifft, width, height,
// fitted).
type resultEnvelope struct {
	Raw    []byte       `msgpack:"raw"`
	VFFT   []byte       `msgpack:"vfft"`
	IFFT   []byte       `msgpack:"ifft"`
	Width  int          `msgpack:"width"`
	Height int          `msgpack:"height"`
	Fitted []fittedPeak `msgpack:"fitted"`
}

type fittedPeak struct {
	X    int     `msgpack:"x"`
	H    float64 `msgpack:"h"`
	FWHM float64 `msgpack:"fwhm"`
}

// WebSocketSink broadcasts scan lifecycle and Result messages to every
// connected live-visualization client on a single endpoint path (spec.md
// §4.5 "WebSocket sink").
type WebSocketSink struct {
	log    *slog.Logger
	parser *uaparser.Parser

	mu      sync.Mutex
	clients map[string]*wsClient
}

// NewWebSocketSink creates an empty WebSocketSink. parser may be nil; it is
// only used to log a friendlier client description on connect.
func NewWebSocketSink(log *slog.Logger) *WebSocketSink {
	if log == nil {
		log = slog.Default()
	}
	parser, err := uaparser.New("")
	if err != nil {
		parser = nil
	}
	return &WebSocketSink{log: log, parser: parser, clients: make(map[string]*wsClient)}
}

// HandleUpgrade is the net/http handler for the /simImages endpoint
// (spec.md §7 "Outbound to WebSocket clients"). No client->server message
// is ever interpreted.
func (w *WebSocketSink) HandleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := newWSClient(conn)

	w.mu.Lock()
	w.clients[client.id] = client
	w.mu.Unlock()

	ua := r.UserAgent()
	if w.parser != nil && ua != "" {
		client2 := w.parser.Parse(ua)
		w.log.Info("websocket client connected", "client_id", client.id, "browser", client2.UserAgent.Family, "os", client2.Os.Family)
	} else {
		w.log.Info("websocket client connected", "client_id", client.id)
	}

	// No inbound protocol: block on reads purely to detect client
	// disconnects, discarding whatever arrives.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	w.mu.Lock()
	delete(w.clients, client.id)
	w.mu.Unlock()
	client.close()
	w.log.Info("websocket client disconnected", "client_id", client.id)
}

// Deliver implements publisher.Sink.
func (w *WebSocketSink) Deliver(msg pipeline.Message) {
	switch {
	case msg.Start != nil:
		w.broadcastJSON(msg.Start)
	case msg.Result != nil:
		w.deliverResult(msg.Result)
	case msg.Stop != nil:
		// spec.md §4.5 "On ResultStop: no action."
	}
}

func (w *WebSocketSink) deliverResult(r *processor.Result) {
	w.broadcastJSON(struct {
		FrameNumber int `json:"frame_number"`
	}{r.FrameNumber})

	height := len(r.IntegratedStack)
	width := 0
	if height > 0 {
		width = len(r.IntegratedStack[0])
	}

	fitted := make([]fittedPeak, len(r.PeakTable))
	for i, p := range r.PeakTable {
		fitted[i] = fittedPeak{X: p.Index, H: p.Amplitude, FWHM: p.FWHM}
	}

	envelope := resultEnvelope{
		Raw:    logStretchU8(r.IntegratedStack),
		VFFT:   logStretchU8(r.VFFT),
		IFFT:   logStretchU8(r.IFFT),
		Width:  width,
		Height: height,
		Fitted: fitted,
	}
	payload, err := msgpack.Marshal(envelope)
	if err != nil {
		w.log.Error("marshal websocket result envelope failed", "error", err)
		return
	}
	w.broadcast(wsFrame{kind: websocket.BinaryMessage, data: payload})
}

func (w *WebSocketSink) broadcastJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		w.log.Error("marshal websocket json payload failed", "error", err)
		return
	}
	w.broadcast(wsFrame{kind: websocket.TextMessage, data: payload})
}

func (w *WebSocketSink) broadcast(frame wsFrame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		if !client.offer(frame) {
			w.log.Warn("dropping slow websocket client", "client_id", id)
			delete(w.clients, id)
			go client.close()
		}
	}
}
