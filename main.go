package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/als-computing/tr-ap-xps/metrics"
	"github.com/als-computing/tr-ap-xps/operator"
	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/publisher"
	"github.com/als-computing/tr-ap-xps/sinks"
	"github.com/als-computing/tr-ap-xps/wire"
	"github.com/als-computing/tr-ap-xps/mcpserver"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	config, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(config.Logging)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	sampleStop := make(chan struct{})
	go m.StartProcessSampler(5*time.Second, sampleStop)
	defer close(sampleStop)

	fanOut := publisher.New(log)

	wsSink := sinks.NewWebSocketSink(log)
	fanOut.Register("websocket", wsSink, config.Publisher.QueueCapacity)

	if config.Archive.Endpoint != "" {
		archiveSink := sinks.NewArchiveSink(config.Archive.Endpoint, config.Archive.Credential, config.Archive.WorkerCount, log)
		fanOut.Register("archive", archiveSink, config.Publisher.QueueCapacity)
		defer archiveSink.Close()
	}

	if config.MQTT.Enabled {
		mqttSink, err := sinks.NewMQTTSink(config.MQTT.toSinksConfig(), log)
		if err != nil {
			log.Error("mqtt sink unavailable, continuing without it", "error", err)
		} else {
			fanOut.Register("mqtt", mqttSink, config.Publisher.QueueCapacity)
			defer mqttSink.Disconnect()
		}
	}

	var mcp *mcpserver.Server
	if config.MCP.Enabled {
		mcp = mcpserver.New()
		fanOut.Register("mcp", mcp, config.Publisher.QueueCapacity)
	}

	// toOptions(0) leaves FReset unset here; the Operator overrides it
	// per scan from each ScanStart's own F_Reset field (spec.md §7).
	op := operator.New(fanOut, config.Processor.toOptions(0), log)
	events := make(chan wire.Message, 64)
	go op.Run(events)

	go serveWebSocket(config, wsSink, log)
	if config.Prometheus.Enabled {
		go servePrometheus(config, log)
	}
	if mcp != nil {
		go serveMCP(config, mcp, log)
	}

	go runDecoder(ctx, config, events, m, log)

	<-ctx.Done()
	log.Info("shutting down")
	close(events)
}

func newLogger(cfg LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// runDecoder dials the detector's wire stream and feeds decoded messages to
// the Operator (spec.md §5 "The Decoder is a single task reading one socket
// sequentially"). The stream is read as raw TCP carrying 4-byte
// length-prefixed frames (wire.LengthPrefixedReader), not over ZMQ. When an
// established connection fails or closes it redials; a failed dial ends
// the decoder.
func runDecoder(ctx context.Context, config *Config, out chan<- wire.Message, m *metrics.Metrics, log *slog.Logger) {
	addr := net.JoinHostPort(config.Listener.Address, fmt.Sprintf("%d", config.Listener.Port))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Error("decoder dial failed", "addr", addr, "error", err)
			return
		}

		dec := wire.NewDecoder(wire.NewLengthPrefixedReader(conn))
		for {
			msg, err := dec.Next()
			if err != nil {
				log.Warn("decoder socket closed", "error", err)
				break
			}
			if msg.Start != nil {
				m.ScanStarted()
			}
			if msg.Stop != nil {
				m.ScanStopped()
			}
			if msg.Event != nil {
				m.FrameDecoded()
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
		conn.Close()
	}
}

func serveWebSocket(config *Config, sink *sinks.WebSocketSink, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc(config.WebSocket.Path, sink.HandleUpgrade)
	addr := net.JoinHostPort(config.WebSocket.Host, fmt.Sprintf("%d", config.WebSocket.Port))
	log.Info("websocket sink listening", "addr", addr, "path", config.WebSocket.Path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("websocket listener stopped", "error", err)
	}
}

func servePrometheus(config *Config, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := net.JoinHostPort(config.Prometheus.Host, fmt.Sprintf("%d", config.Prometheus.Port))
	log.Info("prometheus metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("prometheus listener stopped", "error", err)
	}
}

func serveMCP(config *Config, srv *mcpserver.Server, log *slog.Logger) {
	addr := net.JoinHostPort(config.MCP.Host, fmt.Sprintf("%d", config.MCP.Port))
	log.Info("mcp server listening", "addr", addr)
	if err := http.ListenAndServe(addr, srv.HTTPServer()); err != nil {
		log.Error("mcp listener stopped", "error", err)
	}
}

var _ pipeline.Publisher = (*publisher.FanOut)(nil)
