package sinks

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
)

// MQTTTLSConfig configures an optional TLS transport for the broker
// connection, mirroring the certificate/key file layout used elsewhere in
// this codebase's config tree.
type MQTTTLSConfig struct {
	Enabled    bool
	CACert     string
	ClientCert string
	ClientKey  string
}

// MQTTConfig configures the supplemental MQTT lifecycle sink (SPEC_FULL.md
// §B: a lightweight scan start/stop and shot-summary publication channel,
// additional to the WebSocket and Archive sinks named in spec.md §4.5).
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	TLS      MQTTTLSConfig
}

func generateClientID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "tr-ap-xps_" + hex.EncodeToString(buf)
}

func loadTLSConfig(cfg MQTTTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// MQTTSink publishes scan lifecycle events and per-shot summaries to a
// broker, independent of the WebSocket/Archive sinks (SPEC_FULL.md §B).
type MQTTSink struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

// NewMQTTSink connects to cfg.Broker and returns a ready MQTTSink.
func NewMQTTSink(cfg MQTTConfig, log *slog.Logger) (*MQTTSink, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = generateClientID()
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.TLS.Enabled {
		tlsCfg, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("mqtt tls config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) { log.Info("mqtt connected", "broker", cfg.Broker) })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { log.Warn("mqtt connection lost", "error", err) })

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "tr-ap-xps/scans"
	}
	return &MQTTSink{client: client, topic: topic, log: log}, nil
}

type lifecyclePayload struct {
	Event       string    `json:"event"`
	ScanName    string    `json:"scan_name,omitempty"`
	FrameNumber int       `json:"frame_number,omitempty"`
	NShots      int       `json:"n_shots,omitempty"`
	ShotRecent  []float64 `json:"shot_recent,omitempty"`
}

func (m *MQTTSink) publish(sub string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		m.log.Error("mqtt payload marshal failed", "error", err)
		return
	}
	token := m.client.Publish(m.topic+"/"+sub, 0, false, body)
	token.WaitTimeout(2 * time.Second)
}

// Deliver implements publisher.Sink.
func (m *MQTTSink) Deliver(msg pipeline.Message) {
	switch {
	case msg.Start != nil:
		m.publish("lifecycle", lifecyclePayload{Event: "start", ScanName: msg.Start.ScanName})
	case msg.Result != nil:
		m.deliverResult(msg.Result)
	case msg.Stop != nil:
		m.publish("lifecycle", lifecyclePayload{Event: "stop", ScanName: msg.Stop.ScanName})
	}
}

func (m *MQTTSink) deliverResult(r *processor.Result) {
	m.publish("shots", lifecyclePayload{Event: "shot", FrameNumber: r.FrameNumber, NShots: r.NShots, ShotRecent: r.ShotRecent})
}

// Disconnect closes the broker connection.
func (m *MQTTSink) Disconnect() {
	m.client.Disconnect(250)
}
