package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/als-computing/tr-ap-xps/peakfit"
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/sinks"
)

// Config is the top-level application configuration (spec.md §6 "CLI and
// configuration": source address/port, WebSocket host/port, archive
// endpoint and credential, log level, publisher queue capacity, FFT
// repeat_factor, FFT width, peak count K, peak shape).
type Config struct {
	Listener   ListenerConfig   `yaml:"listener"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Archive    ArchiveConfig    `yaml:"archive"`
	MQTT       MQTTYAMLConfig   `yaml:"mqtt"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MCP        MCPConfig        `yaml:"mcp"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ListenerConfig is the inbound detector wire connection (spec.md §7
// "Inbound wire protocol").
type ListenerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// ProcessorConfig configures the per-scan numerical pipeline.
type ProcessorConfig struct {
	PeakK        int    `yaml:"peak_k"`
	PeakShape    string `yaml:"peak_shape"` // "gaussian" or "voigt"
	RepeatFactor int    `yaml:"repeat_factor"`
	Width        int    `yaml:"width"`
}

// shape parses PeakShape into a peakfit.Shape, defaulting to Gaussian.
func (c ProcessorConfig) shape() peakfit.Shape {
	if c.PeakShape == "voigt" {
		return peakfit.ShapeVoigt
	}
	return peakfit.ShapeGaussian
}

// toOptions builds processor.Options from configuration. FReset comes from
// the detector's own ScanStart message (spec.md §7 "F_Reset"), not from
// static configuration, so it is supplied separately per scan.
func (c ProcessorConfig) toOptions(fReset int) processor.Options {
	return processor.Options{
		FReset:       fReset,
		PeakK:        c.PeakK,
		PeakShape:    c.shape(),
		RepeatFactor: c.RepeatFactor,
		Width:        c.Width,
	}
}

// PublisherConfig configures the per-sink fan-out queue capacity (spec.md
// §4.4 "Per-publisher bounded queue with a published capacity").
type PublisherConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// WebSocketConfig configures the live-visualization sink's listener.
type WebSocketConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// ArchiveConfig configures the HTTP archive sink.
type ArchiveConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Credential  string `yaml:"credential"`
	WorkerCount int    `yaml:"worker_count"`
}

// MQTTYAMLConfig is the yaml-tagged mirror of sinks.MQTTConfig (kept
// separate so the sinks package has no yaml dependency of its own).
type MQTTYAMLConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Broker   string      `yaml:"broker"`
	ClientID string      `yaml:"client_id"`
	Username string      `yaml:"username"`
	Password string      `yaml:"password"`
	Topic    string      `yaml:"topic"`
	TLS      MQTTTLSYAML `yaml:"tls"`
}

// MQTTTLSYAML mirrors sinks.MQTTTLSConfig for yaml decoding.
type MQTTTLSYAML struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

func (c MQTTYAMLConfig) toSinksConfig() sinks.MQTTConfig {
	return sinks.MQTTConfig{
		Broker:   c.Broker,
		ClientID: c.ClientID,
		Username: c.Username,
		Password: c.Password,
		Topic:    c.Topic,
		TLS: sinks.MQTTTLSConfig{
			Enabled:    c.TLS.Enabled,
			CACert:     c.TLS.CACert,
			ClientCert: c.TLS.ClientCert,
			ClientKey:  c.TLS.ClientKey,
		},
	}
}

// PrometheusConfig controls the metrics HTTP listener.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MCPConfig controls the introspection MCP server's HTTP mount.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// LoadConfig reads and validates a YAML configuration file, filling in
// defaults for anything left unset.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Listener.Port == 0 {
		c.Listener.Port = 5555
	}
	if c.Processor.PeakK == 0 {
		c.Processor.PeakK = peakfit.DefaultK
	}
	if c.Processor.RepeatFactor == 0 {
		c.Processor.RepeatFactor = 25
	}
	if c.Publisher.QueueCapacity == 0 {
		c.Publisher.QueueCapacity = 64
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = "/simImages"
	}
	if c.WebSocket.Port == 0 {
		c.WebSocket.Port = 8765
	}
	if c.Archive.WorkerCount == 0 {
		c.Archive.WorkerCount = 4
	}
	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9090
	}
	if c.MCP.Port == 0 {
		c.MCP.Port = 9091
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Listener.Address == "" {
		return fmt.Errorf("listener.address must be set")
	}
	if c.Listener.Port <= 0 {
		return fmt.Errorf("listener.port must be positive")
	}
	if c.Processor.PeakK <= 0 {
		return fmt.Errorf("processor.peak_k must be positive")
	}
	if c.Processor.PeakShape != "" && c.Processor.PeakShape != "gaussian" && c.Processor.PeakShape != "voigt" {
		return fmt.Errorf("processor.peak_shape must be 'gaussian' or 'voigt'")
	}
	if c.Publisher.QueueCapacity <= 0 {
		return fmt.Errorf("publisher.queue_capacity must be positive")
	}
	if c.Archive.Endpoint != "" && c.Archive.WorkerCount <= 0 {
		return fmt.Errorf("archive.worker_count must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt.enabled is true")
	}
	return nil
}
