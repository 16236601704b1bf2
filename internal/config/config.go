// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/mhistat/pkg/mhiac"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MHIACConfig enables the driver and its RPC surface
type MHIACConfig struct {
	Enable    bool `mapstructure:"enable"`
	RPCEnable bool `mapstructure:"rpc_enable"`
	// Header is the downlink header as hex, e.g. "a90007"
	Header string `mapstructure:"header"`
	// ExpectedHeader, if set, is the only uplink header accepted
	ExpectedHeader string `mapstructure:"expected_header"`
}

// SerialConfig selects a serial bridge to the indoor unit
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// WebSocketConfig selects a WebSocket bridge
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// LinkConfig tunes the frame exchange loop
type LinkConfig struct {
	ReadBuffer   int           `mapstructure:"read_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Reply answers every uplink frame with the current downlink frame
	Reply        bool          `mapstructure:"reply"`
	FrameTimeout time.Duration `mapstructure:"frame_timeout"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

// HTTPConfig configures the RPC and metrics server
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// RateLimit is SetParams calls per second, 0 disables limiting
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// LumberjackConfig configures rolling log files
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig exposes Prometheus metrics
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// MQTTConfig configures the MQTT bridge
type MQTTConfig struct {
	Enable          bool          `mapstructure:"enable"`
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client_id"`
	Topic           string        `mapstructure:"topic"`
	QoS             byte          `mapstructure:"qos"`
	PublishInterval time.Duration `mapstructure:"publish_interval"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
}

// CaptureConfig records exchanged frames to a file
type CaptureConfig struct {
	File string `mapstructure:"file"`
}

// Config is the full mhistat configuration
type Config struct {
	MHIAC     MHIACConfig     `mapstructure:"mhiac"`
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Link      LinkConfig      `mapstructure:"link"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

// flagKeys maps persistent command-line flags onto configuration keys
var flagKeys = map[string]string{
	"port":          "serial.port",
	"baud":          "serial.baud",
	"url":           "websocket.url",
	"username":      "websocket.username",
	"no-ssl-verify": "websocket.no_ssl_verify",
	"log-level":     "logging.level",
}

// Load reads configuration from defaults, an optional YAML file, MHISTAT_
// environment variables and finally any flags that were set.
// A missing config file is not an error unless path names it explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("MHISTAT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mhistat")
		v.SetConfigName("mhistat")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("MHISTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mhiac.enable", true)
	v.SetDefault("mhiac.rpc_enable", true)
	v.SetDefault("mhiac.header", "")
	v.SetDefault("mhiac.expected_header", "")

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.no_ssl_verify", false)

	v.SetDefault("link.read_buffer", 128)
	v.SetDefault("link.write_timeout", time.Second)
	v.SetDefault("link.reply", true)
	v.SetDefault("link.frame_timeout", 5*time.Second)
	v.SetDefault("link.reconnect_min", time.Second)
	v.SetDefault("link.reconnect_max", 30*time.Second)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", 5*time.Second)
	v.SetDefault("http.writeTimeout", 5*time.Second)
	v.SetDefault("http.rate_limit", 5.0)
	v.SetDefault("http.burst", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "mhistat")
	v.SetDefault("mqtt.topic", "mhistat")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.publish_interval", 30*time.Second)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("capture.file", "")
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Link.ReadBuffer <= 0 {
		return fmt.Errorf("link.read_buffer must be positive, got %d", c.Link.ReadBuffer)
	}
	if c.Link.ReconnectMin > c.Link.ReconnectMax {
		return fmt.Errorf("link.reconnect_min %s exceeds link.reconnect_max %s", c.Link.ReconnectMin, c.Link.ReconnectMax)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if c.MQTT.Enable && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is set")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := c.MHIAC.DownlinkHeader(); err != nil {
		return err
	}
	if _, err := c.MHIAC.UplinkHeader(); err != nil {
		return err
	}
	return nil
}

// DownlinkHeader parses Header. An empty value is an all-zero header.
func (m MHIACConfig) DownlinkHeader() ([mhiac.HeaderSize]byte, error) {
	var h [mhiac.HeaderSize]byte
	if m.Header == "" {
		return h, nil
	}
	b, err := parseHeader("mhiac.header", m.Header)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// UplinkHeader parses ExpectedHeader; nil means any header is accepted
func (m MHIACConfig) UplinkHeader() (*[mhiac.HeaderSize]byte, error) {
	if m.ExpectedHeader == "" {
		return nil, nil
	}
	b, err := parseHeader("mhiac.expected_header", m.ExpectedHeader)
	if err != nil {
		return nil, err
	}
	var h [mhiac.HeaderSize]byte
	copy(h[:], b)
	return &h, nil
}

func parseHeader(key, s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(b) != mhiac.HeaderSize {
		return nil, fmt.Errorf("%s: want %d bytes, got %d", key, mhiac.HeaderSize, len(b))
	}
	return b, nil
}
