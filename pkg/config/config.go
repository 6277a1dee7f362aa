// Package config provides configuration handling for the tunnel.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/forward"
	"github.com/irctrakz/prototun/pkg/logging"
	"github.com/irctrakz/prototun/pkg/tun"
	"gopkg.in/yaml.v3"
)

// maxIfaceName is IFNAMSIZ minus the terminating NUL.
const maxIfaceName = 15

// Config represents the complete tunnel configuration.
type Config struct {
	// Tunnel contains the TUN device configuration.
	Tunnel core.TunnelConfig `json:"tunnel" yaml:"tunnel"`

	// Transport contains the transport endpoint configuration.
	Transport TransportConfig `json:"transport" yaml:"transport"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics contains the periodic metrics reporter configuration.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Capture contains the frame capture configuration.
	Capture CaptureConfig `json:"capture" yaml:"capture"`
}

// TransportConfig selects the role, address and protocol of the endpoint.
// Exactly one of Server and Client must be set.
type TransportConfig struct {
	// Server is the local host:port to bind.
	Server string `json:"server" yaml:"server"`

	// Client is the remote host:port to connect to.
	Client string `json:"client" yaml:"client"`

	// TCP selects TCP instead of UDP.
	TCP bool `json:"tcp" yaml:"tcp"`

	// FailurePolicy is "wait" or "cancel".
	FailurePolicy string `json:"failurePolicy" yaml:"failurePolicy"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// File is the log file path.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// MetricsConfig controls the periodic metrics dump. An empty Interval
// disables it.
type MetricsConfig struct {
	// Interval is a time.Duration string such as "30s".
	Interval string `json:"interval" yaml:"interval"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// CaptureConfig enables a pcap record of every forwarded frame. With the
// TCP transport, socket→interface records are TCP chunks and may not align
// with frames.
type CaptureConfig struct {
	// File is the pcap output path. Empty disables capture.
	File string `json:"file" yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tunnel: core.TunnelConfig{
			Name:   "prototun",
			MTU:    1500,
			Driver: tun.DriverKernel,
		},
		Transport: TransportConfig{
			FailurePolicy: "wait",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Metrics: MetricsConfig{
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a .json, .yaml or .yml file.
func LoadFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(config *Config) {
	// Tunnel config
	if val := os.Getenv("TUNNEL_NAME"); val != "" {
		config.Tunnel.Name = val
	}
	if val := os.Getenv("TUNNEL_ADDRESS"); val != "" {
		config.Tunnel.Address = val
	}
	if val := os.Getenv("TUNNEL_MTU"); val != "" {
		if mtu, err := strconv.Atoi(val); err == nil {
			config.Tunnel.MTU = mtu
		}
	}
	if val := os.Getenv("TUNNEL_DRIVER"); val != "" {
		config.Tunnel.Driver = val
	}

	// Transport config
	if val := os.Getenv("TRANSPORT_SERVER"); val != "" {
		config.Transport.Server = val
	}
	if val := os.Getenv("TRANSPORT_CLIENT"); val != "" {
		config.Transport.Client = val
	}
	if val := os.Getenv("TRANSPORT_TCP"); val != "" {
		config.Transport.TCP = Truthy(val)
	}
	if val := os.Getenv("TRANSPORT_FAILURE_POLICY"); val != "" {
		config.Transport.FailurePolicy = val
	}

	// Logging config
	if val := os.Getenv("LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}
	if val := os.Getenv("LOGGING_MAX_SIZE"); val != "" {
		if maxSize, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxSize = maxSize
		}
	}
	if val := os.Getenv("LOGGING_MAX_BACKUPS"); val != "" {
		if maxBackups, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxBackups = maxBackups
		}
	}
	if val := os.Getenv("LOGGING_MAX_AGE"); val != "" {
		if maxAge, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxAge = maxAge
		}
	}

	// Metrics config
	if val := os.Getenv("METRICS_INTERVAL"); val != "" {
		config.Metrics.Interval = val
	}
	if val := os.Getenv("METRICS_FORMAT"); val != "" {
		config.Metrics.Format = val
	}

	// Capture config
	if val := os.Getenv("CAPTURE_FILE"); val != "" {
		config.Capture.File = val
	}
}

// Truthy reports whether an environment value means "on": 1, true, yes or
// on, in any case.
func Truthy(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Tunnel
	if c.Tunnel.Name == "" {
		return fmt.Errorf("tunnel name cannot be empty")
	}
	if len(c.Tunnel.Name) > maxIfaceName {
		return fmt.Errorf("tunnel name %q longer than %d bytes", c.Tunnel.Name, maxIfaceName)
	}
	prefix, err := netip.ParsePrefix(c.Tunnel.Address)
	if err != nil {
		return fmt.Errorf("invalid tunnel address (must be IPv4 CIDR, e.g. '10.0.0.1/24'): %w", err)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("tunnel address must be IPv4: %s", c.Tunnel.Address)
	}
	if c.Tunnel.MTU <= 0 || c.Tunnel.MTU > 65535 {
		return fmt.Errorf("invalid tunnel MTU: %d", c.Tunnel.MTU)
	}
	if _, err := tun.ParseDriver(c.Tunnel.Driver); err != nil {
		return err
	}

	// Transport
	switch {
	case c.Transport.Server != "" && c.Transport.Client != "":
		return fmt.Errorf("server and client are mutually exclusive")
	case c.Transport.Server == "" && c.Transport.Client == "":
		return fmt.Errorf("either client or server operation must be specified")
	}
	addr := c.Transport.Server + c.Transport.Client
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid socket address %q: %w", addr, err)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port in socket address %q", addr)
	}
	if c.Transport.Client != "" && (host == "" || port == "0") {
		return fmt.Errorf("client address needs a host and a non-zero port: %q", addr)
	}
	if _, err := forward.ParseFailurePolicy(c.Transport.FailurePolicy); err != nil {
		return err
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	// Metrics
	if c.Metrics.Interval != "" {
		if d, err := time.ParseDuration(c.Metrics.Interval); err != nil || d <= 0 {
			return fmt.Errorf("invalid metrics interval: %q", c.Metrics.Interval)
		}
	}
	switch c.Metrics.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid metrics format: %s", c.Metrics.Format)
	}

	return nil
}

// Endpoint returns the transport endpoint described by a validated config.
func (c *Config) Endpoint() core.EndpointConfig {
	ep := core.EndpointConfig{Protocol: core.UDP}
	if c.Transport.TCP {
		ep.Protocol = core.TCP
	}
	if c.Transport.Server != "" {
		ep.Role = core.Server
		ep.Address = c.Transport.Server
	} else {
		ep.Role = core.Client
		ep.Address = c.Transport.Client
	}
	return ep
}

// FailurePolicy returns the parsed failure policy, defaulting to wait.
func (c *Config) FailurePolicy() forward.FailurePolicy {
	p, _ := forward.ParseFailurePolicy(c.Transport.FailurePolicy)
	return p
}

// MetricsInterval returns the reporter interval, or 0 when disabled.
func (c *Config) MetricsInterval() time.Duration {
	d, err := time.ParseDuration(c.Metrics.Interval)
	if err != nil {
		return 0
	}
	return d
}

// TUN returns the device configuration.
func (c *Config) TUN() tun.Config {
	return tun.Config{
		Name:    c.Tunnel.Name,
		Address: c.Tunnel.Address,
		MTU:     c.Tunnel.MTU,
		Driver:  c.Tunnel.Driver,
	}
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(
			filepath.Dir(c.Logging.File),
			filepath.Base(c.Logging.File),
			c.Logging.MaxSize,
			c.Logging.MaxBackups,
			c.Logging.MaxAge,
		)
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a .json, .yaml or .yml file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
