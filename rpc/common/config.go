package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration
// --------------------------------------------------------------------------

// TCPConf holds TCP-specific socket tuning. All fields are optional; zero
// values leave the kernel defaults in place (linger uses -1 for default).
type TCPConf struct {
	NoDelay         bool
	KeepAliveSec    int
	LingerSec       int
	ReadBufferSize  int
	WriteBufferSize int
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the server.
type ServerConfig struct {
	// Network is the listener network ("tcp" or "unix").
	Network string
	// Endpoint is the listen address (host:port for tcp, a path for unix).
	Endpoint string

	// NumShards is the number of store partitions (0 = number of CPUs).
	NumShards int

	// TimeoutSecond is the per-connection idle read timeout (0 = none).
	TimeoutSecond int64

	// MetricsEndpoint optionally exposes Prometheus metrics over HTTP
	// (empty = disabled).
	MetricsEndpoint string

	// Logging configuration
	LogLevel string

	TCP TCPConf
}

// String returns a formatted string representation of the configuration.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Network", c.Network)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Store")
	if c.NumShards > 0 {
		addField("Shards", strconv.Itoa(c.NumShards))
	} else {
		addField("Shards", "auto (CPU count)")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for a client connection.
type ClientConfig struct {
	Network       string
	Endpoint      string
	TimeoutSecond int

	TCP TCPConf
}

// String returns a formatted string representation of the client
// configuration.
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Network", c.Network)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
