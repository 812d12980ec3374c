// Package server accepts connections and serves the command protocol over
// them, one goroutine per connection, against a shared key-value store.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/lib/store"
	"github.com/wirekv/wirekv/rpc/command"
	"github.com/wirekv/wirekv/rpc/common"
	"github.com/wirekv/wirekv/rpc/transport"
)

// Server owns a listener and the store it serves.
//
// Thread-safety: all exported methods are safe for concurrent use.
type Server struct {
	config *common.ServerConfig
	kv     store.KV
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	connsActive *xsync.Counter
	connsServed *xsync.Counter
	// commandCounts maps command names to execution counters.
	commandCounts *xsync.MapOf[string, *xsync.Counter]
}

// New creates a server for the given configuration. The store is created
// here so its shard count follows the configuration.
func New(config *common.ServerConfig) *Server {
	opts := store.DefaultOptions()
	if config.NumShards > 0 {
		opts.NumShards = config.NumShards
	}

	logger := common.NewLogger("server")
	if config.LogLevel != "" {
		if level, err := common.ParseLogLevel(config.LogLevel); err == nil {
			logger = logger.Level(level)
		}
	}

	return &Server{
		config:        config,
		kv:            store.NewSharded(opts),
		logger:        logger,
		connsActive:   xsync.NewCounter(),
		connsServed:   xsync.NewCounter(),
		commandCounts: xsync.NewMapOf[string, *xsync.Counter](),
	}
}

// ListenAndServe binds the configured endpoint and serves until Close is
// called. It blocks for the lifetime of the listener.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen(s.config.Network, s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("server: listen on %s %s: %w", s.config.Network, s.config.Endpoint, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return errors.New("server: already closed")
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().
		Str("network", s.config.Network).
		Str("endpoint", listener.Addr().String()).
		Msg("listening")

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handle(conn)
	}
}

// Addr returns the bound listener address, or nil before ListenAndServe has
// bound it. Useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections. Connections already being served run
// until their peer disconnects.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// --------------------------------------------------------------------------
// Connection handling
// --------------------------------------------------------------------------

func (s *Server) handle(netConn net.Conn) {
	defer netConn.Close()

	logger := s.logger.With().Str("remote", netConn.RemoteAddr().String()).Logger()

	if tcp, ok := netConn.(*net.TCPConn); ok {
		if err := applyTCPConf(tcp, s.config.TCP); err != nil {
			logger.Warn().Err(err).Msg("failed to apply tcp tuning")
		}
	}

	s.connsActive.Inc()
	s.connsServed.Inc()
	metrics.GetOrCreateCounter("wirekv_connections_served_total").Inc()
	defer s.connsActive.Dec()

	logger.Debug().Msg("connection opened")

	conn := transport.New(netConn)
	for {
		if s.config.TimeoutSecond > 0 {
			deadline := time.Now().Add(time.Duration(s.config.TimeoutSecond) * time.Second)
			if err := netConn.SetReadDeadline(deadline); err != nil {
				logger.Warn().Err(err).Msg("failed to set read deadline")
			}
		}

		frame, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, transport.ErrZeroRead) {
				logger.Debug().Msg("connection closed by peer")
			} else {
				logger.Warn().Err(err).Msg("closing connection")
			}
			return
		}

		cmd, err := command.Parse(frame)
		if err != nil {
			// the frame itself was sound, so the stream is still in
			// sync; report the problem in-band and keep serving
			logger.Debug().Err(err).Msg("rejected command")
			if err := s.respondError(conn, err); err != nil {
				logger.Error().Err(err).Msg("failed to write error response")
				return
			}
			continue
		}

		s.countCommand(cmd.Name())

		if err := cmd.Execute(s.kv, conn); err != nil {
			logger.Error().Err(err).Str("command", cmd.Name()).Msg("failed to write response")
			return
		}
		if err := conn.Flush(); err != nil {
			logger.Error().Err(err).Str("command", cmd.Name()).Msg("failed to flush response")
			return
		}
	}
}

func (s *Server) respondError(conn *transport.Connection, cause error) error {
	if err := conn.WriteFrame(protocol.Error(cause.Error())); err != nil {
		return err
	}
	return conn.Flush()
}

func applyTCPConf(conn *net.TCPConn, conf common.TCPConf) error {
	if err := conn.SetNoDelay(conf.NoDelay); err != nil {
		return fmt.Errorf("set nodelay: %w", err)
	}
	if conf.KeepAliveSec > 0 {
		if err := conn.SetKeepAlive(true); err != nil {
			return fmt.Errorf("enable keepalive: %w", err)
		}
		if err := conn.SetKeepAlivePeriod(time.Duration(conf.KeepAliveSec) * time.Second); err != nil {
			return fmt.Errorf("set keepalive period: %w", err)
		}
	}
	if conf.LingerSec > 0 {
		if err := conn.SetLinger(conf.LingerSec); err != nil {
			return fmt.Errorf("set linger: %w", err)
		}
	}
	if conf.ReadBufferSize > 0 {
		if err := conn.SetReadBuffer(conf.ReadBufferSize); err != nil {
			return fmt.Errorf("set read buffer: %w", err)
		}
	}
	if conf.WriteBufferSize > 0 {
		if err := conn.SetWriteBuffer(conf.WriteBufferSize); err != nil {
			return fmt.Errorf("set write buffer: %w", err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func (s *Server) countCommand(name string) {
	counter, _ := s.commandCounts.LoadOrCompute(name, xsync.NewCounter)
	counter.Inc()
	metrics.GetOrCreateCounter(fmt.Sprintf(`wirekv_commands_total{command=%q}`, name)).Inc()
}

// Stats is a point-in-time snapshot of the server's counters.
type Stats struct {
	ConnsActive int64
	ConnsServed int64
	Commands    map[string]int64
}

// Stats returns the current counter values.
func (s *Server) Stats() Stats {
	stats := Stats{
		ConnsActive: s.connsActive.Value(),
		ConnsServed: s.connsServed.Value(),
		Commands:    make(map[string]int64),
	}
	s.commandCounts.Range(func(name string, counter *xsync.Counter) bool {
		stats.Commands[name] = counter.Value()
		return true
	})
	return stats
}

// serveMetrics exposes the process metrics in Prometheus text format.
func (s *Server) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	s.logger.Info().Str("endpoint", s.config.MetricsEndpoint).Msg("serving metrics")
	if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
		s.logger.Error().Err(err).Msg("metrics endpoint failed")
	}
}
