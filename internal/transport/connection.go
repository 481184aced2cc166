package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
)

// State is the lifecycle of one QUIC connection attempt.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config bundles the parameters needed to dial a QUIC connection, with
// 0-RTT early data enabled whenever a usable session ticket is on file.
type Config struct {
	CertPath  string
	KeyPath   string
	CAPath    string
	ALPN      []string
	Enable0RTT bool
	HandshakeTimeout time.Duration
	KeepAlivePeriod  time.Duration
}

// DefaultConfig mirrors typical QUIC file-transfer defaults: a single
// "vaultaire" ALPN token, 0-RTT on, 10s handshake budget.
func DefaultConfig() Config {
	return Config{
		ALPN:             []string{"vaultaire"},
		Enable0RTT:       true,
		HandshakeTimeout: 10 * time.Second,
		KeepAlivePeriod:  15 * time.Second,
	}
}

// Connection wraps a quic-go connection with 0-RTT session resumption
// (via ResumptionManager) and path-migration bookkeeping (via
// MigrationManager) layered on top of a raw QUIC client.
type Connection struct {
	cfg        Config
	resumption *ResumptionManager
	migration  *MigrationManager
	stats      Statistics

	state      atomic.Int32
	used0RTT   atomic.Bool
	accepted0RTT atomic.Bool

	conn quic.Connection

	stateCallback func(State)
}

// NewConnection builds an unconnected Connection sharing the given
// resumption and migration managers (callers typically keep one of each
// per remote host, reused across reconnects).
func NewConnection(cfg Config, resumption *ResumptionManager, migration *MigrationManager) *Connection {
	c := &Connection{cfg: cfg, resumption: resumption, migration: migration}
	c.state.Store(int32(StateDisconnected))
	return c
}

func (c *Connection) OnStateChange(cb func(State)) { c.stateCallback = cb }

func (c *Connection) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s && c.stateCallback != nil {
		c.stateCallback(s)
	}
}

func (c *Connection) State() State { return State(c.state.Load()) }

// Dial opens a QUIC connection to host:port, attempting 0-RTT with any
// valid stored ticket for that server, and recording the attempt's
// acceptance/rejection back into the resumption manager once quic-go's
// handshake completes.
func (c *Connection) Dial(ctx context.Context, host string, port uint16) error {
	c.used0RTT.Store(false)
	c.accepted0RTT.Store(false)
	c.setState(StateConnecting)

	tlsConf, err := c.buildTLSConfig(host)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("build tls config: %w", err)
	}

	quicConf := &quic.Config{
		HandshakeIdleTimeout: c.cfg.HandshakeTimeout,
		KeepAlivePeriod:      c.cfg.KeepAlivePeriod,
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	var conn quic.Connection
	if c.cfg.Enable0RTT && c.resumption != nil && c.resumption.CanUse0RTT(host, port) {
		c.used0RTT.Store(true)
		early, derr := quic.DialAddrEarly(ctx, addr, tlsConf, quicConf)
		if derr != nil {
			c.setState(StateError)
			return fmt.Errorf("dial early (0-rtt) to %s: %w", addr, derr)
		}
		conn = early
		c.accepted0RTT.Store(early.ConnectionState().Used0RTT)
		if early.ConnectionState().Used0RTT {
			c.resumption.On0RTTAccepted(host, port)
		} else {
			c.resumption.On0RTTRejected(host, port)
		}
	} else {
		dialed, derr := quic.DialAddr(ctx, addr, tlsConf, quicConf)
		if derr != nil {
			c.setState(StateError)
			return fmt.Errorf("dial %s: %w", addr, derr)
		}
		conn = dialed
	}

	c.conn = conn
	if c.migration != nil {
		c.migration.SetCurrentPath(NetworkPath{
			LocalAddress:  addrHost(conn.LocalAddr()),
			RemoteAddress: host,
			RemotePort:    port,
		})
	}
	c.setState(StateConnected)
	return nil
}

func addrHost(a net.Addr) string {
	if a == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	return host
}

// buildTLSConfig assembles the tls.Config used for the QUIC handshake.
// ClientSessionCache is left to quic-go's default per-connection handling;
// the ticket itself is bridged in at the application layer via
// ResumptionManager, which stores tickets keyed by server_id with its own
// lifecycle (max_early_data_size, ALPN) rather than Go's opaque
// ClientSessionState.
func (c *Connection) buildTLSConfig(host string) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName: host,
		NextProtos: c.cfg.ALPN,
		MinVersion: tls.VersionTLS13,
	}

	if c.cfg.CertPath != "" && c.cfg.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(c.cfg.CertPath, c.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	return conf, nil
}

// Used0RTT reports whether the most recent Dial attempted early data.
func (c *Connection) Used0RTT() bool { return c.used0RTT.Load() }

// Accepted0RTT reports whether the server honored the 0-RTT attempt.
func (c *Connection) Accepted0RTT() bool { return c.accepted0RTT.Load() }

// OpenStream opens a new bidirectional stream, tracking sent/received
// bytes isn't done here (callers wrap the stream themselves); Close tears
// the connection down.
func (c *Connection) OpenStream(ctx context.Context) (quic.Stream, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection not established")
	}
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		c.stats.IncrementErrors()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return stream, nil
}

func (c *Connection) AcceptStream(ctx context.Context) (quic.Stream, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection not established")
	}
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		c.stats.IncrementErrors()
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return stream, nil
}

func (c *Connection) Close() error {
	if c.conn == nil {
		c.setState(StateDisconnected)
		return nil
	}
	err := c.conn.CloseWithError(0, "closed")
	c.setState(StateDisconnected)
	return err
}

func (c *Connection) Statistics() StatisticsSnapshot { return c.stats.Snapshot() }
