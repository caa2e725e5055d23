// Package transport provides the duplex TCP/TLS byte channel a connection
// is built on: dial, optional TLS upgrade, and the trust-mode and timeout
// knobs that go with it.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"
)

// TrustMode selects how server certificates are validated when Encrypted
// is set.
type TrustMode int

const (
	// TrustSystem validates against the host's root CA pool (bolt+s / neo4j+s).
	TrustSystem TrustMode = iota
	// TrustCustomCA validates against a caller-supplied CA bundle.
	TrustCustomCA
	// TrustAny accepts any certificate, including self-signed ones
	// (bolt+ssc / neo4j+ssc).
	TrustAny
	// TrustCustom delegates the decision to a caller-supplied predicate.
	TrustCustom
)

// TrustStrategy configures certificate validation for an encrypted
// connection.
type TrustStrategy struct {
	Mode TrustMode
	// CustomCA is the CA bundle used when Mode is TrustCustomCA.
	CustomCA []byte
	// CustomCAPath, if set and CustomCA is nil, is read at Connect time.
	CustomCAPath string
	// Verify is consulted when Mode is TrustCustom.
	Verify func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// Config describes how to reach and secure a connection to a single Bolt
// endpoint.
type Config struct {
	Host           string
	Port           int
	Encrypted      bool
	Trust          TrustStrategy
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout covers DNS resolution, the TCP three-way handshake,
// and (when encrypted) the TLS handshake. It equals the wire package's
// handshake deadline (10s).
const DefaultConnectTimeout = 10 * time.Second

// ServiceUnavailableError wraps a connect-time failure that means "this
// endpoint is not reachable right now" -- refused, unresolvable, or
// otherwise unreachable.
type ServiceUnavailableError struct {
	Addr string
	Err  error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("transport: service unavailable at %s: %v", e.Addr, e.Err)
}
func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ConnectTimeoutError wraps a connect attempt that exceeded its deadline.
type ConnectTimeoutError struct {
	Addr string
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("transport: connect timeout dialing %s", e.Addr)
}

// TLSFailureError wraps a TLS handshake failure.
type TLSFailureError struct {
	Err error
}

func (e *TLSFailureError) Error() string { return fmt.Sprintf("transport: tls handshake: %v", e.Err) }
func (e *TLSFailureError) Unwrap() error { return e.Err }

// ConnectionLostError wraps a mid-stream I/O failure on an
// already-established connection.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("transport: connection lost: %v", e.Err)
}
func (e *ConnectionLostError) Unwrap() error { return e.Err }

// Connect opens a TCP connection to cfg.Host:cfg.Port, wrapping it in TLS
// per cfg.Trust if cfg.Encrypted is set, and enables TCP_NODELAY.
func Connect(ctx context.Context, cfg Config) (net.Conn, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ConnectTimeoutError{Addr: addr}
		}
		return nil, &ServiceUnavailableError{Addr: addr, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, &ServiceUnavailableError{Addr: addr, Err: fmt.Errorf("set TCP_NODELAY: %w", err)}
		}
	}

	if !cfg.Encrypted {
		return conn, nil
	}

	tlsConfig, err := buildTLSConfig(cfg.Host, cfg.Trust)
	if err != nil {
		_ = conn.Close()
		return nil, &TLSFailureError{Err: err}
	}

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, &ConnectTimeoutError{Addr: addr}
		}
		return nil, &TLSFailureError{Err: err}
	}

	return tlsConn, nil
}

func buildTLSConfig(serverName string, trust TrustStrategy) (*tls.Config, error) {
	cfg := &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}

	switch trust.Mode {
	case TrustSystem:
		return cfg, nil
	case TrustAny:
		cfg.InsecureSkipVerify = true
		return cfg, nil
	case TrustCustomCA:
		pool := x509.NewCertPool()
		ca := trust.CustomCA
		if ca == nil {
			if trust.CustomCAPath == "" {
				return nil, fmt.Errorf("transport: TrustCustomCA requires CustomCA or CustomCAPath")
			}
			data, err := os.ReadFile(trust.CustomCAPath)
			if err != nil {
				return nil, fmt.Errorf("transport: read custom CA: %w", err)
			}
			ca = data
		}
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("transport: custom CA bundle contains no usable certificates")
		}
		cfg.RootCAs = pool
		return cfg, nil
	case TrustCustom:
		if trust.Verify == nil {
			return nil, fmt.Errorf("transport: TrustCustom requires Verify")
		}
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = trust.Verify
		return cfg, nil
	default:
		return nil, fmt.Errorf("transport: unknown trust mode %d", trust.Mode)
	}
}
