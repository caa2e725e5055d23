package transport_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mickamy/gobolt/internal/transport"
)

func TestConnect_PlaintextRoundTrip(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(buf)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := transport.Connect(context.Background(), transport.Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		ConnectTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("echoed = %q, want %q", buf, "hello")
	}
	<-done
}

func TestConnect_RefusedIsServiceUnavailable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close() // nothing listens here now

	_, err = transport.Connect(context.Background(), transport.Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		ConnectTimeout: time.Second,
	})
	if err == nil {
		t.Fatalf("Connect to closed port: want error, got nil")
	}
	var svcErr *transport.ServiceUnavailableError
	if !errors.As(err, &svcErr) {
		t.Errorf("Connect error = %T, want *ServiceUnavailableError", err)
	}
}

func TestConnect_UnroutableAddressTimesOut(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Connect(ctx, transport.Config{
		Host:           "10.255.255.1",
		Port:           4444,
		ConnectTimeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("Connect to unroutable address: want error, got nil")
	}
	var timeoutErr *transport.ConnectTimeoutError
	var svcErr *transport.ServiceUnavailableError
	if !errors.As(err, &timeoutErr) && !errors.As(err, &svcErr) {
		t.Errorf("Connect error = %T, want *ConnectTimeoutError or *ServiceUnavailableError", err)
	}
}

func TestConnect_EncryptedWithTrustAny(t *testing.T) {
	t.Parallel()

	cert, err := tls.X509KeyPair(testCertPEM, testKeyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 2)
		_, _ = conn.Read(buf)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := transport.Connect(context.Background(), transport.Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		Encrypted:      true,
		Trust:          transport.TrustStrategy{Mode: transport.TrustAny},
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if _, err := conn.Write([]byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done
}

func TestConnect_EncryptedWithSystemTrustFailsUntrustedCert(t *testing.T) {
	t.Parallel()

	cert, err := tls.X509KeyPair(testCertPEM, testKeyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		_, _ = conn.Read(buf)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	_, err = transport.Connect(context.Background(), transport.Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		Encrypted:      true,
		Trust:          transport.TrustStrategy{Mode: transport.TrustSystem},
		ConnectTimeout: 2 * time.Second,
	})
	if err == nil {
		t.Fatalf("Connect with untrusted self-signed cert under TrustSystem: want error, got nil")
	}
	var tlsErr *transport.TLSFailureError
	if !errors.As(err, &tlsErr) {
		t.Errorf("Connect error = %T, want *TLSFailureError", err)
	}
}

func TestConnect_CustomCATrustsMatchingCert(t *testing.T) {
	t.Parallel()

	cert, err := tls.X509KeyPair(testCertPEM, testKeyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		_, _ = conn.Read(buf)
	}()

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(testCertPEM) {
		t.Fatalf("AppendCertsFromPEM: no certs parsed")
	}

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := transport.Connect(context.Background(), transport.Config{
		Host:      "127.0.0.1",
		Port:      addr.Port,
		Encrypted: true,
		Trust: transport.TrustStrategy{
			Mode:     transport.TrustCustomCA,
			CustomCA: testCertPEM,
		},
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = conn.Close()
}
