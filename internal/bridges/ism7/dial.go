package ism7

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/infrastructure/config"
)

const (
	defaultDialTimeout = 10 * time.Second
	tcpKeepAlive       = 30 * time.Second
)

// Dialer opens a connection to the gateway.
type Dialer interface {
	DialContext(ctx context.Context) (net.Conn, error)
}

// TLSDialer connects to the gateway over TLS.
type TLSDialer struct {
	address string
	dialer  *tls.Dialer
}

// NewTLSDialer builds a dialer from the gateway config section.
//
// A client certificate is presented when cert_file and key_file are set.
// Without ca_file the gateway's certificate is accepted as is: gateways
// ship self-signed certificates bound to no host name.
//
// Returns:
//   - *TLSDialer: Dialer for the configured host and port
//   - error: ErrTLSConfig if certificate files cannot be loaded
func NewTLSDialer(cfg config.GatewayConfig, timeout time.Duration) (*TLSDialer, error) {
	tlsCfg, err := buildTLSConfig(cfg.TLS, cfg.Host)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	return &TLSDialer{
		address: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		dialer: &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: timeout, KeepAlive: tcpKeepAlive},
			Config:    tlsCfg,
		},
	}, nil
}

// Address returns the host:port the dialer connects to.
func (d *TLSDialer) Address() string {
	return d.address
}

// DialContext connects and completes the TLS handshake.
func (d *TLSDialer) DialContext(ctx context.Context) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, "tcp", d.address)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway %s: %w", d.address, err)
	}
	return conn, nil
}

func buildTLSConfig(cfg config.GatewayTLSConfig, host string) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.ServerName,
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = host
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: client certificate: %w", ErrTLSConfig, err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile == "" {
		tlsCfg.InsecureSkipVerify = true //nolint:gosec // self-signed gateway certificates
		return tlsCfg, nil
	}

	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CA file: %w", ErrTLSConfig, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrTLSConfig, cfg.CAFile)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}
