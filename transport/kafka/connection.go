package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// newTransport builds the publisher transport with optional TLS and SASL.
func newTransport(cfg *Config) (*kafkago.Transport, error) {
	transport := &kafkago.Transport{
		DialTimeout: parseDuration(cfg.DialTimeout),
		IdleTimeout: parseDuration(cfg.IdleTimeout),
		MetadataTTL: parseDuration(cfg.MetadataTTL),
	}
	tc, mechanism, err := security(cfg)
	if err != nil {
		return nil, err
	}
	transport.TLS = tc
	transport.SASL = mechanism
	return transport, nil
}

// newDialer builds the subscription dialer with optional TLS and SASL.
func newDialer(cfg *Config) (*kafkago.Dialer, error) {
	dialer := &kafkago.Dialer{
		Timeout:   parseDuration(cfg.DialTimeout),
		DualStack: true,
	}
	tc, mechanism, err := security(cfg)
	if err != nil {
		return nil, err
	}
	dialer.TLS = tc
	dialer.SASLMechanism = mechanism
	return dialer, nil
}

func security(cfg *Config) (*tls.Config, sasl.Mechanism, error) {
	var tc *tls.Config
	if cfg.EnableTLS {
		var err error
		if tc, err = buildTLSConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("TLS config: %w", err)
		}
	}
	var mechanism sasl.Mechanism
	if cfg.EnableSASL {
		var err error
		if mechanism, err = buildSASLMechanism(cfg); err != nil {
			return nil, nil, fmt.Errorf("SASL config: %w", err)
		}
	}
	return tc, mechanism, nil
}

func buildTLSConfig(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tc.RootCAs = pool
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func buildSASLMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}

// compression maps a codec name to its kafka-go codec; unknown names fall
// back to snappy.
func compression(name string) kafkago.Compression {
	switch name {
	case "gzip":
		return kafkago.Gzip
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	case "none":
		return 0
	default:
		return kafkago.Snappy
	}
}
