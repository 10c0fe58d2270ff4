// Package tlsutil builds client TLS configurations for outbound connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/semquery/errors"
)

// ClientConfig describes how a client verifies servers and, optionally,
// presents its own certificate. The system CA bundle is always trusted;
// CAFiles add to it.
type ClientConfig struct {
	Enabled            bool     `mapstructure:"enabled" yaml:"enabled"`
	CAFiles            []string `mapstructure:"ca_files" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"` // dev/test only
	MinVersion         string   `mapstructure:"min_version" yaml:"min_version,omitempty"`

	// Client certificate for mutual TLS. Both or neither.
	CertFile string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file,omitempty"`
}

// Validate checks the fields that can be checked without touching files.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "Validate",
			"cert_file and key_file must be set together")
	}
	switch c.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return errors.WrapInvalid(
			fmt.Errorf("min_version %q: %w", c.MinVersion, errors.ErrInvalidConfig),
			"tlsutil", "Validate", "version check")
	}
}

// LoadClientTLSConfig returns nil when TLS is disabled.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}

	tlsConfig := &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// parseTLSVersion returns TLS 1.2 unless "1.3" is asked for.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
