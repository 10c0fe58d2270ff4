package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCert creates a self-signed certificate for testing
func generateTestCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM
}

// setupTestFiles creates temporary cert/key files for testing
func setupTestFiles(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()

	tmpDir := t.TempDir()
	certPEM, keyPEM := generateTestCert(t)

	certFile = filepath.Join(tmpDir, "cert.pem")
	keyFile = filepath.Join(tmpDir, "key.pem")
	caFile = filepath.Join(tmpDir, "ca.pem")

	require.NoError(t, os.WriteFile(certFile, certPEM, 0644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0644)) // same cert doubles as CA
	return certFile, keyFile, caFile
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile, caFile := setupTestFiles(t)
	badPEM := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(badPEM, []byte("not a certificate"), 0644))

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
		checkFn func(*testing.T, *tls.Config)
	}{
		{
			name: "default config with system CA pool",
			cfg:  ClientConfig{Enabled: true},
			checkFn: func(t *testing.T, tlsCfg *tls.Config) {
				assert.NotNil(t, tlsCfg.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS12), tlsCfg.MinVersion)
				assert.False(t, tlsCfg.InsecureSkipVerify)
				assert.Empty(t, tlsCfg.Certificates)
			},
		},
		{
			name: "with additional CA files",
			cfg:  ClientConfig{Enabled: true, CAFiles: []string{caFile, caFile}},
			checkFn: func(t *testing.T, tlsCfg *tls.Config) {
				assert.NotNil(t, tlsCfg.RootCAs)
			},
		},
		{
			name: "with TLS 1.3",
			cfg:  ClientConfig{Enabled: true, MinVersion: "1.3"},
			checkFn: func(t *testing.T, tlsCfg *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
			},
		},
		{
			name: "with InsecureSkipVerify",
			cfg:  ClientConfig{Enabled: true, InsecureSkipVerify: true},
			checkFn: func(t *testing.T, tlsCfg *tls.Config) {
				assert.True(t, tlsCfg.InsecureSkipVerify)
			},
		},
		{
			name: "with client certificate",
			cfg:  ClientConfig{Enabled: true, CAFiles: []string{caFile}, CertFile: certFile, KeyFile: keyFile},
			checkFn: func(t *testing.T, tlsCfg *tls.Config) {
				require.Len(t, tlsCfg.Certificates, 1)
				assert.NotEmpty(t, tlsCfg.Certificates[0].Certificate)
			},
		},
		{
			name:    "missing CA file",
			cfg:     ClientConfig{Enabled: true, CAFiles: []string{"/nonexistent/ca.pem"}},
			wantErr: true,
		},
		{
			name:    "CA file without PEM data",
			cfg:     ClientConfig{Enabled: true, CAFiles: []string{badPEM}},
			wantErr: true,
		},
		{
			name:    "missing client key",
			cfg:     ClientConfig{Enabled: true, CertFile: certFile, KeyFile: "/nonexistent/key.pem"},
			wantErr: true,
		},
		{
			name:    "certificate without key",
			cfg:     ClientConfig{Enabled: true, CertFile: certFile},
			wantErr: true,
		},
		{
			name:    "unknown version",
			cfg:     ClientConfig{Enabled: true, MinVersion: "1.0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadClientTLSConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			if tt.checkFn != nil {
				tt.checkFn(t, got)
			}
		})
	}
}

func TestLoadClientTLSConfig_Disabled(t *testing.T) {
	got, err := LoadClientTLSConfig(ClientConfig{CAFiles: []string{"/nonexistent/ca.pem"}})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion(""))
}
