package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/prokill/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	c, err := Setup(config.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSetupAutoGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	c, err := Setup(config.TLSConfig{
		Enabled:      true,
		Dir:          dir,
		AutoGenerate: true,
		DNSNames:     []string{"localhost", "prokill.local"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)

	cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.ElementsMatch(t, []string{"localhost", "prokill.local"}, leaf.DNSNames)

	info, err := os.Stat(filepath.Join(dir, tlsKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ca, err := os.ReadFile(CAPath(dir))
	require.NoError(t, err)
	block, _ := pem.Decode(ca)
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)
}

func TestSetupKeepsExistingCertificate(t *testing.T) {
	dir := t.TempDir()
	cfg := config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true}
	_, err := Setup(cfg)
	require.NoError(t, err)
	certPath, _ := Paths(dir)
	first, err := os.ReadFile(certPath)
	require.NoError(t, err)

	_, err = Setup(cfg)
	require.NoError(t, err)
	second, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSetupExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := Paths(dir)
	require.NoError(t, GenerateSelfSignedCert(CertConfig{
		CommonName: "api",
		DNSNames:   []string{"api"},
		NotAfter:   timeIn(30),
		CertPath:   certPath,
		KeyPath:    keyPath,
	}))

	c, err := Setup(config.TLSConfig{Enabled: true, CertFile: certPath, KeyFile: keyPath, MinVersion: "1.3"})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
}

func TestSetupErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.TLSConfig
	}{
		{"no source", config.TLSConfig{Enabled: true}},
		{"missing dir certs", config.TLSConfig{Enabled: true, Dir: dir}},
		{"missing files", config.TLSConfig{Enabled: true, CertFile: filepath.Join(dir, "a"), KeyFile: filepath.Join(dir, "b")}},
		{"bad version", config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Setup(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSafeReadFileRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	_, err := safeReadFile(dir, filepath.Join(dir, "..", "etc", "passwd"))
	assert.Error(t, err)
}

func timeIn(days int) time.Time { return time.Now().AddDate(0, 0, days) }
