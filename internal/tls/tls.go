package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/prokill/internal/config"
)

const (
	tlsCaCrt = "tls_ca.crt"
	tlsCrt   = "tls.crt"
	tlsKey   = "tls.key"
)

// parseTLSVersion parses TLS version string and returns the corresponding constant
func parseTLSVersion(ver string) (uint16, bool) {
	switch ver {
	case "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, true
	case "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, true
	default:
		return 0, false
	}
}

// safeReadFile reads file content safely within base directory
func safeReadFile(baseDir, p string) ([]byte, error) {
	clean := filepath.Clean(p)
	if baseDir != "" {
		absBase, _ := filepath.Abs(baseDir)
		absFile, _ := filepath.Abs(clean)
		if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) && absFile != absBase {
			return nil, errors.New("file path outside of allowed directory")
		}
	}
	return os.ReadFile(clean)
}

// getCertificationFunc reloads the key pair on every handshake so rotated
// certificates are picked up without a restart.
func getCertificationFunc(certFile, keyFile string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	baseDir := filepath.Dir(certFile)
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		readCert, err := safeReadFile(baseDir, certFile)
		if err != nil {
			return nil, err
		}
		readKey, err := safeReadFile(baseDir, keyFile)
		if err != nil {
			return nil, err
		}
		certificate, err := tls.X509KeyPair(readCert, readKey)
		return &certificate, err
	}
}

// Setup builds the server TLS configuration. It returns nil when TLS is disabled.
func Setup(c config.TLSConfig) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	minVer := uint16(tls.VersionTLS12)
	if c.MinVersion != "" {
		v, ok := parseTLSVersion(c.MinVersion)
		if !ok {
			return nil, fmt.Errorf("unsupported tls min_version %q", c.MinVersion)
		}
		minVer = v
	}

	// explicit files win over the directory layout
	if c.CertFile != "" && c.KeyFile != "" {
		return newServerConfig(c.CertFile, c.KeyFile, minVer)
	}

	if c.Dir != "" {
		certPath, keyPath := Paths(c.Dir)
		if !certificatesExist(certPath, keyPath) {
			if !c.AutoGenerate {
				return nil, fmt.Errorf("no certificate in %s and auto_generate is off", c.Dir)
			}
			if err := generateCertificate(c); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
		return newServerConfig(certPath, keyPath, minVer)
	}

	return nil, errors.New("TLS enabled but no valid certificate configuration found")
}

// Paths returns the certificate and key locations inside dir.
func Paths(dir string) (cert, key string) {
	return filepath.Join(dir, tlsCrt), filepath.Join(dir, tlsKey)
}

// CAPath returns where a generated self-signed certificate is also written for clients.
func CAPath(dir string) string { return filepath.Join(dir, tlsCaCrt) }

func newServerConfig(certPath, keyPath string, minVer uint16) (*tls.Config, error) {
	if !certificatesExist(certPath, keyPath) {
		return nil, fmt.Errorf("certificate %s or key %s not found", certPath, keyPath)
	}
	return &tls.Config{
		GetCertificate: getCertificationFunc(certPath, keyPath),
		MinVersion:     minVer,
	}, nil
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

func generateCertificate(c config.TLSConfig) error {
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	commonName := c.CommonName
	if commonName == "" {
		commonName = "localhost"
	}
	dnsNames := c.DNSNames
	if len(dnsNames) == 0 {
		dnsNames = []string{"localhost"}
	}
	validDays := c.ValidDays
	if validDays <= 0 {
		validDays = 365
	}

	certPath, keyPath := Paths(c.Dir)
	return GenerateSelfSignedCert(CertConfig{
		CommonName:   commonName,
		Organization: "prokill",
		DNSNames:     dnsNames,
		IPAddresses:  []string{"127.0.0.1", "::1"},
		NotAfter:     time.Now().AddDate(0, 0, validDays),
		CertPath:     certPath,
		KeyPath:      keyPath,
		CACertPath:   CAPath(c.Dir),
	})
}
