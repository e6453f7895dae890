// Package tlsconfig builds the TLS configuration the stack installs on
// https connections: custom root CAs, an optional client certificate and
// the insecure switch.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// Files names the TLS material to load. Relative paths are resolved against
// the base directory passed to Build.
type Files struct {
	RootCAs    []string `json:"rootCAs,omitempty" yaml:"rootCAs,omitempty" toml:"rootCAs,omitempty"`
	ClientCert string   `json:"clientCert,omitempty" yaml:"clientCert,omitempty" toml:"clientCert,omitempty"`
	ClientKey  string   `json:"clientKey,omitempty" yaml:"clientKey,omitempty" toml:"clientKey,omitempty"`
	ServerName string   `json:"serverName,omitempty" yaml:"serverName,omitempty" toml:"serverName,omitempty"`
	Insecure   bool     `json:"insecure,omitempty" yaml:"insecure,omitempty" toml:"insecure,omitempty"`
	RootMode   RootMode `json:"rootMode,omitempty" yaml:"rootMode,omitempty" toml:"rootMode,omitempty"`
}

// Empty reports whether f asks for nothing beyond the system defaults.
func (f Files) Empty() bool {
	return len(f.RootCAs) == 0 && f.ClientCert == "" && f.ClientKey == "" &&
		f.ServerName == "" && !f.Insecure
}

type RootMode string

const (
	// RootModeReplace trusts only the configured CAs.
	RootModeReplace RootMode = "replace"
	// RootModeAppend trusts the system roots plus the configured CAs.
	RootModeAppend RootMode = "append"
)

// Build constructs a tls.Config from f. Unreadable files are resource
// errors; files that do not hold usable certificates are protocol errors.
func Build(f Files, baseDir string) (*tls.Config, error) {
	mode := f.RootMode
	switch mode {
	case "":
		mode = RootModeReplace
	case RootModeReplace, RootModeAppend:
	default:
		return nil, errdef.New(errdef.CodeProtocol, "unknown root mode %q", mode)
	}

	tc := &tls.Config{
		InsecureSkipVerify: f.Insecure, // nolint:gosec
		ServerName:         f.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if len(f.RootCAs) > 0 {
		pool, err := loadRootCAs(f.RootCAs, baseDir, mode == RootModeAppend)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = pool
	}

	if f.ClientCert != "" || f.ClientKey != "" {
		if f.ClientCert == "" || f.ClientKey == "" {
			return nil, errdef.New(errdef.CodeProtocol, "client certificate and key are both required")
		}
		cert, err := loadClientCert(f.ClientCert, f.ClientKey, baseDir)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

func loadRootCAs(paths []string, baseDir string, mergeSystem bool) (*x509.CertPool, error) {
	var pool *x509.CertPool
	if mergeSystem {
		pool, _ = x509.SystemCertPool()
	}
	if pool == nil {
		pool = x509.NewCertPool()
	}

	for _, p := range paths {
		data, err := os.ReadFile(resolvePath(p, baseDir))
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeResource, err, "read root ca %s", p)
		}
		if ok := pool.AppendCertsFromPEM(data); !ok {
			return nil, errdef.New(errdef.CodeProtocol, "no certificates in %s", p)
		}
	}
	return pool, nil
}

func loadClientCert(certPath, keyPath, baseDir string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(resolvePath(certPath, baseDir))
	if err != nil {
		return tls.Certificate{}, errdef.Wrap(errdef.CodeResource, err, "read client certificate %s", certPath)
	}
	keyPEM, err := os.ReadFile(resolvePath(keyPath, baseDir))
	if err != nil {
		return tls.Certificate{}, errdef.Wrap(errdef.CodeResource, err, "read client key %s", keyPath)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, errdef.Wrap(errdef.CodeProtocol, err, "load client certificate")
	}
	return cert, nil
}

func resolvePath(path, baseDir string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}
