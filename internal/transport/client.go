// Package transport builds the HTTP clients used to reach backend nodes and
// handles transport-level response decompression.
//
// Grounded on original_source/llama-proxy/src/backends/node.rs
// (build_node_client) for the client-construction policy, and the
// teacher's internal/handlers/proxy.go decompressReader for the
// decompression path.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLSConfig mirrors the llama-proxy TlsConfig: an optional custom CA, an
// optional client certificate pair for mTLS, and a development-only escape
// hatch to accept invalid certificates.
type TLSConfig struct {
	AcceptInvalidCerts bool
	CACertPath         string
	ClientCertPath     string
	ClientKeyPath      string
}

// BuildClient constructs the *http.Client used to reach one backend node:
// a bounded request timeout, a per-host idle connection pool, and whatever
// TLS policy the node's configuration specifies.
func BuildClient(timeout time.Duration, tlsCfg *TLSConfig) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if tlsCfg != nil {
		clientTLS := &tls.Config{}

		if tlsCfg.AcceptInvalidCerts {
			clientTLS.InsecureSkipVerify = true
		}

		if tlsCfg.CACertPath != "" {
			caCert, err := os.ReadFile(tlsCfg.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("transport: read CA cert: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("transport: invalid CA cert at %s", tlsCfg.CACertPath)
			}
			clientTLS.RootCAs = pool
		}

		if tlsCfg.ClientCertPath != "" && tlsCfg.ClientKeyPath != "" {
			cert, err := tls.LoadX509KeyPair(tlsCfg.ClientCertPath, tlsCfg.ClientKeyPath)
			if err != nil {
				return nil, fmt.Errorf("transport: load client cert: %w", err)
			}
			clientTLS.Certificates = []tls.Certificate{cert}
		}

		transport.TLSClientConfig = clientTLS
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
