package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/iphands/llamafix-proxy/internal/balancer"
)

// hopByHopHeaders are stripped in both directions: they describe this
// specific connection, never the one being proxied.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Content-Length",
}

func newBodyReader(body []byte) io.Reader {
	return bytes.NewReader(body)
}

// copyRequestHeaders copies r's headers onto req, skipping hop-by-hop
// headers, and sets node's API key as a Bearer Authorization header when
// one is configured.
func copyRequestHeaders(req *http.Request, r *http.Request, node *balancer.Node) {
	for name, values := range r.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if node.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+node.APIKey)
	}
}

// copyResponseHeaders copies resp's headers onto w, skipping every header in
// hopByHopHeaders; that list includes Content-Length and Transfer-Encoding,
// which Go's net/http server recomputes itself so they never disagree with
// the body actually written.
func copyResponseHeaders(w http.ResponseWriter, resp *http.Response) {
	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if http.CanonicalHeaderKey(name) == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return false
}
