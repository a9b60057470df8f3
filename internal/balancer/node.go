package balancer

import (
	"net/http"
	"strings"
)

// Node is a runtime handle for a single backend: its base URL, optional
// model override, optional API key, and the *http.Client built for it by
// internal/transport (so each node can carry its own TLS policy and
// timeout independently of the others).
type Node struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

// NewNode constructs a Node from already-resolved configuration.
func NewNode(url, model, apiKey string, client *http.Client) *Node {
	return &Node{URL: url, Model: model, APIKey: apiKey, Client: client}
}

// BaseURL returns the node's URL with any trailing slash stripped.
func (n *Node) BaseURL() string {
	return strings.TrimRight(n.URL, "/")
}
