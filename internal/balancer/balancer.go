// Package balancer selects which backend node a request is dispatched to.
//
// Grounded on original_source/llama-proxy/src/backends/{balancer,
// round_robin,node}.rs. Node is the Go realization of BackendNode: a
// runtime handle pairing a base URL with its own *http.Client, built by
// internal/transport.
package balancer

import "errors"

var errNoNodes = errors.New("balancer: requires at least one node")

// LoadBalancer selects the next backend node according to some strategy.
type LoadBalancer interface {
	Select() *Node
	StrategyName() string
	AllNodes() []*Node
}
