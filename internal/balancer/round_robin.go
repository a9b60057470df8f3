package balancer

import "sync/atomic"

// RoundRobinBalancer cycles through its nodes in registration order.
type RoundRobinBalancer struct {
	nodes   []*Node
	counter atomic.Uint64
}

// NewRoundRobinBalancer builds a round-robin balancer over nodes. Returns
// an error if nodes is empty — a balancer with nothing to select from is a
// configuration mistake, not a runtime condition to special-case later.
func NewRoundRobinBalancer(nodes []*Node) (*RoundRobinBalancer, error) {
	if len(nodes) == 0 {
		return nil, errNoNodes
	}
	return &RoundRobinBalancer{nodes: nodes}, nil
}

func (b *RoundRobinBalancer) Select() *Node {
	idx := b.counter.Add(1) - 1
	return b.nodes[idx%uint64(len(b.nodes))]
}

func (b *RoundRobinBalancer) StrategyName() string { return "round_robin" }

func (b *RoundRobinBalancer) AllNodes() []*Node {
	out := make([]*Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}
