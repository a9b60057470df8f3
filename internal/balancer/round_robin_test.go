package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin_Cycling(t *testing.T) {
	nodes := []*Node{
		NewNode("http://localhost:8080", "", "", nil),
		NewNode("http://localhost:8081", "", "", nil),
		NewNode("http://localhost:8082", "", "", nil),
	}
	b, err := NewRoundRobinBalancer(nodes)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", b.Select().BaseURL())
	assert.Equal(t, "http://localhost:8081", b.Select().BaseURL())
	assert.Equal(t, "http://localhost:8082", b.Select().BaseURL())
	assert.Equal(t, "http://localhost:8080", b.Select().BaseURL())
}

func TestRoundRobin_SingleNode(t *testing.T) {
	b, err := NewRoundRobinBalancer([]*Node{NewNode("http://localhost:8080", "", "", nil)})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", b.Select().BaseURL())
	assert.Equal(t, "http://localhost:8080", b.Select().BaseURL())
}

func TestRoundRobin_EmptyNodesErrors(t *testing.T) {
	_, err := NewRoundRobinBalancer(nil)
	assert.Error(t, err)
}

func TestRoundRobin_StrategyName(t *testing.T) {
	b, err := NewRoundRobinBalancer([]*Node{NewNode("http://localhost:8080", "", "", nil)})
	require.NoError(t, err)
	assert.Equal(t, "round_robin", b.StrategyName())
}

func TestRoundRobin_AllNodes(t *testing.T) {
	nodes := []*Node{
		NewNode("http://localhost:8080", "", "", nil),
		NewNode("http://localhost:8081", "", "", nil),
	}
	b, err := NewRoundRobinBalancer(nodes)
	require.NoError(t, err)
	assert.Len(t, b.AllNodes(), 2)
}

func TestNode_BaseURLStripsTrailingSlash(t *testing.T) {
	n := NewNode("http://localhost:8080/", "", "", nil)
	assert.Equal(t, "http://localhost:8080", n.BaseURL())
}
