package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokensCl100k_NonEmptyText(t *testing.T) {
	count := EstimateTokensCl100k("the quick brown fox jumps over the lazy dog", nil)
	assert.Greater(t, count, 0)
}

func TestEstimateTokensCl100k_EmptyText(t *testing.T) {
	count := EstimateTokensCl100k("", nil)
	assert.Equal(t, 0, count)
}
