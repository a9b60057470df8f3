package fixes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_AccumulateAppends(t *testing.T) {
	acc := NewAccumulator()
	assert.Equal(t, "ab", acc.Accumulate(0, "ab"))
	assert.Equal(t, "abcd", acc.Accumulate(0, "cd"))
}

func TestAccumulator_IndependentIndices(t *testing.T) {
	acc := NewAccumulator()
	acc.Accumulate(0, "first")
	acc.Accumulate(1, "second")
	assert.Equal(t, "first", acc.Buffer(0))
	assert.Equal(t, "second", acc.Buffer(1))
}

func TestAccumulator_MarkFixedClearsBufferAndSetsFlag(t *testing.T) {
	acc := NewAccumulator()
	acc.Accumulate(0, "partial")
	acc.MarkFixed(0)
	assert.True(t, acc.IsFixed(0))
	assert.Equal(t, "", acc.Buffer(0))
}

func TestAccumulator_ClearPreservesFixedBit(t *testing.T) {
	acc := NewAccumulator()
	acc.Accumulate(0, "x")
	acc.Clear(0)
	assert.Equal(t, "", acc.Buffer(0))
	assert.False(t, acc.IsFixed(0))
}

func TestAccumulator_ResetRemovesEntryEntirely(t *testing.T) {
	acc := NewAccumulator()
	acc.Accumulate(0, "x")
	acc.MarkFixed(0)
	acc.Reset(0)
	assert.False(t, acc.IsFixed(0))
	assert.Equal(t, "", acc.Buffer(0))
}

func TestAccumulator_UnknownIndexDefaultsEmpty(t *testing.T) {
	acc := NewAccumulator()
	assert.Equal(t, "", acc.Buffer(42))
	assert.False(t, acc.IsFixed(42))
}

func TestCreateSnippet_TruncatesLongText(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "x"
	}
	snippet := CreateSnippet(long, 200)
	assert.LessOrEqual(t, len(snippet), 210)
}

func TestCreateSnippet_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "short", CreateSnippet("short", 200))
}
