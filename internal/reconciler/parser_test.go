package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineValid(t *testing.T) {
	label, points, ok := ParseLine("1 0.15 0.15 0.25 0.15 0.25 0.25")
	require.True(t, ok)
	assert.Equal(t, 1, label)
	assert.Equal(t, "0.15 0.15 0.25 0.15 0.25 0.25", points)
}

func TestParseLineTooFewTokens(t *testing.T) {
	// A label plus a single coordinate is not a polygon.
	_, points, ok := ParseLine("1 0.5")
	assert.False(t, ok)
	assert.Empty(t, points)

	_, _, ok = ParseLine("")
	assert.False(t, ok)
}

func TestParseLineNonIntegerLabel(t *testing.T) {
	_, points, ok := ParseLine("diatom 0.1 0.2 0.3 0.4")
	assert.False(t, ok)
	assert.Empty(t, points)

	// Floats are not valid class labels either.
	_, _, ok = ParseLine("1.5 0.1 0.2 0.3 0.4")
	assert.False(t, ok)
}

func TestParseLineExtraWhitespace(t *testing.T) {
	label, points, ok := ParseLine("  2   0.1  0.2   0.3 0.4  ")
	require.True(t, ok)
	assert.Equal(t, 2, label)
	assert.Equal(t, "0.1 0.2 0.3 0.4", points)
}

func TestParseFile(t *testing.T) {
	content := "1 0.1 0.1 0.2 0.2\n0 0.3 0.3 0.4 0.4 0.5 0.5\n"

	entries := ParseFile(content)
	require.Len(t, entries, 2)

	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, 1, entries[0].Label)
	assert.Equal(t, 2, entries[0].PointsCount)

	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, 0, entries[1].Label)
	assert.Equal(t, 3, entries[1].PointsCount)
}

func TestParseFileDenseIndicesOverValidLines(t *testing.T) {
	// Blank and malformed lines are dropped without consuming an index slot.
	content := "1 0.1 0.1 0.2 0.2\n\nnot-a-label 0.1 0.2 0.3 0.4\n2 0.3 0.3 0.4 0.4\n"

	entries := ParseFile(content)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, 2, entries[1].Label)
}

func TestParseFileEmpty(t *testing.T) {
	assert.Empty(t, ParseFile(""))
	assert.Empty(t, ParseFile("\n\n\n"))
}

func TestParseFileOddTokenCount(t *testing.T) {
	// points_count is the floor of half the token count.
	entries := ParseFile("1 0.1 0.2 0.3 0.4 0.5")
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].PointsCount)
}
