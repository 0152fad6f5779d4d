package threaddata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalAnyNoMatchIsNil(t *testing.T) {
	v, err := EvalAny("missing.path", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMatchRecord(t *testing.T) {
	rec := map[string]any{"kind": "invoice", "total": 12.5}

	assert.True(t, MatchRecord("", rec))
	assert.True(t, MatchRecord("kind == 'invoice'", rec))
	assert.False(t, MatchRecord("kind == 'receipt'", rec))
	// Non-boolean selection counts as no match.
	assert.False(t, MatchRecord("kind", rec))
	// Broken expression counts as no match.
	assert.False(t, MatchRecord("][", rec))
}

func TestFilterRecordsKeepsMatches(t *testing.T) {
	records := []map[string]any{
		{"id": "a", "flagged": true},
		{"id": "b", "flagged": false},
		{"id": "c"},
	}
	out := FilterRecords("flagged == `true`", records)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0]["id"])
}
