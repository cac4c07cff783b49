package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusFinalizing, true},
		{StatusProcessing, StatusProcessing, false},
		{StatusFinalizing, StatusProcessing, false},
		{StatusFinalizing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusFinalizing, StatusError, true},
		{StatusCompleted, StatusError, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusError, StatusCompleted, false},
		{StatusError, StatusError, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestProgressEvent_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ProgressEvent{Kind: EventComplete, Processed: 2, Failures: 0, Message: "done"})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "complete", got["event"])
	assert.Equal(t, float64(2), got["processed"])
	assert.Equal(t, float64(0), got["failures"])
	assert.NotContains(t, got, "current")
}

func TestTableGrid_Cell(t *testing.T) {
	g := TableGrid{{"a", "b"}, {"c"}}
	v, ok := g.Cell(0, 1)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = g.Cell(1, 1)
	assert.False(t, ok)
	assert.Equal(t, 2, g.Columns())
}

func TestParseOutputFormat(t *testing.T) {
	f, ok := ParseOutputFormat("csv")
	assert.True(t, ok)
	assert.Equal(t, "csv", f.Extension())
	_, ok = ParseOutputFormat("pdf")
	assert.False(t, ok)
	assert.Equal(t, "xlsx", FormatExcel.Extension())
}
