package assetpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yacobolo/assetpipe/internal/graph"
)

func runReport(t *testing.T) Report {
	t.Helper()

	ok := func(context.Context) error { return nil }
	root := graph.Series("build",
		graph.Task("a", ok),
		graph.Task("b", func(context.Context) error { return errors.New("boom") }),
		graph.Task("c", ok),
	)
	result, err := graph.NewRunner().Run(context.Background(), root)
	require.Error(t, err)
	return NewReport("build", result, err)
}

func TestNewReport(t *testing.T) {
	r := runReport(t)

	assert.Equal(t, "1.0", r.Version)
	assert.Equal(t, "build", r.Workflow)
	assert.False(t, r.Succeeded)
	assert.Contains(t, r.Error, "boom")

	assert.Equal(t, ReportCounts{Total: 4, Succeeded: 1, Failed: 2, Skipped: 1}, r.Summary)

	var names []string
	for _, task := range r.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"build", "a", "b", "c"}, names)
	assert.Equal(t, "pending", r.Tasks[3].State)
	assert.Equal(t, "failed", r.Tasks[2].State)
	assert.Contains(t, r.Tasks[2].Error, "boom")
}

func TestNewReport_NoResult(t *testing.T) {
	r := NewReport("nope", nil, graph.ErrUnknownTask)

	assert.False(t, r.Succeeded)
	assert.Empty(t, r.Tasks)
	assert.Equal(t, 0, r.Summary.Total)
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteReport(t *testing.T) {
	r := runReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r, OutputJSON, false))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "build", decoded["workflow"])
	assert.Contains(t, decoded, "summary")

	buf.Reset()
	require.NoError(t, WriteReport(&buf, r, OutputText, false))
	assert.Equal(t, "✗ build 2 of 4 tasks failed, 1 skipped\n", buf.String())

	assert.Error(t, WriteReport(&buf, r, OutputFormat("xml"), false))
}
