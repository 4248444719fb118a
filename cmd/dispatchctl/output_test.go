package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dtroode/fieldops/internal/model"
)

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		{ID: "t-3", Title: "Replace filter", Status: model.TaskStatusCompleted, CreatedAt: time.UnixMilli(1718000003000)},
		{ID: "t-2", Title: "Inspect valve", Status: model.TaskStatusInProgress, CreatedAt: time.UnixMilli(1718000002000)},
		{ID: "t-1", Title: "Check pump", Status: model.TaskStatusPending, CreatedAt: time.UnixMilli(1718000001000)},
	}
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatTable)
	require.NoError(t, err)

	require.NoError(t, p.snapshot(sampleSnapshot()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[0], "TITLE")

	tests := []struct {
		line   string
		fields []string
	}{
		{line: lines[1], fields: []string{"t-3", "COMPLETED", "Replace filter"}},
		{line: lines[2], fields: []string{"t-2", "IN_PROGRESS", "complete", "Inspect valve"}},
		{line: lines[3], fields: []string{"t-1", "PENDING", "start", "Check pump"}},
	}
	for _, tt := range tests {
		for _, f := range tt.fields {
			assert.Contains(t, tt.line, f)
		}
	}
	assert.NotContains(t, lines[1], "complete")
}

func TestPrinter_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatTable)
	require.NoError(t, err)

	require.NoError(t, p.snapshot(nil))
	assert.Equal(t, "No tasks.\n", buf.String())
}

func TestPrinter_YAML(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatYAML)
	require.NoError(t, err)

	require.NoError(t, p.snapshot(sampleSnapshot()))
	require.NoError(t, p.snapshot(model.Snapshot{}))

	dec := yaml.NewDecoder(&buf)
	var first, second snapshotDoc
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	require.Len(t, first.Tasks, 3)
	assert.Equal(t, "t-3", first.Tasks[0].ID)
	assert.Equal(t, model.TaskStatusInProgress, first.Tasks[1].Status)
	assert.Empty(t, second.Tasks)
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatJSON)
	require.NoError(t, err)

	require.NoError(t, p.snapshot(sampleSnapshot()))

	var doc snapshotDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Tasks, 3)
	assert.Equal(t, "Check pump", doc.Tasks[2].Title)
}

func TestPrinter_UnknownFormat(t *testing.T) {
	_, err := newPrinter(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}

func TestNextAction(t *testing.T) {
	tests := []struct {
		status model.TaskStatus
		want   string
	}{
		{model.TaskStatusPending, "start"},
		{model.TaskStatusInProgress, "complete"},
		{model.TaskStatusCompleted, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, nextAction(model.Task{Status: tt.status}))
		})
	}
}
