package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain"
)

func TestRenderRecordTable(t *testing.T) {
	var buf bytes.Buffer
	task := domain.Task{ID: 7, Title: "Fix it", Status: domain.TaskOpen, Priority: 3, CreatedBy: "zoe-1"}
	require.NoError(t, renderRecord(&buf, task))

	out := buf.String()
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "VALUE")
	assert.Contains(t, out, "Fix it")
	assert.NotContains(t, out, `"Fix it"`)
	assert.Contains(t, out, "zoe-1")
	assert.NotContains(t, out, "null")

	lines := strings.Split(out, "\n")
	var title, status int
	for i, l := range lines {
		if strings.Contains(l, "| title") {
			title = i
		}
		if strings.Contains(l, "| status") {
			status = i
		}
	}
	assert.Greater(t, title, status, "fields are sorted")
}

func TestRenderRecordNested(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRecord(&buf, map[string]any{"blocked": true, "task": map[string]int{"id": 1}}))
	out := buf.String()
	assert.Contains(t, out, "true")
	assert.Contains(t, out, `{"id":1}`)
}

func TestRenderRecordScalar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRecord(&buf, []string{"a", "b"}))
	assert.Equal(t, "[\"a\",\"b\"]\n", buf.String())
}
