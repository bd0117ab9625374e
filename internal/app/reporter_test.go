package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/pkg/log"
)

func TestLogReporter_Fields(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(log.NewJSONAdapter(&buf))

	r.Report(&domain.ReplayError{Message: "conflict", Code: "DUP", Status: 409},
		domain.ReportContext{Scope: domain.ReportScope, Op: domain.OpReplay, ID: "7"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "syncManager", entry["scope"])
	assert.Equal(t, "replayQueueItem", entry["op"])
	assert.Equal(t, "7", entry["id"])
	assert.Equal(t, float64(409), entry["status"])
	assert.Equal(t, "DUP", entry["code"])
}

func TestMultiReporter(t *testing.T) {
	a, b := &fakeReporter{}, &fakeReporter{}
	m := MultiReporter{a, nil, b}

	m.Report(errors.New("x"), domain.ReportContext{Op: domain.OpReadQueue})

	assert.Len(t, a.Reports(), 1)
	assert.Len(t, b.Reports(), 1)
}
