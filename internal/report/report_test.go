package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporter_CollectsMessages(t *testing.T) {
	rep := New(nil, true)
	rep.Announce("header %s", "vac_1_Cd")
	rep.Detail("detail %d", 42)
	rep.Warn("warning %s", "missing file")

	assert.Equal(t, []string{"header vac_1_Cd", "detail 42"}, rep.Infos())
	assert.Equal(t, []string{"warning missing file"}, rep.Warnings())
}

func TestReporter_VerboseGating(t *testing.T) {
	rep := New(nil, false)
	rep.Announce("always")
	rep.Detail("only when verbose")
	rep.Warn("always too")

	assert.Equal(t, []string{"always"}, rep.Infos())
	assert.Equal(t, []string{"always too"}, rep.Warnings())
}

func TestReporter_LogsThroughZapWithRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rep := New(zap.New(core), true)
	require.NotEmpty(t, rep.RunID())

	rep.Warn("problem parsing %s", "vac_1_Cd_-2.txt")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "problem parsing vac_1_Cd_-2.txt", entries[0].Message)
	assert.Equal(t, rep.RunID(), entries[0].ContextMap()["run_id"])
}

func TestReporter_DistinctRunIDs(t *testing.T) {
	a, b := New(nil, true), New(nil, true)
	assert.NotEqual(t, a.RunID(), b.RunID())
}
