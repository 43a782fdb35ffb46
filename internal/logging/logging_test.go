package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture swaps both output streams for buffers until the test ends.
func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	err := &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, err
	t.Cleanup(func() {
		stdout, stderr = prevOut, prevErr
		require.NoError(t, Initialize("info"))
	})
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")
	return out, err
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WARN, level)

	level, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, ERROR, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("warn"))

	logger := GetLogger("component")
	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, out.String(), "quiet")
	assert.Contains(t, out.String(), "[WARN] component: loud")
}

func TestPackageOverrides(t *testing.T) {
	require.NoError(t, Initialize("info", map[string]string{
		"storage.*":     "error",
		"storage.redis": "debug",
	}))
	t.Cleanup(func() { require.NoError(t, Initialize("info")) })

	// Exact match beats the wildcard.
	assert.Equal(t, DEBUG, effectiveLevel("storage.redis"))
	// Wildcard covers the rest of the subtree.
	assert.Equal(t, ERROR, effectiveLevel("storage.query"))
	// Unmatched names use the default.
	assert.Equal(t, INFO, effectiveLevel("pipeline"))
}

func TestLongestWildcardWins(t *testing.T) {
	require.NoError(t, Initialize("info", map[string]string{
		"api.*":          "warn",
		"api.handlers.*": "debug",
	}))
	t.Cleanup(func() { require.NoError(t, Initialize("info")) })

	assert.Equal(t, DEBUG, effectiveLevel("api.handlers.query"))
	assert.Equal(t, WARN, effectiveLevel("api.server"))
}

func TestInvalidOverrideLevel(t *testing.T) {
	err := Initialize("info", map[string]string{"storage": "shouty"})
	assert.Error(t, err)
}

func TestErrorsGoToStderr(t *testing.T) {
	out, errOut := capture(t)
	require.NoError(t, Initialize("debug"))

	logger := GetLogger("component")
	logger.Debug("to stdout")
	logger.Error("to stderr")

	assert.Contains(t, out.String(), "to stdout")
	assert.NotContains(t, out.String(), "to stderr")
	assert.Contains(t, errOut.String(), "[ERROR] component: to stderr")
}

func TestFieldsSortedAndMerged(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("info"))

	logger := GetLogger("component").WithField("b", 2).WithField("a", 1)
	logger.InfoWithFields("msg", Field("c", 3))

	assert.Contains(t, out.String(), "component: msg | a=1 b=2 c=3")
}

func TestCallFieldsOverridePersistent(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("info"))

	logger := GetLogger("component").WithField("key", "old")
	logger.InfoWithFields("msg", Field("key", "new"))

	assert.Contains(t, out.String(), "key=new")
	assert.NotContains(t, out.String(), "key=old")
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("info"))

	parent := GetLogger("component")
	_ = parent.WithField("child_only", true)
	parent.Info("plain")

	assert.NotContains(t, out.String(), "child_only")
}

func TestContextTraceFields(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("info"))

	ctx := context.WithValue(context.Background(), TraceIDKey(), "trace-123")
	ctx = context.WithValue(ctx, SpanIDKey(), "span-456")

	GetLogger("component").WithContext(ctx).Info("traced")

	assert.Contains(t, out.String(), "span_id=span-456")
	assert.Contains(t, out.String(), "trace_id=trace-123")
}

func TestErrorWithErr(t *testing.T) {
	_, errOut := capture(t)
	require.NoError(t, Initialize("info"))

	GetLogger("component").ErrorWithErr("query failed", assert.AnError)

	assert.Contains(t, errOut.String(), "query failed - "+assert.AnError.Error())
}

func TestFatalCallsExit(t *testing.T) {
	_, errOut := capture(t)
	require.NoError(t, Initialize("info"))

	var code int
	prevExit := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = prevExit })

	GetLogger("component").Fatal("going down")

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "[FATAL] component: going down")
}

func TestTimestampOverride(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, Initialize("info"))

	GetLogger("component").Info("stamped")

	assert.Contains(t, out.String(), "[2024-01-01T00:00:00Z]")
}
