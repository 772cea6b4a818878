package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xadmin/pkg/context/xctx"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

// =============================================================================
// Level
// =============================================================================

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
		"OFF":     LevelOff,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestBuilder_LevelOffSilences(t *testing.T) {
	var buf bytes.Buffer
	logger, _, cleanup, err := New().SetOutput(&buf).SetLevelString("off").Build()
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	logger.Error("boom")
	assert.Empty(t, buf.String())
}

// =============================================================================
// Builder
// =============================================================================

func TestBuilder_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, lv, cleanup, err := New().
		SetOutput(&buf).
		SetLevelString("warn").
		SetFormat("JSON").
		Build()
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.InDelta(t, 1, lines[0]["k"], 0)

	lv.Set(slog.LevelDebug)
	logger.Debug("now visible")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestBuilder_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, _, err := New().SetOutput(&buf).SetFormat("").Build()
	require.NoError(t, err)

	logger.Info("hello", "who", "admin")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "who=admin")
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	_, _, _, err := New().SetFormat("xml").SetLevelString("loud").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	_, _, _, err = New().SetLevelString("loud").SetFormat("xml").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown level")

	_, _, _, err = New().SetRotation("  ", RotationConfig{}).Build()
	assert.ErrorIs(t, err, ErrEmptyFilename)
}

func TestBuilder_EmptyLevelKeepsDefault(t *testing.T) {
	_, lv, _, err := New().SetLevelString("").Build()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lv.Level())
}

func TestBuilder_Redact(t *testing.T) {
	var buf bytes.Buffer
	logger, _, _, err := New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)

	logger.Info("login",
		"username", "admin",
		"password", "admin123",
		"Access_Token", "eyJ.a.b",
		slog.Group("req", slog.String("authorization", "Bearer x")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "admin", lines[0]["username"])
	assert.Equal(t, Redacted, lines[0]["password"])
	assert.Equal(t, Redacted, lines[0]["Access_Token"])
	req, ok := lines[0]["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, Redacted, req["authorization"])
}

func TestBuilder_RedactDisabledWithCustomReplace(t *testing.T) {
	var buf bytes.Buffer
	logger, _, _, err := New().
		SetOutput(&buf).
		SetFormat("json").
		SetRedact(false).
		SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}).
		Build()
	require.NoError(t, err)

	logger.Info("x", "password", "plain")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "plain", lines[0]["password"])
	assert.NotContains(t, lines[0], slog.TimeKey)
}

func TestBuilder_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, _, _, err := New().
		SetOutput(&buf).
		SetFormat("json").
		With(slog.String("service", "xadminctl")).
		Build()
	require.NoError(t, err)

	logger.Info("x")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "xadminctl", lines[0]["service"])
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xadmin.log")
	logger, _, cleanup, err := New().
		SetFormat("json").
		SetRotation(path, RotationConfig{MaxSizeMB: 1}).
		Build()
	require.NoError(t, err)

	logger.Info("rotated", "n", 1)
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"rotated"`)
}

func TestRotationConfig_Defaults(t *testing.T) {
	cfg := RotationConfig{MaxBackups: 3}
	cfg.applyDefaults()
	assert.Equal(t, DefaultMaxSizeMB, cfg.MaxSizeMB)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, cfg.MaxAgeDays)
}

// =============================================================================
// EnrichHandler
// =============================================================================

func TestEnrichHandler(t *testing.T) {
	_, err := NewEnrichHandler(nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	var buf bytes.Buffer
	h, err := NewEnrichHandler(slog.NewJSONHandler(&buf, nil))
	require.NoError(t, err)
	logger := slog.New(h).With("static", "v").WithGroup("g")

	ctx, err := xctx.WithRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	ctx, err = xctx.WithUser(ctx, "13", "admin")
	require.NoError(t, err)

	logger.InfoContext(ctx, "with ctx", "a", 1)
	logger.InfoContext(context.Background(), "without ctx")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "v", lines[0]["static"])
	g, ok := lines[0]["g"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req-1", g[xctx.KeyRequestID])
	assert.Equal(t, "13", g[xctx.KeyUserID])
	assert.Equal(t, "admin", g[xctx.KeyUsername])

	assert.NotContains(t, lines[1], "g")
}

func TestEnrichHandler_Enabled(t *testing.T) {
	h, err := NewEnrichHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	require.NoError(t, err)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive("RefreshToken"))
	assert.True(t, IsSensitive("secret"))
	assert.False(t, IsSensitive("username"))
}
