package log

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/scenekit/internal/core/ecs"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core, LevelDebug)

	logger.With(String("component", "scene")).Info("loaded",
		Entity("root", ecs.Entity(3)),
		Entities("created", []ecs.Entity{1, 2, 3}),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "scene", ctx["component"])
	assert.Equal(t, "3v0", ctx["root"])
	assert.EqualValues(t, 3, ctx["created"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestSetLevelAppliesToDerivedLoggers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core, LevelInfo)
	child := logger.With(String("k", "v"))

	child.Debug("dropped")
	assert.Equal(t, 0, logs.Len())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, child.GetLevel())
	child.Debug("kept")
	logger.Log(LevelWarn, "warned")
	assert.Equal(t, 2, logs.Len())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		" error ": LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("chatty")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}
