package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("verbose")
	assert.Error(t, err)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "nope", Format: "json"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "console", Caller: true})
	assert.NoError(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithUserID(ctx, "u1")
	ctx = WithSessionID(ctx, "s1")
	ctx = WithRequestID(ctx, "r1")
	fields := ContextFields(ctx)
	require.Len(t, fields, 3)

	assert.Equal(t, "u1", UserIDFromContext(ctx))
	assert.Equal(t, "s1", SessionIDFromContext(ctx))
	assert.Equal(t, "r1", RequestIDFromContext(ctx))
}

func TestContextFieldsAttached(t *testing.T) {
	log := NewTestLogger()
	ctx := WithSessionID(context.Background(), "s42")

	log.Info(ctx, "turn handled")

	entries := log.All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "session.id", entries[0].Context[0].Key)
	assert.Equal(t, "s42", entries[0].Context[0].String)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log := NewNop()
	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
