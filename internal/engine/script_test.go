package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptRunnerCompletionValue(t *testing.T) {
	runner := NewScriptRunner()

	value, err := runner.Run(context.Background(), `1 + 2`, nil, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 3, value)
}

func TestScriptRunnerBindings(t *testing.T) {
	runner := NewScriptRunner()
	bindings := map[string]any{
		"ticket": map[string]any{"priority": "high"},
	}

	value, err := runner.Run(context.Background(), `ticket.priority === "high"`, bindings, time.Second)
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestScriptRunnerDeadline(t *testing.T) {
	runner := NewScriptRunner()

	_, err := runner.Run(context.Background(), `while (true) {}`, nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errScriptTimeout)
}

func TestScriptRunnerContextCancel(t *testing.T) {
	runner := NewScriptRunner()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, `while (true) {}`, nil, time.Minute)
	require.Error(t, err)
}

func TestScriptRunnerSyntaxError(t *testing.T) {
	runner := NewScriptRunner()

	_, err := runner.Run(context.Background(), `if (`, nil, time.Second)
	require.Error(t, err)
}

func TestScriptRunnerIsolation(t *testing.T) {
	runner := NewScriptRunner()

	// each run gets a fresh VM, globals do not leak between executions
	_, err := runner.Run(context.Background(), `globalThis.leak = 42`, nil, time.Second)
	require.NoError(t, err)

	value, err := runner.Run(context.Background(), `typeof leak`, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "undefined", value)
}
