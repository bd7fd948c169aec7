package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownSafeBeforeInitialize(t *testing.T) {
	// The entry point defers Shutdown before Initialize runs, so teardown
	// must tolerate a renderer and window that never came up.
	app, err := NewApplication(DefaultConfig())
	require.NoError(t, err)

	assert.NoError(t, app.Shutdown())
}
