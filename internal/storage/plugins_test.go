package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	states, err := s.PluginStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)

	require.NoError(t, s.SavePluginState(ctx, "tracker", false))
	require.NoError(t, s.SavePluginState(ctx, "notifier", true))
	require.NoError(t, s.SavePluginState(ctx, "tracker", true))
	require.NoError(t, s.SavePluginState(ctx, "tracker", false))

	states, err = s.PluginStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"tracker": false, "notifier": true}, states)
}
