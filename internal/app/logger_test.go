package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug", "console"))
	require.NoError(t, ConfigureLogging("", "json"))
	require.NoError(t, ConfigureLogging("warn", ""))
	require.NoError(t, ConfigureLogging("nonsense", "json"))
}
