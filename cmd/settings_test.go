package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pomo/internal/models"
)

func settingsFlags(t *testing.T) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "set"}
	c.Flags().IntVar(&settingsWork, "work", 0, "")
	c.Flags().IntVar(&settingsShort, "short", 0, "")
	c.Flags().IntVar(&settingsLong, "long", 0, "")
	c.Flags().IntVar(&settingsInterval, "interval", 0, "")
	return c
}

func TestMergeSettings_OnlyChangedFlags(t *testing.T) {
	c := settingsFlags(t)
	require.NoError(t, c.Flags().Set("work", "50"))
	require.NoError(t, c.Flags().Set("interval", "3"))

	got := mergeSettings(c, models.DefaultSettings())
	assert.Equal(t, 50*60, got.WorkDurationSeconds)
	assert.Equal(t, 5*60, got.ShortBreakDurationSeconds)
	assert.Equal(t, 15*60, got.LongBreakDurationSeconds)
	assert.Equal(t, 3, got.LongBreakInterval)
}

func TestMergeSettings_NoFlags(t *testing.T) {
	c := settingsFlags(t)
	assert.Equal(t, models.DefaultSettings(), mergeSettings(c, models.DefaultSettings()))
}

func TestConfiguredSettings(t *testing.T) {
	testEnv(t)
	assert.Equal(t, models.DefaultSettings(), configuredSettings())
}
