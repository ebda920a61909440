package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/config"
)

func TestParseReadsRecognizedOptions(t *testing.T) {
	src := strings.NewReader(strings.Join([]string{
		"# a comment",
		"",
		"extent_size 32768",
		"pages_per_extent = 8",
		"cache_max_size_mb 256",
		"log_level debug",
		"recovery_enabled true",
		"recovery_log_file /var/log/mlg-recovery.log",
	}, "\n"))

	c, err := config.Parse(src)
	require.NoError(t, err)

	assert.Equal(t, int64(32768), c.ExtentSize)
	assert.Equal(t, 8, c.PagesPerExtent)
	assert.Equal(t, int64(256), c.CacheMaxSizeMB)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.RecoveryEnabled)
	assert.Equal(t, "/var/log/mlg-recovery.log", c.RecoveryLogFile)

	assert.NoError(t, c.Validate())
}

func TestParseRejectsUnrecognizedOption(t *testing.T) {
	_, err := config.Parse(strings.NewReader("bogus_option 1"))
	assert.Error(t, err)
}

func TestValidateRejectsNonPowerOfTwoExtentSize(t *testing.T) {
	c, err := config.Parse(strings.NewReader("extent_size 5000"))
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}

func TestValidateAllowsZeroAsUnlimited(t *testing.T) {
	c, err := config.Parse(strings.NewReader("pool_persistent_max_size 0"))
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsRecoveryEnabledWithoutLogFile(t *testing.T) {
	c, err := config.Parse(strings.NewReader("recovery_enabled true"))
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}
