package reduce

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "irreduce.yaml")
	content := `name: shaders
finders:
  remove-debug-name:
    enabled: true
  merge-blocks:
    enabled: false
oracle:
  command: ["./interesting.sh", "--strict"]
  validator: spirv-val --target-env vulkan1.1
  timeout: 5s
limits:
  max_passes: 3
  timeout: 10m
parallel: true
cache_max_age: 24h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "shaders", config.Name)
	assert.True(t, config.Finders["remove-debug-name"].IsEnabled(false))
	assert.False(t, config.Finders["merge-blocks"].IsEnabled(true))
	assert.Equal(t, []string{"./interesting.sh", "--strict"}, config.Oracle.Command)
	assert.Equal(t, []string{"spirv-val", "--target-env", "vulkan1.1"}, config.Oracle.ValidatorArgv())
	assert.Equal(t, 5*time.Second, config.Oracle.Timeout)
	assert.Equal(t, 3, config.Limits.MaxPasses)
	assert.Equal(t, 10*time.Minute, config.Limits.Timeout)
	assert.True(t, config.Parallel)
	assert.Equal(t, 24*time.Hour, config.CacheMaxAge)

	// Unset fields keep their defaults.
	assert.Equal(t, DefaultConfig().Limits.MaxConsecutiveOracleFailures, config.Limits.MaxConsecutiveOracleFailures)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("finderz: {}\n"), 0o644))
	_, err = LoadConfig(unknown)
	assert.Error(t, err)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "irreduce.yaml")
	config := DefaultConfig()
	config.Oracle.Command = []string{"sh", "-c", "exit 0"}

	require.NoError(t, WriteConfig(path, config))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
	assert.Nil(t, loaded.Oracle.ValidatorArgv())
}
