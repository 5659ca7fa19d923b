package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhq/gavel/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("log_db_path", filepath.Join(dir, "gavel.db"))
	viper.SetDefault("reviewer.backend", "cli")
	viper.SetDefault("reviewer.command", "codex")
	viper.SetDefault("reviewer.timeout", 120)
	viper.SetDefault("review.max_iterations", 10)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Initialize output
	ui = output.New()

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gavel configuration")
	assert.Contains(t, string(data), "reviewer")
	assert.Contains(t, string(data), "max_iterations: 10")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	t.Cleanup(func() { configForce = false })
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gavel configuration")
}

func TestConfigInit_GeneratedFileIsValidYAML(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, configInitRun())

	values := readConfigFileValues(filepath.Join(dir, "config.yaml"))
	assert.True(t, values["reviewer.backend"])
	assert.True(t, values["review.max_iterations"])
	assert.True(t, values["anthropic.model"])
}

func TestDetectSource(t *testing.T) {
	t.Setenv("GAVEL_TEST_ONLY_VAR", "1")

	assert.Equal(t, "(env: GAVEL_TEST_ONLY_VAR)", detectSource("x", "GAVEL_TEST_ONLY_VAR", nil))
	assert.Equal(t, "(file)", detectSource("reviewer.command", "GAVEL_UNSET_VAR", map[string]bool{"reviewer.command": true}))
	assert.Equal(t, "(default)", detectSource("reviewer.command", "GAVEL_UNSET_VAR", nil))
}

func TestFlattenKeys(t *testing.T) {
	result := map[string]bool{}
	flattenKeys("", map[string]any{
		"state_dir": "/tmp",
		"reviewer": map[string]any{
			"backend": "cli",
			"timeout": 120,
		},
	}, result)

	assert.True(t, result["state_dir"])
	assert.True(t, result["reviewer.backend"])
	assert.True(t, result["reviewer.timeout"])
	assert.False(t, result["reviewer"])
}
