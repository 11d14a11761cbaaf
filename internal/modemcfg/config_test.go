package modemcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesLayerDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 300, cfg.BaudRate)
	assert.Equal(t, 1200, cfg.MarkFreq)
	assert.Equal(t, 2200, cfg.SpaceFreq)
	assert.Equal(t, 64, cfg.FragmentSize)
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().BaudRate, cfg.BaudRate)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modumb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baud_rate: 1200\nloopback: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.BaudRate)
	assert.True(t, cfg.Loopback)
}

func TestEnvOverridesLoopbackAndDevices(t *testing.T) {
	t.Setenv("MODEM_LOOPBACK", "true")
	t.Setenv("MODEM_INPUT_DEVICE", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Loopback)
	require.NotNil(t, cfg.InputDevice)
	assert.Equal(t, 3, *cfg.InputDevice)
}

func TestFlagsOverrideYAMLAndDefaults(t *testing.T) {
	base := Default()
	base.BaudRate = 1200 // as if loaded from YAML

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cf := RegisterFlags(fs, base)
	require.NoError(t, fs.Parse([]string{"--retries", "5"}))

	merged := cf.Apply(base)
	assert.Equal(t, 1200, merged.BaudRate, "unset flag keeps the YAML value")
	assert.Equal(t, 5, merged.Retries, "explicitly set flag overrides")
}

func TestProjections(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.SampleRate, cfg.AudioConfig().SampleRate)
	assert.Equal(t, cfg.BaudRate, cfg.AFSKParams().BaudRate)
	assert.Equal(t, cfg.HandshakeRetries, cfg.SessionConfig().HandshakeRetries)

	timeout, retries, fragment := cfg.TransportArgs()
	assert.Equal(t, cfg.Retries, retries)
	assert.Equal(t, cfg.FragmentSize, fragment)
	assert.Greater(t, timeout.Milliseconds(), int64(0))
}
