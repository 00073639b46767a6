package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/looptide/looptide/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestParse(t *testing.T) {
	c, err := config.Parse([]byte(`
sample_rate: 48000
output_latency: 20ms
transfer_retry_delay: 100us
master_gain: 0.5
log_level: debug
metrics_addr: localhost:9090
`))
	require.NoError(t, err)
	require.Equal(t, 48000, c.SampleRate)
	require.Equal(t, 20*time.Millisecond, c.OutputLatency)
	require.Equal(t, 100*time.Microsecond, c.TransferRetryDelay)
	require.Equal(t, 0.5, c.MasterGain)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, "localhost:9090", c.MetricsAddr)
	require.Equal(t, 512, c.BlockSize, "unset fields keep their defaults")
}

func TestParseEmpty(t *testing.T) {
	c, err := config.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), c)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"LowSampleRate", "sample_rate: 100"},
		{"HugeBlock", "block_size: 100000"},
		{"SmallQueue", "block_size: 1024\nqueue_size: 1500"},
		{"NegativeGain", "master_gain: -1"},
		{"ZeroVoices", "max_voices: 0"},
		{"BadLevel", "log_level: loud"},
		{"BadAddr", "metrics_addr: nowhere"},
		{"UnknownField", "tempo: 120"},
		{"TooManyRetries", "transfer_retries: 1000"},
		{"BadDuration", "producer_idle: soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.src))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "looptide.yml")
	require.NoError(t, os.WriteFile(path, []byte("block_size: 256\n"), 0644))
	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 256, c.BlockSize)
	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := config.NewLogger("warn", &buf)
	require.NoError(t, err)
	require.Equal(t, logrus.WarnLevel, log.GetLevel())
	log.Info("hidden")
	log.WithFields(logrus.Fields{"component": "test"}).Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "component=test")
	_, err = config.NewLogger("loud", &buf)
	require.Error(t, err)
}
