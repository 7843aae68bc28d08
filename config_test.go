package llmqd

import (
	"path/filepath"
	"testing"

	"github.com/piratecash/llmqd/signal"
	"github.com/stretchr/testify/require"
)

// TestValidateConfig checks that a config rooted in a custom directory is
// namespaced per network and fails on bad sub configs.
func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.LlmqdDir = dir
	cfg.Network = "testnet"
	cfg.DebugLevel = "debug,LLMQ=trace"
	cfg.LLMQ.QvvecSync = []string{"llmq_60_75:1"}

	cleanCfg, err := ValidateConfig(cfg, signal.Interceptor{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cleanCfg.LogRotator.Close())
	})

	require.Equal(t, filepath.Join(dir, defaultDataDirname),
		cleanCfg.DataDir)
	require.Equal(t, filepath.Join(dir, defaultLogDirname, "testnet"),
		cleanCfg.LogDir)
	require.Equal(t, "testnet", cleanCfg.NetParams.Name)
	require.Equal(t, filepath.Join(dir, defaultDataDirname, "testnet"),
		cleanCfg.networkDir())
	require.Len(t, cleanCfg.LLMQ.QvvecModes(), 1)
	require.Contains(
		t, cleanCfg.SubLogMgr.SupportedSubsystems(), "LLMQ",
	)

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{
			name:   "unknown network",
			modify: func(c *Config) { c.Network = "moonnet" },
		},
		{
			name: "qvvec type of another network",
			modify: func(c *Config) {
				c.Network = "regtest"
				c.LLMQ.QvvecSync = []string{"llmq_400_85:0"}
			},
		},
		{
			name:   "bad simnet",
			modify: func(c *Config) { c.Simnet.BanRate = -1 },
		},
		{
			name:   "bad db",
			modify: func(c *Config) { c.DB.CacheSize = 0 },
		},
	}
	for _, tc := range tests {
		cfg := DefaultConfig()
		cfg.LlmqdDir = t.TempDir()
		tc.modify(&cfg)

		_, err := ValidateConfig(cfg, signal.Interceptor{})
		require.Error(t, err, tc.name)
	}
}

// TestCleanAndExpandPath checks the path normalization.
func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("LLMQD_TEST_DIR", "/tmp/llmqd")

	require.Empty(t, CleanAndExpandPath(""))
	require.Equal(t, "/tmp/llmqd/data",
		CleanAndExpandPath("$LLMQD_TEST_DIR/./data/"))
	require.Equal(t, "/a/c", CleanAndExpandPath("/a/b/../c"))
}
