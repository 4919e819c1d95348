package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	prevConfigs, prevPath := configs, ConfigPath
	t.Cleanup(func() {
		configs, ConfigPath = prevConfigs, prevPath
		delete(Info, "config_path")
	})
	configs, ConfigPath = nil, ""
}

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{surveillance: {port: 5001}}", string(parseConfString("surveillance.port=5001")))
	require.Equal(t, "{log: {api: trace}}", string(parseConfString("log.api=trace")))
	require.Nil(t, parseConfString("boxtrack.yaml"))
	require.Nil(t, parseConfString("port=5001"))
}

func TestLoadConfig(t *testing.T) {
	resetConfig(t)

	t.Setenv("BOXTRACK_TEST_PASS", "secret")

	path := filepath.Join(t.TempDir(), "boxtrack.yaml")
	data := `
surveillance:
  host: 192.168.1.20
  account: admin
  password: ${BOXTRACK_TEST_PASS}
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	initConfig(flagConfig{path, "surveillance.port=5001", `{surveillance: {account: operator}}`})

	require.Equal(t, path, ConfigPath)
	require.Equal(t, path, Info["config_path"])

	var cfg struct {
		Mod struct {
			Host     string        `yaml:"host"`
			Port     int           `yaml:"port"`
			Account  string        `yaml:"account"`
			Password string        `yaml:"password"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"surveillance"`
	}
	LoadConfig(&cfg)

	require.Equal(t, "192.168.1.20", cfg.Mod.Host)
	require.Equal(t, 5001, cfg.Mod.Port)
	require.Equal(t, "operator", cfg.Mod.Account)
	require.Equal(t, "secret", cfg.Mod.Password)
	require.Equal(t, 5*time.Second, cfg.Mod.Timeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	resetConfig(t)

	initConfig(nil)
	require.Empty(t, configs)
	require.True(t, filepath.IsAbs(ConfigPath))
	require.Equal(t, "boxtrack.yaml", filepath.Base(ConfigPath))

	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}
	LoadConfig(&cfg)
	require.Nil(t, cfg.Mod)
}
