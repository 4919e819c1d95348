package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/boxtrack/boxtrack/pkg/shell"
	"gopkg.in/yaml.v3"
)

const defaultConfig = "boxtrack.yaml"

// ConfigPath - absolute path of the first config file, served by api/config.
var ConfigPath string

// LoadConfig decodes every config source into v, later sources override
// earlier ones. Each module passes a struct with its own section.
func LoadConfig(v any) {
	for _, data := range configs {
		if err := yaml.Unmarshal(data, v); err != nil {
			Logger.Warn().Err(err).Msg("[app] read config")
		}
	}
}

// flagConfig collects repeated -config flags
type flagConfig []string

func (c *flagConfig) String() string {
	return strings.Join(*c, " ")
}

func (c *flagConfig) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var configs [][]byte

func initConfig(sources flagConfig) {
	if sources == nil {
		sources = flagConfig{defaultConfig}
	}

	for _, src := range sources {
		if data := readSource(src); data != nil {
			configs = append(configs, data)
		}
	}

	if ConfigPath == "" {
		return
	}

	if !filepath.IsAbs(ConfigPath) {
		if cwd, err := os.Getwd(); err == nil {
			ConfigPath = filepath.Join(cwd, ConfigPath)
		}
	}

	Info["config_path"] = ConfigPath
}

// readSource accepts inline YAML (`{surveillance: {host: nas}}`), a single
// key (`surveillance.port=5001`) or a file path. A missing file is skipped
// but still becomes ConfigPath.
func readSource(src string) []byte {
	switch {
	case src == "":
		return nil
	case src[0] == '{':
		return []byte(shell.ReplaceEnvVars(src))
	}

	if data := parseConfString(src); data != nil {
		return data
	}

	if ConfigPath == "" {
		ConfigPath = src
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil
	}

	return []byte(shell.ReplaceEnvVars(string(data)))
}

// parseConfString converts `measure.buffer=32` to `{measure: {buffer: 32}}`.
func parseConfString(s string) []byte {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return nil
	}

	keys := strings.Split(key, ".")
	if len(keys) < 2 {
		return nil
	}

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString("{" + k + ": ")
	}
	sb.WriteString(value)
	sb.WriteString(strings.Repeat("}", len(keys)))

	return []byte(sb.String())
}
