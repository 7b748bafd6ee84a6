package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/captioner/internal/logging"
)

// Runtime holds the settings that can change while the server runs.
type Runtime struct {
	FFmpeg         string
	FFprobe        string
	DefaultTimeout time.Duration
	Logging        logging.Config
}

type runtimeFile struct {
	Tools struct {
		FFmpeg           string `toml:"ffmpeg"`
		FFprobe          string `toml:"ffprobe"`
		DefaultTimeoutMS int64  `toml:"default_timeout_ms"`
	} `toml:"tools"`
	Logging map[string]any `toml:"logging"`
}

// LoadRuntime reads the [tools] and [logging] tables. Unlike LoadConfig it
// fails on a missing or malformed file so a watcher keeps the last good state.
func LoadRuntime(path string) (Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Runtime{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw runtimeFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Runtime{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if raw.Tools.DefaultTimeoutMS < 0 {
		return Runtime{}, fmt.Errorf("tools.default_timeout_ms must not be negative, got %d", raw.Tools.DefaultTimeoutMS)
	}

	return Runtime{
		FFmpeg:         raw.Tools.FFmpeg,
		FFprobe:        raw.Tools.FFprobe,
		DefaultTimeout: time.Duration(raw.Tools.DefaultTimeoutMS) * time.Millisecond,
		Logging:        loggingFromTable(raw.Logging),
	}, nil
}

// loggingFromTable treats level and format as globals. Any other string key,
// or an entry of a nested [logging.modules] table, is a per-module level.
func loggingFromTable(table map[string]any) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	for key, value := range table {
		switch v := value.(type) {
		case string:
			switch key {
			case "level":
				cfg.Level = v
			case "format":
				cfg.Format = v
			default:
				cfg.Modules[key] = v
			}
		case map[string]any:
			if key != "modules" {
				continue
			}
			for module, level := range v {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		}
	}
	return cfg
}
