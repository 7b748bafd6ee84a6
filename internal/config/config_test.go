package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	Config string

	Port           int           `toml:"server.port" env:"PORT"`
	ToolsFFmpeg    string        `toml:"tools.ffmpeg" env:"TOOLS_FFMPEG"`
	DefaultTimeout time.Duration `toml:"tools.default_timeout" env:"TOOLS_DEFAULT_TIMEOUT"`
	AuthEnabled    bool          `toml:"auth.enabled" env:"AUTH_ENABLED"`
	Speed          float64       `toml:"render.speed" env:"RENDER_SPEED"`
	Origins        []string      `toml:"server.origins" env:"SERVER_ORIGINS"`
}

const sampleTOML = `
[server]
port = 8090
origins = ["http://localhost:5173", "http://example.com"]

[tools]
ffmpeg = "/usr/local/bin/ffmpeg"
default_timeout = "90s"

[auth]
enabled = true

[render]
speed = 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, content)
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &serveOptions{Config: writeConfig(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Port != 8090 {
		t.Errorf("Port = %d", opts.Port)
	}
	if opts.ToolsFFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("ToolsFFmpeg = %q", opts.ToolsFFmpeg)
	}
	if opts.DefaultTimeout != 90*time.Second {
		t.Errorf("DefaultTimeout = %v", opts.DefaultTimeout)
	}
	if !opts.AuthEnabled {
		t.Error("AuthEnabled = false")
	}
	if opts.Speed != 2 {
		t.Errorf("Speed = %v", opts.Speed)
	}
	want := []string{"http://localhost:5173", "http://example.com"}
	if !reflect.DeepEqual(opts.Origins, want) {
		t.Errorf("Origins = %v", opts.Origins)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("CAPTIONER_PORT", "9000")
	t.Setenv("CAPTIONER_TOOLS_DEFAULT_TIMEOUT", "2500")
	t.Setenv("CAPTIONER_RENDER_SPEED", "0.5")
	t.Setenv("CAPTIONER_SERVER_ORIGINS", " a , b ")

	opts := &serveOptions{Config: writeConfig(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Port != 9000 {
		t.Errorf("Port = %d, want env value", opts.Port)
	}
	if opts.DefaultTimeout != 2500*time.Millisecond {
		t.Errorf("DefaultTimeout = %v, want 2.5s from bare millis", opts.DefaultTimeout)
	}
	if opts.Speed != 0.5 {
		t.Errorf("Speed = %v", opts.Speed)
	}
	if !reflect.DeepEqual(opts.Origins, []string{"a", "b"}) {
		t.Errorf("Origins = %v", opts.Origins)
	}
	if opts.ToolsFFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("ToolsFFmpeg = %q, file value should survive", opts.ToolsFFmpeg)
	}
}

func TestLoadConfigFlagWins(t *testing.T) {
	t.Setenv("CAPTIONER_PORT", "9000")

	opts := &serveOptions{Config: writeConfig(t, sampleTOML)}
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().IntVar(&opts.Port, "port", 8080, "")
	cmd.Flags().StringVar(&opts.ToolsFFmpeg, "tools-ffmpeg", "ffmpeg", "")
	if err := cmd.Flags().Parse([]string{"--port", "7000"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatal(err)
	}
	if opts.Port != 7000 {
		t.Errorf("Port = %d, want flag value", opts.Port)
	}
	if opts.ToolsFFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("ToolsFFmpeg = %q, unset flag should not block file", opts.ToolsFFmpeg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &serveOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if opts.Port != 8080 {
		t.Errorf("Port = %d, default should stay", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &serveOptions{Config: writeConfig(t, "[server\nport = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(serveOptions{}, nil); err == nil {
		t.Fatal("expected error for value argument")
	}
}

func TestLoadConfigBadEnvIgnored(t *testing.T) {
	t.Setenv("CAPTIONER_PORT", "eighty")
	t.Setenv("CAPTIONER_AUTH_ENABLED", "maybe")
	opts := &serveOptions{Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.Port != 8080 || opts.AuthEnabled {
		t.Errorf("unparseable env should be ignored, got %+v", opts)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	cases := map[string]string{
		"Port":           "port",
		"ToolsFFmpeg":    "tools-ffmpeg",
		"LoggingLevel":   "logging-level",
		"DefaultTimeout": "default-timeout",
	}
	for in, want := range cases {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	doc := map[string]any{
		"tools": map[string]any{"ffmpeg": "ff"},
		"flat":  "x",
	}
	if v := getNestedValue(doc, "tools.ffmpeg"); v != "ff" {
		t.Errorf("tools.ffmpeg = %v", v)
	}
	if v := getNestedValue(doc, "flat"); v != "x" {
		t.Errorf("flat = %v", v)
	}
	if v := getNestedValue(doc, "flat.deeper"); v != nil {
		t.Errorf("flat.deeper = %v, want nil", v)
	}
	if v := getNestedValue(doc, "tools.missing"); v != nil {
		t.Errorf("tools.missing = %v, want nil", v)
	}
}

func TestLoadRuntime(t *testing.T) {
	path := writeConfig(t, `
[tools]
ffmpeg = "/bin/ffmpeg"
ffprobe = "/bin/ffprobe"
default_timeout_ms = 30000

[logging]
level = "debug"
format = "json"
process = "warn"

[logging.modules]
render = "error"
`)
	rt, err := LoadRuntime(path)
	if err != nil {
		t.Fatal(err)
	}
	if rt.FFmpeg != "/bin/ffmpeg" || rt.FFprobe != "/bin/ffprobe" {
		t.Errorf("tools = %q %q", rt.FFmpeg, rt.FFprobe)
	}
	if rt.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v", rt.DefaultTimeout)
	}
	if rt.Logging.Level != "debug" || rt.Logging.Format != "json" {
		t.Errorf("logging = %+v", rt.Logging)
	}
	want := map[string]string{"process": "warn", "render": "error"}
	if !reflect.DeepEqual(rt.Logging.Modules, want) {
		t.Errorf("modules = %v, want %v", rt.Logging.Modules, want)
	}
}

func TestLoadRuntimeNegativeTimeout(t *testing.T) {
	path := writeConfig(t, "[tools]\ndefault_timeout_ms = -1\n")
	if _, err := LoadRuntime(path); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}
