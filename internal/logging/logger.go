package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that packages depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the global level, the output format and per-module levels.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"` // module name -> level
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry owns the module loggers and the shared sinks.
type registry struct {
	mu          sync.RWMutex
	config      Config
	initialized bool
	global      slog.LevelVar
	modules     map[string]*moduleLogger
	buffer      *RingBuffer
	callback    LogCallback
}

func newRegistry() *registry {
	return &registry{modules: make(map[string]*moduleLogger)}
}

var std = newRegistry()

// Initialize applies config to every module logger, existing or future, and
// installs the default slog logger.
func Initialize(config Config) {
	r := std
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = config
	r.initialized = true
	r.buffer = NewRingBuffer(defaultBufferSize)
	r.global.Set(levelOr(config.Level, slog.LevelInfo))

	// loggers handed out earlier keep their identity; only their handler
	// chain and level change
	for name, m := range r.modules {
		m.level.Set(r.moduleLevel(name))
		*m.logger = *slog.New(newHandler(config.Format, m.level)).With("module", name)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, &r.global)))
}

// GetBuffer returns the log history, nil before Initialize.
func GetBuffer() *RingBuffer {
	buffer, _ := std.sinks()
	return buffer
}

// SetLogCallback registers the function that receives every new entry.
func SetLogCallback(callback LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

// GetLogger returns the logger of module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	r := std
	r.mu.RLock()
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if r.initialized {
		level.Set(r.moduleLevel(module))
		format = r.config.Format
	}

	m = &moduleLogger{
		logger: slog.New(newHandler(format, level)).With("module", module),
		level:  level,
	}
	r.modules[module] = m
	return m.logger
}

// SetModuleLevel changes the level of module at runtime. An empty level
// falls back to the global level. It returns false for an unknown level name.
func SetModuleLevel(module, level string) bool {
	r := std
	r.mu.Lock()
	defer r.mu.Unlock()

	if level != "" && parseLevel(level) == nil {
		return false
	}

	if r.config.Modules == nil {
		r.config.Modules = make(map[string]string)
	}
	if level == "" {
		delete(r.config.Modules, module)
	} else {
		r.config.Modules[module] = level
	}

	if m, ok := r.modules[module]; ok {
		m.level.Set(r.moduleLevel(module))
	}
	return true
}

func (r *registry) sinks() (*RingBuffer, LogCallback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer, r.callback
}

// moduleLevel resolves the configured level of module. Callers hold r.mu.
func (r *registry) moduleLevel(module string) slog.Level {
	if s, ok := r.config.Modules[module]; ok {
		if l := parseLevel(s); l != nil {
			return *l
		}
	}
	return r.global.Level()
}

// newHandler builds the handler chain: stdout when it goes somewhere, the
// journal when it is reachable, and always the ring buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var sinks fanout
	if stdoutAttached() {
		sinks = append(sinks, stdout)
	}
	if IsJournalAvailable() {
		sinks = append(sinks, NewJournalHandler(level))
	}
	return append(sinks, NewBufferHandler(level))
}

// stdoutAttached is false when stdout is closed or points at a device such
// as /dev/null, as under systemd with StandardOutput=null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOr(level string, fallback slog.Level) slog.Level {
	if l := parseLevel(level); l != nil {
		return *l
	}
	return fallback
}

// parseLevel converts a level name to a slog.Level, nil when unknown.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
