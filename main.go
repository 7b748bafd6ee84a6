package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/captioner/cmd"
	"github.com/smazurov/captioner/internal/api"
	"github.com/smazurov/captioner/internal/config"
	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/ffmpeg"
	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/metrics"
	"github.com/smazurov/captioner/internal/render"
	"github.com/smazurov/captioner/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port              string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	ServerCorsOrigins string `help:"Comma separated allowed CORS origins, empty allows any" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Tool settings
	ToolsFfmpeg           string `help:"ffmpeg binary" default:"ffmpeg" toml:"tools.ffmpeg" env:"TOOLS_FFMPEG"`
	ToolsFfprobe          string `help:"ffprobe binary" default:"ffprobe" toml:"tools.ffprobe" env:"TOOLS_FFPROBE"`
	ToolsDefaultTimeoutMs int    `help:"Graceful render timeout in milliseconds, 0 waits forever" default:"0" toml:"tools.default_timeout_ms" env:"TOOLS_DEFAULT_TIMEOUT_MS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-update" default:"smazurov/captioner" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when updating" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingProcess string `help:"Process executor logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingRender  string `help:"Render jobs logging level" default:"info" toml:"logging.render" env:"LOGGING_RENDER"`
	LoggingApi     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingUpdater string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func (o *Options) tools() ffmpeg.Tools {
	return ffmpeg.Tools{FFmpeg: o.ToolsFfmpeg, FFprobe: o.ToolsFfprobe}
}

func (o *Options) defaultTimeout() time.Duration {
	return time.Duration(o.ToolsDefaultTimeoutMs) * time.Millisecond
}

func (o *Options) corsOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(o.ServerCorsOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		cli      humacli.CLI
		settings cmd.Settings
	)

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		settings = cmd.Settings{
			Tools:          opts.tools(),
			DefaultTimeout: opts.defaultTimeout(),
			Repository:     opts.UpdateRepository,
			Prerelease:     opts.UpdatePrerelease,
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"process": opts.LoggingProcess,
				"render":  opts.LoggingRender,
				"api":     opts.LoggingApi,
				"updater": opts.LoggingUpdater,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		runner := render.NewRunner(&render.Options{
			Logger:   logging.GetLogger("render"),
			EventBus: eventBus,
			Tools:    opts.tools(),
			Timeout:  opts.defaultTimeout(),
		})

		updateService, err := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
			Busy:       func() bool { return runner.Active() > 0 },
		})
		if err != nil {
			logger.Warn("Self-update unavailable", "error", err)
		}

		// Tool paths, the default timeout and log levels follow the config file
		watcher := config.NewConfigWatcher(opts.Config, config.LoadRuntime, logging.GetLogger("config"))
		watcher.OnReload(func(rt config.Runtime) {
			tools := opts.tools()
			if rt.FFmpeg != "" {
				tools.FFmpeg = rt.FFmpeg
			}
			if rt.FFprobe != "" {
				tools.FFprobe = rt.FFprobe
			}
			runner.SetTools(tools, rt.DefaultTimeout)

			for module, level := range rt.Logging.Modules {
				logging.SetModuleLevel(module, level)
			}

			logger.Info("Config reloaded", "path", opts.Config, "ffmpeg", tools.FFmpeg, "timeout", rt.DefaultTimeout)
			eventBus.Publish(events.ConfigReloadedEvent{
				Path:      opts.Config,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CORSOrigins:       opts.corsOrigins(),
			Runner:            runner,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		}
		if updateService != nil {
			apiOpts.UpdateService = updateService
		}

		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch config file", "path", opts.Config, "error", startErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop renders after the HTTP server stops accepting new requests
			logger.Info("Stopping render jobs", "active", runner.Active())
			runner.CloseAll()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	current := func() cmd.Settings { return settings }

	cli.Root().Use = "captioner"
	cli.Root().AddCommand(cmd.CreateExecCmd(current))
	cli.Root().AddCommand(cmd.CreateProgressCmd())
	cli.Root().AddCommand(cmd.CreateRenderCmd(current))
	cli.Root().AddCommand(cmd.CreateUpdateCmd(current))
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
