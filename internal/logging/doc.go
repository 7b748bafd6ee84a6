// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or json), to the systemd journal when it is
// available, and to an in-memory ring buffer that backs the log stream
// endpoint of the HTTP API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"process": "debug",
//			"api":     "warn",
//		},
//	})
//
// Then take a logger per package:
//
//	logger := logging.GetLogger("render").With("job_id", id)
//	logger.Info("Render started", "command", cmd)
//
// Module levels can be changed while running with SetModuleLevel; loggers
// already handed out pick up the change.
//
// Journal entries are tagged with SyslogIdentifier:
//
//	journalctl -t captioner MODULE=process
package logging
