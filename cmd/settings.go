// Package cmd holds the captioner subcommands.
package cmd

import (
	"time"

	"github.com/smazurov/captioner/internal/ffmpeg"
)

// Settings are the resolved configuration values subcommands need.
// They are read after flags, environment and config file were merged.
type Settings struct {
	Tools          ffmpeg.Tools
	DefaultTimeout time.Duration
	Repository     string
	Prerelease     bool
}

// SettingsFunc returns the current settings when a command runs.
type SettingsFunc func() Settings

// exitCode is returned by runners to request a process exit status.
type exitCode int

const (
	exitOK       exitCode = 0
	exitFailure  exitCode = 1
	exitUsage    exitCode = 2
	exitCanceled exitCode = 130
)
