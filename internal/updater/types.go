package updater

import (
	"context"
	"time"
)

// State is the position of the updater in its check/apply cycle.
type State string

// Update states.
const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateRestarting  State = "restarting"
	StateError       State = "error"
	StateRolledBack  State = "rolled_back"
)

// Service checks for and installs newer captioner releases.
type Service interface {
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)

	// ApplyUpdate replaces the running binary and schedules a restart.
	// It refuses while renders are in flight.
	ApplyUpdate(ctx context.Context) error

	// Rollback restores the binary saved by the last ApplyUpdate.
	Rollback(ctx context.Context) error

	Restart(ctx context.Context) error

	GetStatus(ctx context.Context) *Status

	// IsEnabled is false when the executable's directory is not writable.
	IsEnabled() bool
	DisabledReason() string
}

// UpdateInfo describes the newest release.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	ReleaseURL      string    `json:"release_url"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Status is a snapshot of the updater.
type Status struct {
	State           State      `json:"state"`
	CurrentVersion  string     `json:"current_version"`
	TargetVersion   string     `json:"target_version,omitempty"`
	Error           string     `json:"error,omitempty"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
	BackupAvailable bool       `json:"backup_available"`
	BackupVersion   string     `json:"backup_version,omitempty"`
}

// Options configures NewService.
type Options struct {
	Repository string // owner/name on GitHub
	Prerelease bool

	// BackupDir holds the previous binary. Defaults to <user cache>/captioner/backup.
	BackupDir string

	// Busy reports whether work is in flight that an update must not interrupt.
	Busy func() bool

	// Restart is invoked after a successful apply or rollback.
	// Defaults to sending SIGTERM to the current process.
	Restart func()
}
