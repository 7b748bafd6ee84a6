package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/version"
)

const restartDelay = 500 * time.Millisecond

// releaseSource is the part of *selfupdate.Updater the service uses.
type releaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

type service struct {
	repo    selfupdate.Repository
	slug    string
	source  releaseSource
	backups *backupStore
	busy    func() bool
	restart func()
	exePath func() (string, error)
	current string

	mu          sync.RWMutex
	state       State
	latest      *selfupdate.Release
	lastChecked *time.Time
	lastError   error

	enabled        bool
	disabledReason string

	logger *slog.Logger
}

// NewService creates the updater. A service whose executable directory is
// not writable is returned disabled rather than as an error.
func NewService(opts *Options) (Service, error) {
	logger := logging.GetLogger("updater")

	if ok, reason := checkWritePermission(); !ok {
		logger.Warn("Update service disabled", "reason", reason)
		return &service{state: StateIdle, disabledReason: reason, logger: logger}, nil
	}

	gh, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     gh,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return newService(opts, up, selfupdate.ExecutablePath, logger), nil
}

func newService(opts *Options, source releaseSource, exePath func() (string, error), logger *slog.Logger) *service {
	s := &service{
		repo:    selfupdate.ParseSlug(opts.Repository),
		slug:    opts.Repository,
		source:  source,
		busy:    opts.Busy,
		restart: opts.Restart,
		exePath: exePath,
		current: version.Version,
		state:   StateIdle,
		enabled: true,
		logger:  logger,
	}
	if s.restart == nil {
		s.restart = s.signalSelf
	}

	dir := opts.BackupDir
	if dir == "" {
		var err error
		if dir, err = defaultBackupDir(); err != nil {
			logger.Warn("Rollback unavailable", "error", err)
			return s
		}
	}
	backups, err := newBackupStore(dir, logger)
	if err != nil {
		logger.Warn("Rollback unavailable", "error", err)
		return s
	}
	s.backups = backups
	return s
}

func checkWritePermission() (bool, string) {
	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Sprintf("failed to get executable path: %v", err)
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return false, fmt.Sprintf("failed to resolve symlinks: %v", err)
	}

	f, err := os.CreateTemp(filepath.Dir(exe), ".captioner-update-*")
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", filepath.Dir(exe), err)
	}
	f.Close()
	os.Remove(f.Name())
	return true, ""
}

func (s *service) IsEnabled() bool        { return s.enabled }
func (s *service) DisabledReason() string { return s.disabledReason }

// newerThanCurrent treats non-semver builds such as "dev" as always outdated.
func (s *service) newerThanCurrent(rel *selfupdate.Release) bool {
	if _, err := semver.NewVersion(s.current); err != nil {
		return true
	}
	return rel.GreaterThan(s.current)
}

// CheckForUpdate asks GitHub for the latest release without downloading it.
func (s *service) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if !s.transitionTo(StateChecking, StateIdle, StateAvailable, StateError, StateRolledBack) {
		return nil, newError(ErrCodeInvalidState, fmt.Sprintf("cannot check for updates in state %s", s.getState()), nil)
	}

	rel, found, err := s.source.DetectLatest(ctx, s.repo)
	now := time.Now()
	s.mu.Lock()
	s.lastChecked = &now
	s.mu.Unlock()

	if err != nil {
		s.setError(err)
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found || rel == nil {
		err := fmt.Errorf("no release found for %s", s.slug)
		s.setError(err)
		return nil, newError(ErrCodeNotFound, err.Error(), nil)
	}

	info := &UpdateInfo{
		CurrentVersion: s.current,
		LatestVersion:  rel.Version(),
	}
	if !s.newerThanCurrent(rel) {
		s.transitionTo(StateIdle)
		return info, nil
	}

	s.mu.Lock()
	s.latest = rel
	s.mu.Unlock()
	s.transitionTo(StateAvailable)

	info.ReleaseNotes = rel.ReleaseNotes
	info.ReleaseURL = rel.URL
	info.PublishedAt = rel.PublishedAt
	info.AssetSize = rel.AssetByteSize
	info.UpdateAvailable = true
	return info, nil
}

// ApplyUpdate backs up the running binary, installs the latest release
// over it and schedules a restart.
func (s *service) ApplyUpdate(ctx context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if s.busy != nil && s.busy() {
		return newError(ErrCodeBusy, "renders are running, retry when they finish", nil)
	}

	if s.getState() != StateAvailable {
		info, err := s.CheckForUpdate(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return newError(ErrCodeNoUpdate, "already running the latest release", nil)
		}
	}

	if !s.transitionTo(StateDownloading, StateAvailable) {
		return newError(ErrCodeInvalidState, fmt.Sprintf("cannot apply update in state %s", s.getState()), nil)
	}

	exe, err := s.exePath()
	if err != nil {
		s.setError(err)
		return newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}

	if s.backups != nil {
		if err := s.backups.save(exe, s.current); err != nil {
			s.setError(err)
			return newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	s.mu.RLock()
	rel := s.latest
	s.mu.RUnlock()

	if err := s.source.UpdateTo(ctx, rel, exe); err != nil {
		s.setError(err)
		s.restoreAfterFailure()
		return newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	s.transitionTo(StateRestarting)
	s.logger.Info("Update installed, restarting", "from", s.current, "to", rel.Version())
	s.scheduleRestart()
	return nil
}

// Rollback restores the saved binary and schedules a restart.
func (s *service) Rollback(_ context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if s.backups == nil {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if _, ok := s.backups.version(); !ok {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if s.busy != nil && s.busy() {
		return newError(ErrCodeBusy, "renders are running, retry when they finish", nil)
	}

	restored, err := s.backups.restore()
	if err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}

	s.transitionTo(StateRolledBack)
	s.logger.Info("Rolled back, restarting", "version", restored)
	s.scheduleRestart()
	return nil
}

// Restart schedules a restart without touching the binary.
func (s *service) Restart(_ context.Context) error {
	s.logger.Info("Restart requested")
	s.scheduleRestart()
	return nil
}

// GetStatus returns the current updater snapshot.
func (s *service) GetStatus(_ context.Context) *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Status{
		State:          s.state,
		CurrentVersion: s.current,
		LastChecked:    s.lastChecked,
	}
	if s.latest != nil {
		st.TargetVersion = s.latest.Version()
	}
	if s.lastError != nil {
		st.Error = s.lastError.Error()
	}
	if s.backups != nil {
		st.BackupVersion, st.BackupAvailable = s.backups.version()
	}
	return st
}

// transitionTo moves to next when the current state is one of from,
// or unconditionally when from is empty.
func (s *service) transitionTo(next State, from ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(from) > 0 && !slices.Contains(from, s.state) {
		return false
	}
	s.logger.Debug("State transition", "from", s.state, "to", next)
	s.state = next
	s.lastError = nil
	return true
}

func (s *service) getState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *service) setError(err error) {
	s.mu.Lock()
	s.state = StateError
	s.lastError = err
	s.mu.Unlock()
}

func (s *service) restoreAfterFailure() {
	if s.backups == nil {
		s.logger.Error("No backup available for automatic rollback")
		return
	}
	if _, err := s.backups.restore(); err != nil {
		s.logger.Error("Automatic rollback failed", "error", err)
		return
	}
	s.logger.Info("Automatic rollback completed")
}

// scheduleRestart gives the HTTP response time to flush first.
func (s *service) scheduleRestart() {
	time.AfterFunc(restartDelay, s.restart)
}

func (s *service) signalSelf() {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		s.logger.Error("Failed to find own process", "error", err)
		return
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		s.logger.Error("Failed to send SIGTERM", "error", err)
	}
}
