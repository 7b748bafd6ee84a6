// Package updater installs captioner releases from GitHub and keeps one
// previous binary for rollback.
package updater

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	backupFilename     = "captioner.backup"
	backupInfoFilename = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

type backupStore struct {
	mu     sync.RWMutex
	dir    string
	info   *backupInfo
	logger *slog.Logger
}

func defaultBackupDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	return filepath.Join(cache, "captioner", "backup"), nil
}

func newBackupStore(dir string, logger *slog.Logger) (*backupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	s := &backupStore{dir: dir, logger: logger}
	s.load()
	return s, nil
}

func (s *backupStore) binPath() string  { return filepath.Join(s.dir, backupFilename) }
func (s *backupStore) infoPath() string { return filepath.Join(s.dir, backupInfoFilename) }

// load picks up a backup left by a previous run.
func (s *backupStore) load() {
	data, err := os.ReadFile(s.infoPath())
	if err != nil {
		return
	}
	var info backupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		s.logger.Warn("Ignoring unreadable backup info", "error", err)
		return
	}
	if _, err := os.Stat(s.binPath()); err != nil {
		s.logger.Warn("Backup binary missing", "path", s.binPath())
		return
	}

	s.mu.Lock()
	s.info = &info
	s.mu.Unlock()
	s.logger.Debug("Found backup", "version", info.Version)
}

// save copies execPath into the store and records version.
func (s *backupStore) save(execPath, version string) error {
	if err := copyFile(execPath, s.binPath()); err != nil {
		return err
	}

	info := backupInfo{Version: version, CreatedAt: time.Now(), ExecPath: execPath}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.infoPath(), data, 0o644); err != nil {
		return fmt.Errorf("write backup info: %w", err)
	}

	s.mu.Lock()
	s.info = &info
	s.mu.Unlock()
	s.logger.Info("Backup created", "version", version, "path", s.binPath())
	return nil
}

// restore writes the saved binary back over the executable it came from.
func (s *backupStore) restore() (string, error) {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()
	if info == nil {
		return "", errors.New("no backup available")
	}

	if err := copyFile(s.binPath(), info.ExecPath); err != nil {
		return "", err
	}
	s.logger.Info("Backup restored", "version", info.Version, "path", info.ExecPath)
	return info.Version, nil
}

func (s *backupStore) version() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return "", false
	}
	return s.info.Version, true
}

// copyFile replaces dst via a sibling temp file and rename.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
