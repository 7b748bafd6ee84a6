package updater

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
)

type fakeSource struct {
	rel      *selfupdate.Release
	found    bool
	err      error
	updated  string
	checkHit int
}

func (f *fakeSource) DetectLatest(_ context.Context, _ selfupdate.Repository) (*selfupdate.Release, bool, error) {
	f.checkHit++
	return f.rel, f.found, f.err
}

func (f *fakeSource) UpdateTo(_ context.Context, _ *selfupdate.Release, path string) error {
	f.updated = path
	return nil
}

func testService(t *testing.T, src releaseSource, opts Options) (*service, string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "captioner")
	if err := os.WriteFile(exe, []byte("v1 binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	opts.Repository = "smazurov/captioner"
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(dir, "backup")
	}
	if opts.Restart == nil {
		opts.Restart = func() {}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := newService(&opts, src, func() (string, error) { return exe, nil }, logger)
	svc.current = "1.0.0"
	return svc, exe
}

func updateCode(t *testing.T, err error) string {
	t.Helper()
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *updater.Error", err)
	}
	return ue.Code
}

func TestCheckForUpdateSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("rate limited")}
	svc, _ := testService(t, src, Options{})

	_, err := svc.CheckForUpdate(context.Background())
	if code := updateCode(t, err); code != ErrCodeCheckFailed {
		t.Errorf("code = %s", code)
	}

	st := svc.GetStatus(context.Background())
	if st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
	if st.LastChecked == nil {
		t.Error("LastChecked not recorded on failure")
	}
}

func TestCheckForUpdateNotFound(t *testing.T) {
	svc, _ := testService(t, &fakeSource{}, Options{})
	_, err := svc.CheckForUpdate(context.Background())
	if code := updateCode(t, err); code != ErrCodeNotFound {
		t.Errorf("code = %s", code)
	}
}

func TestCheckAllowedAfterError(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	svc, _ := testService(t, src, Options{})

	svc.CheckForUpdate(context.Background())
	svc.CheckForUpdate(context.Background())
	if src.checkHit != 2 {
		t.Errorf("DetectLatest called %d times, want 2", src.checkHit)
	}
}

func TestCheckRejectedWhileDownloading(t *testing.T) {
	svc, _ := testService(t, &fakeSource{}, Options{})
	svc.state = StateDownloading

	_, err := svc.CheckForUpdate(context.Background())
	if code := updateCode(t, err); code != ErrCodeInvalidState {
		t.Errorf("code = %s", code)
	}
}

func TestApplyRefusedWhileBusy(t *testing.T) {
	src := &fakeSource{}
	svc, _ := testService(t, src, Options{Busy: func() bool { return true }})

	err := svc.ApplyUpdate(context.Background())
	if code := updateCode(t, err); code != ErrCodeBusy {
		t.Errorf("code = %s", code)
	}
	if src.checkHit != 0 {
		t.Error("busy service should not contact GitHub")
	}
}

func TestApplyPropagatesCheckFailure(t *testing.T) {
	svc, _ := testService(t, &fakeSource{err: errors.New("dns")}, Options{})
	err := svc.ApplyUpdate(context.Background())
	if code := updateCode(t, err); code != ErrCodeCheckFailed {
		t.Errorf("code = %s", code)
	}
}

func TestDisabledService(t *testing.T) {
	svc := &service{state: StateIdle, disabledReason: "read-only filesystem", logger: slog.Default()}

	if svc.IsEnabled() {
		t.Fatal("IsEnabled = true")
	}
	if svc.DisabledReason() != "read-only filesystem" {
		t.Errorf("reason = %q", svc.DisabledReason())
	}
	for name, err := range map[string]error{
		"apply":    svc.ApplyUpdate(context.Background()),
		"rollback": svc.Rollback(context.Background()),
	} {
		if code := updateCode(t, err); code != ErrCodeDisabled {
			t.Errorf("%s code = %s", name, code)
		}
	}
	if _, err := svc.CheckForUpdate(context.Background()); updateCode(t, err) != ErrCodeDisabled {
		t.Error("check should be disabled")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	svc, _ := testService(t, &fakeSource{}, Options{})
	err := svc.Rollback(context.Background())
	if code := updateCode(t, err); code != ErrCodeNoBackup {
		t.Errorf("code = %s", code)
	}
}

func TestRollbackRestoresBinary(t *testing.T) {
	restarted := make(chan struct{})
	svc, exe := testService(t, &fakeSource{}, Options{Restart: func() { close(restarted) }})

	if err := svc.backups.save(exe, "0.9.0"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exe, []byte("broken v2"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := svc.Rollback(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1 binary" {
		t.Errorf("exe = %q, want restored content", data)
	}

	st := svc.GetStatus(context.Background())
	if st.State != StateRolledBack || !st.BackupAvailable || st.BackupVersion != "0.9.0" {
		t.Errorf("status = %+v", st)
	}
	<-restarted
}

func TestRestartInvokesHook(t *testing.T) {
	restarted := make(chan struct{})
	svc, _ := testService(t, &fakeSource{}, Options{Restart: func() { close(restarted) }})
	if err := svc.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-restarted
}
