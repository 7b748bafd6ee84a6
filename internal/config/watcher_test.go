package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, w *Watcher[Runtime]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	// let the watch loop attach before the test writes
	time.Sleep(50 * time.Millisecond)
}

func TestWatcherReloadsTools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "[tools]\nffmpeg = \"ffmpeg\"\n")

	w := NewConfigWatcher(path, LoadRuntime, quietLogger(), WithDebounce[Runtime](20*time.Millisecond))
	got := make(chan Runtime, 4)
	w.OnReload(func(rt Runtime) { got <- rt })
	startWatcher(t, w)

	writeFile(t, path, "[tools]\nffmpeg = \"/opt/ffmpeg/bin/ffmpeg\"\ndefault_timeout_ms = 1500\n")

	select {
	case rt := <-got:
		if rt.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
			t.Errorf("FFmpeg = %q", rt.FFmpeg)
		}
		if rt.DefaultTimeout != 1500*time.Millisecond {
			t.Errorf("DefaultTimeout = %v", rt.DefaultTimeout)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	cur, ok := w.Current()
	if !ok || cur.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("Current = %+v, %v", cur, ok)
	}
}

func TestWatcherSeesRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captioner.toml")
	writeFile(t, path, "[tools]\nffprobe = \"a\"\n")

	w := NewConfigWatcher(path, LoadRuntime, quietLogger(), WithDebounce[Runtime](20*time.Millisecond))
	got := make(chan Runtime, 4)
	w.OnReload(func(rt Runtime) { got <- rt })
	startWatcher(t, w)

	tmp := filepath.Join(dir, "captioner.toml.swp")
	writeFile(t, tmp, "[tools]\nffprobe = \"b\"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case rt := <-got:
		if rt.FFprobe != "b" {
			t.Errorf("FFprobe = %q, want b", rt.FFprobe)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("rename not observed")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captioner.toml")
	writeFile(t, path, "")

	var calls atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, quietLogger(), WithDebounce[Runtime](10*time.Millisecond))
	w.OnReload(func(Runtime) { calls.Add(1) })
	startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for unrelated file", n)
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "")

	var calls atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, quietLogger(), WithDebounce[Runtime](200*time.Millisecond))
	w.OnReload(func(Runtime) { calls.Add(1) })
	startWatcher(t, w)

	for i := 0; i < 5; i++ {
		writeFile(t, path, "[logging]\nlevel = \"debug\"\n")
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestWatcherLoadErrorKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "[tools]\nffmpeg = \"good\"\n")

	errs := make(chan error, 1)
	w := NewConfigWatcher(path, LoadRuntime, quietLogger(),
		WithErrorHandler[Runtime](func(err error) { errs <- err }))

	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "[tools\nffmpeg = ")
	if err := w.Reload(); err == nil {
		t.Fatal("expected parse error")
	}

	select {
	case <-errs:
	default:
		t.Error("error handler not called")
	}

	cur, ok := w.Current()
	if !ok || cur.FFmpeg != "good" {
		t.Errorf("Current = %+v, want last good snapshot", cur)
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "")

	var a, b atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, quietLogger())
	unsubA := w.OnReload(func(Runtime) { a.Add(1) })
	w.OnReload(func(Runtime) { b.Add(1) })

	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	unsubA()
	unsubA()
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}

	if a.Load() != 1 || b.Load() != 2 {
		t.Errorf("a=%d b=%d, want 1 and 2", a.Load(), b.Load())
	}
}

func TestWatcherHandlersInRegistrationOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "")

	var order []int
	w := NewConfigWatcher(path, LoadRuntime, quietLogger())
	for i := 0; i < 3; i++ {
		w.OnReload(func(Runtime) { order = append(order, i) })
	}
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("order = %v", order)
	}
}

func TestWatcherConcurrentSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captioner.toml")
	writeFile(t, path, "")

	w := NewConfigWatcher(path, LoadRuntime, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(Runtime) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			_ = w.Reload()
		}()
	}
	wg.Wait()
}

func TestWatcherStartMissingDir(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "captioner.toml"), LoadRuntime, quietLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("captioner.toml", LoadRuntime, quietLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop = %v", err)
	}
}

func TestWatcherReloadMissingFile(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "gone.toml"), LoadRuntime, quietLogger())
	err := w.Reload()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
