package process

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// handle owns one spawned child and the parent ends of its output pipes.
// Only the executor that spawned it may signal the child or read the pipes.
type handle struct {
	cmd    *exec.Cmd
	pid    int
	done   chan struct{} // closed once cmd.Wait has returned
	err    error         // result of cmd.Wait, valid after done
	stdout *os.File      // nil when output is not redirected
	stderr *os.File
}

// spawn starts args[0] with its stdout and stderr connected to fresh pipes
// when redirect is set, or to the null device otherwise. Every descriptor
// created here is closed again if the spawn fails.
func spawn(args []string, redirect bool) (*handle, error) {
	cmd := exec.Command(args[0], args[1:]...)

	var stdoutR, stdoutW, stderrR, stderrW *os.File
	if redirect {
		var err error
		stdoutR, stdoutW, err = os.Pipe()
		if err != nil {
			return nil, err
		}
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			closeFiles(stdoutR, stdoutW)
			return nil, err
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		closeFiles(stdoutR, stdoutW, stderrR, stderrW)
		return nil, err
	}

	// The child holds its own copies; ours would keep the pipes open forever.
	closeFiles(stdoutW, stderrW)

	h := &handle{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		stdout: stdoutR,
		stderr: stderrR,
	}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// exited reports without blocking whether the child has been reaped.
func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// wait blocks up to d for the child to exit.
func (h *handle) wait(d time.Duration) bool {
	if d <= 0 {
		return h.exited()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// kill terminates the child unconditionally.
func (h *handle) kill() error {
	if h.exited() {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// stop asks the child to exit on its own.
func (h *handle) stop() error {
	if h.exited() {
		return nil
	}
	return requestStop(h.pid)
}

// exitCode returns the child's exit status, or -1 when it was killed by a
// signal or has not exited yet.
func (h *handle) exitCode() int {
	if !h.exited() {
		return -1
	}
	return exitCodeFromError(h.err)
}

// exitCodeFromError maps a cmd.Wait result to an exit status.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// release closes the parent read ends. Blocked reads return os.ErrClosed.
func (h *handle) release() {
	closeFiles(h.stdout, h.stderr)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
