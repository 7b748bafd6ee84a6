package process

import (
	"strings"
	"sync"
	"time"

	"github.com/smazurov/captioner/internal/logging"
)

// NoTimeout makes WaitUntilFinished wait for the child indefinitely.
const NoTimeout time.Duration = 0

// defaultDrainTimeout bounds how long pumps may keep reading after the child
// exited. A grandchild that inherited the pipes can hold them open.
const defaultDrainTimeout = 2 * time.Second

// Executor runs one command at a time and collects its output.
// An Executor may be reused after WaitUntilFinished or Close.
type Executor struct {
	mu           sync.Mutex
	logger       logging.Logger
	command      string
	capture      bool
	callback     Callback
	state        State
	run          *run
	exitCode     int
	drainTimeout time.Duration
}

// run is one spawned invocation: the handle plus its pumps.
type run struct {
	h        *handle
	stdout   *pump
	stderr   *pump
	started  time.Time
	settle   sync.Once
	output   Output
	duration time.Duration
}

// New returns an idle executor with capture disabled.
func New(logger logging.Logger) *Executor {
	return &Executor{
		logger:       logger,
		state:        StateIdle,
		exitCode:     -1,
		drainTimeout: defaultDrainTimeout,
	}
}

// SetCommand stores the command line for the next Start.
func (e *Executor) SetCommand(command string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return stateError("SetCommand", e.state)
	}
	e.command = command
	return nil
}

// CaptureOutput toggles accumulation of stdout and stderr into Output.
func (e *Executor) CaptureOutput(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capture = enabled
}

// SetCallback registers cb for stdout chunks. Nil clears it.
// The callback runs on the pump goroutine and must not call back into e.
func (e *Executor) SetCallback(cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
}

// Command returns the configured command line.
func (e *Executor) Command() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.command
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PID returns the child's process id, or 0 when not running.
func (e *Executor) PID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return 0
	}
	return e.run.h.pid
}

// ExitCode returns the exit status of the last finished run, or -1 when the
// child was killed by a signal or no run has finished.
func (e *Executor) ExitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

// Start spawns the configured command and returns once the child is running.
func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return stateError("Start", e.state)
	}
	if strings.TrimSpace(e.command) == "" {
		return newError(ErrCodeInvalidCommand, "empty command", e.command, nil)
	}

	args, err := splitWords(e.command)
	if err != nil {
		return newError(ErrCodeInvalidCommand, "cannot split command", e.command, err)
	}

	redirect := e.capture || e.callback != nil
	h, err := spawn(args, redirect)
	if err != nil {
		e.logger.Error("Failed to start process", "command", e.command, "error", err)
		return newError(ErrCodeSpawnFailed, "failed to spawn process", e.command, err)
	}

	r := &run{h: h, started: time.Now()}
	if redirect {
		r.stdout = newPump("stdout", h.stdout, e.capture, e.callback, e.logger)
		r.stderr = newPump("stderr", h.stderr, e.capture, nil, e.logger)
		go r.stdout.run()
		go r.stderr.run()
	}

	e.run = r
	e.state = StateRunning
	e.exitCode = -1
	e.logger.Info("Process started", "pid", h.pid, "command", e.command)
	return nil
}

// WaitUntilFinished blocks until the child exits and both pumps reach
// end-of-stream. A positive timeout bounds the wait before the child is
// killed; NoTimeout waits indefinitely.
func (e *Executor) WaitUntilFinished(timeout time.Duration) (Output, error) {
	e.mu.Lock()
	if e.state != StateRunning {
		state := e.state
		e.mu.Unlock()
		return Output{}, stateError("WaitUntilFinished", state)
	}
	r := e.run
	drain := e.drainTimeout
	e.mu.Unlock()

	if timeout > 0 {
		escalate(r.h, timeout, e.logger)
	} else {
		<-r.h.done
	}

	return e.finish(r, drain), nil
}

// Close kills a running child without negotiation and releases its
// descriptors. It is safe to call in any state and more than once.
func (e *Executor) Close() error {
	e.mu.Lock()
	r := e.run
	running := e.state == StateRunning
	e.mu.Unlock()

	if !running || r == nil {
		return nil
	}

	if err := r.h.kill(); err != nil {
		e.logger.Warn("Failed to kill process", "pid", r.h.pid, "error", err)
	}
	<-r.h.done
	e.finish(r, 0)
	return nil
}

// finish collects pump results once per run and moves e to Finished.
// Concurrent callers block until the first one is done.
func (e *Executor) finish(r *run, drain time.Duration) Output {
	r.settle.Do(func() {
		defer r.h.release()

		r.output = collect(r, drain)
		r.duration = time.Since(r.started)

		e.logger.Info("Process exited",
			"pid", r.h.pid,
			"exit_code", r.h.exitCode(),
			"duration", r.duration)
	})

	e.mu.Lock()
	if e.run == r {
		e.run = nil
		e.state = StateFinished
		e.exitCode = r.h.exitCode()
	}
	e.mu.Unlock()

	return r.output
}

// collect waits for both pumps. Once drain passes with no pump inside the
// callback, the read ends are closed so the pumps return whatever they have.
// A pump still delivering data the child wrote before exiting re-arms the
// grace. A drain of zero tears down immediately.
func collect(r *run, drain time.Duration) Output {
	if r.stdout == nil {
		return Output{}
	}

	timer := time.NewTimer(max(drain, 0))
	defer timer.Stop()

	var (
		out                    Output
		stdoutDone, stderrDone bool
	)
	for !stdoutDone || !stderrDone {
		select {
		case s := <-r.stdout.result:
			out.Stdout = s
			stdoutDone = true
		case s := <-r.stderr.result:
			out.Stderr = s
			stderrDone = true
		case <-timer.C:
			busy := (!stdoutDone && r.stdout.busy.Load()) || (!stderrDone && r.stderr.busy.Load())
			if drain > 0 && busy {
				timer.Reset(drain)
				continue
			}
			r.h.release()
		}
	}
	return out
}
