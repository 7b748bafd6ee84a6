// Package render runs subtitle burn-in jobs through the process executor
// and decodes their progress stream.
package render

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/ffmpeg"
	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/metrics"
	"github.com/smazurov/captioner/internal/process"
	"github.com/smazurov/captioner/internal/progress"
)

// Lookup errors.
var (
	ErrNotFound = errors.New("render job not found")
	ErrRunning  = errors.New("render job is still running")
)

// Options configures a Runner.
type Options struct {
	Logger   logging.Logger
	EventBus *events.Bus // optional
	Tools    ffmpeg.Tools
	Timeout  time.Duration // default per-job timeout, process.NoTimeout waits forever
}

// RunOptions overrides per job.
type RunOptions struct {
	Timeout       time.Duration // 0 uses the runner default
	InputDuration time.Duration // enables Percent, 0 when unknown
}

// Runner tracks render jobs. Each job owns one Executor and one Parser.
type Runner struct {
	mu      sync.RWMutex
	jobs    map[string]*job
	logger  logging.Logger
	bus     *events.Bus
	tools   ffmpeg.Tools
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(opts *Options) *Runner {
	return &Runner{
		jobs:    make(map[string]*job),
		logger:  opts.Logger,
		bus:     opts.EventBus,
		tools:   opts.Tools,
		timeout: opts.Timeout,
	}
}

// SetTools replaces the binaries used by Render and Probe.
func (r *Runner) SetTools(tools ffmpeg.Tools, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = tools
	r.timeout = timeout
}

// DefaultTimeout is the per-job timeout applied when RunOptions leaves it zero.
func (r *Runner) DefaultTimeout() time.Duration {
	_, timeout := r.settings()
	return timeout
}

func (r *Runner) settings() (ffmpeg.Tools, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools, r.timeout
}

// Run executes command on the calling goroutine and returns the final job.
func (r *Runner) Run(command string, opts RunOptions) Info {
	j := r.add(command, opts)
	r.execute(j)
	return j.snapshot()
}

// Submit starts command on a new goroutine and returns immediately.
func (r *Runner) Submit(command string, opts RunOptions) Info {
	j := r.add(command, opts)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(j)
	}()
	return j.snapshot()
}

// Render probes the input duration and submits a burn-in job.
func (r *Runner) Render(p *ffmpeg.BurnParams, opts RunOptions) (Info, error) {
	tools, _ := r.settings()
	command, err := tools.BuildBurnCommand(p)
	if err != nil {
		return Info{}, err
	}

	if opts.InputDuration == 0 {
		d, err := r.Probe(p.Input)
		if err != nil {
			r.logger.Warn("Failed to probe input duration", "input", p.Input, "error", err)
		}
		opts.InputDuration = d
	}
	return r.Submit(command, opts), nil
}

// Probe returns the container duration of input using ffprobe.
func (r *Runner) Probe(input string) (time.Duration, error) {
	tools, _ := r.settings()
	command, err := tools.BuildProbeCommand(input)
	if err != nil {
		return 0, err
	}

	exec := process.New(r.logger)
	defer exec.Close()

	if err := exec.SetCommand(command); err != nil {
		return 0, err
	}
	exec.CaptureOutput(true)
	if err := exec.Start(); err != nil {
		return 0, err
	}
	out, err := exec.WaitUntilFinished(probeTimeout)
	if err != nil {
		return 0, err
	}
	if code := exec.ExitCode(); code != 0 {
		return 0, fmt.Errorf("ffprobe exited with %d: %s", code, out.Stderr)
	}
	return ffmpeg.ParseDuration(out.Stdout)
}

const probeTimeout = 30 * time.Second

// Get returns a snapshot of a job.
func (r *Runner) Get(id string) (Info, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Info{}, ErrNotFound
	}
	return j.snapshot(), nil
}

// List returns snapshots of all jobs, oldest first.
func (r *Runner) List() []Info {
	r.mu.RLock()
	list := make([]Info, 0, len(r.jobs))
	for _, j := range r.jobs {
		list = append(list, j.snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b Info) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return list
}

// Stats samples the resources of a running job's process.
func (r *Runner) Stats(id string) (process.Stats, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return process.Stats{}, ErrNotFound
	}

	j.mu.Lock()
	exec := j.exec
	j.mu.Unlock()
	if exec == nil {
		return process.Stats{}, process.ErrInvalidState
	}
	return exec.Stats()
}

// Wait blocks until the job is final.
func (r *Runner) Wait(id string) (Info, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Info{}, ErrNotFound
	}
	<-j.done
	return j.snapshot(), nil
}

// Cancel kills a job's process. Cancelling a final job is a no-op.
func (r *Runner) Cancel(id string) error {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	j.mu.Lock()
	if j.info.State.Done() {
		j.mu.Unlock()
		return nil
	}
	j.cancelled = true
	exec := j.exec
	j.mu.Unlock()

	r.logger.Info("Cancelling render job", "job_id", id)
	if exec != nil {
		return exec.Close()
	}
	return nil
}

// Remove forgets a final job.
func (r *Runner) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !j.snapshot().State.Done() {
		return fmt.Errorf("remove %s: %w", id, ErrRunning)
	}
	delete(r.jobs, id)
	metrics.DeleteRenderMetrics(id)
	return nil
}

// Active counts jobs that are pending or running.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, j := range r.jobs {
		if !j.snapshot().State.Done() {
			n++
		}
	}
	return n
}

// CloseAll cancels every job and waits for submitted jobs to finish.
func (r *Runner) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Cancel(id)
	}
	r.wg.Wait()
}

func (r *Runner) add(command string, opts RunOptions) *job {
	_, timeout := r.settings()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	j := newJob(shortuuid.New(), command, timeout, opts.InputDuration)
	r.mu.Lock()
	r.jobs[j.info.ID] = j
	r.mu.Unlock()
	return j
}

// execute runs one job to completion.
func (r *Runner) execute(j *job) {
	defer close(j.done)

	id := j.info.ID
	logger := jobLogger{Logger: r.logger, id: id}

	exec := process.New(logger)
	defer exec.Close()

	parser := progress.NewParser()
	exec.CaptureOutput(true)
	exec.SetCallback(func(chunk []byte) {
		rec, err := parser.Receive(chunk)
		if err != nil {
			n := j.parseFailed()
			logger.Warn("Failed to decode progress", "error", err, "parse_errors", n)
		}
		if rec != nil {
			r.onProgress(j, rec)
		}
	})

	j.mu.Lock()
	if j.cancelled {
		j.mu.Unlock()
		r.finish(j, StateCancelled, -1, process.Output{}, nil)
		return
	}
	if err := exec.SetCommand(j.info.Command); err != nil {
		j.mu.Unlock()
		r.finish(j, StateFailed, -1, process.Output{}, err)
		return
	}
	if err := exec.Start(); err != nil {
		j.mu.Unlock()
		metrics.ObserveProcess("spawn_failed", 0)
		r.finish(j, StateFailed, -1, process.Output{}, err)
		return
	}
	j.exec = exec
	j.info.State = StateRunning
	j.info.PID = exec.PID()
	j.info.StartedAt = time.Now()
	timeout := j.timeout
	j.mu.Unlock()

	logger.Info("Render started", "pid", exec.PID(), "timeout", timeout)
	r.publish(events.JobStartedEvent{
		JobID:     id,
		Command:   j.info.Command,
		PID:       exec.PID(),
		Timestamp: timestamp(),
	})

	out, err := exec.WaitUntilFinished(timeout)
	if err != nil {
		r.finish(j, StateFailed, -1, out, err)
		return
	}

	ffmpeg.LogLines(logger, out.Stderr)

	j.mu.Lock()
	cancelled := j.cancelled
	j.mu.Unlock()

	code := exec.ExitCode()
	switch {
	case cancelled:
		r.finish(j, StateCancelled, code, out, nil)
	case code == 0:
		r.finish(j, StateCompleted, code, out, nil)
	default:
		r.finish(j, StateFailed, code, out, fmt.Errorf("process exited with status %d", code))
	}
}

func (r *Runner) onProgress(j *job, rec *progress.Record) {
	percent := j.update(rec)

	speed, _ := rec.SpeedFactor()
	metrics.SetRenderMetrics(j.info.ID, metrics.RenderMetrics{
		Frames:          float64(rec.Frame),
		FPS:             rec.FPS,
		DroppedFrames:   float64(rec.DroppedFrames),
		DuplicateFrames: float64(rec.DuplicateFrames),
		Speed:           speed,
		Progress:        percent / 100,
	})

	r.publish(events.JobProgressEvent{
		JobID:           j.info.ID,
		Frame:           rec.Frame,
		FPS:             rec.FPS,
		Bitrate:         rec.Bitrate,
		TotalSize:       rec.TotalSize,
		ElapsedUS:       rec.Elapsed.Microseconds(),
		DuplicateFrames: rec.DuplicateFrames,
		DroppedFrames:   rec.DroppedFrames,
		Speed:           rec.Speed,
		Status:          rec.Status,
		Percent:         percent,
		Timestamp:       timestamp(),
	})
}

func (r *Runner) finish(j *job, state State, code int, out process.Output, err error) {
	j.mu.Lock()
	j.info.State = state
	j.info.ExitCode = code
	j.info.Output = out
	j.info.FinishedAt = time.Now()
	j.exec = nil
	if err != nil {
		j.info.Error = err.Error()
	}
	info := j.info
	j.mu.Unlock()

	var elapsed time.Duration
	if !info.StartedAt.IsZero() {
		elapsed = info.FinishedAt.Sub(info.StartedAt)
		outcome := "exited"
		if code == -1 {
			outcome = "killed"
		}
		metrics.ObserveProcess(outcome, elapsed)
	}
	metrics.IncRenders(string(state))

	if err != nil {
		r.logger.Error("Render failed", "job_id", info.ID, "state", state, "exit_code", code, "error", err)
	} else {
		r.logger.Info("Render finished", "job_id", info.ID, "state", state, "exit_code", code, "duration", elapsed)
	}

	r.publish(events.JobFinishedEvent{
		JobID:     info.ID,
		State:     string(state),
		ExitCode:  code,
		Error:     info.Error,
		Duration:  elapsed.String(),
		Timestamp: timestamp(),
	})
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// jobLogger tags every record with the job ID.
type jobLogger struct {
	logging.Logger
	id string
}

func (l jobLogger) tag(args []any) []any {
	return append([]any{"job_id", l.id}, args...)
}

func (l jobLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.tag(args)...) }
func (l jobLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.tag(args)...) }
func (l jobLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.tag(args)...) }
func (l jobLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.tag(args)...) }
