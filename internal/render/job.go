package render

import (
	"sync"
	"time"

	"github.com/smazurov/captioner/internal/process"
	"github.com/smazurov/captioner/internal/progress"
)

// State is the lifecycle position of a render job.
type State string

// Job states.
const (
	StatePending   State = "pending"   // Submitted, process not spawned yet
	StateRunning   State = "running"   // Child process running
	StateCompleted State = "completed" // Exited with status 0
	StateFailed    State = "failed"    // Spawn failure or non-zero exit
	StateCancelled State = "cancelled" // Torn down by Cancel
)

// Done reports whether s is final.
func (s State) Done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Info is a snapshot of a job.
type Info struct {
	ID            string           `json:"id"`
	Command       string           `json:"command"`
	State         State            `json:"state"`
	PID           int              `json:"pid,omitempty"`
	Progress      *progress.Record `json:"progress,omitempty"`
	Percent       float64          `json:"percent"`
	InputDuration time.Duration    `json:"input_duration,omitempty"`
	ExitCode      int              `json:"exit_code"`
	Output        process.Output   `json:"output"`
	Error         string           `json:"error,omitempty"`
	ParseErrors   int              `json:"parse_errors,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     time.Time        `json:"started_at,omitzero"`
	FinishedAt    time.Time        `json:"finished_at,omitzero"`
}

// job is the mutable state behind Info.
type job struct {
	mu        sync.Mutex
	info      Info
	timeout   time.Duration
	exec      *process.Executor
	cancelled bool
	done      chan struct{} // closed when the job reaches a final state
}

func newJob(id, command string, timeout, inputDuration time.Duration) *job {
	return &job{
		info: Info{
			ID:            id,
			Command:       command,
			State:         StatePending,
			InputDuration: inputDuration,
			ExitCode:      -1,
			CreatedAt:     time.Now(),
		},
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

func (j *job) snapshot() Info {
	j.mu.Lock()
	defer j.mu.Unlock()

	info := j.info
	if j.info.Progress != nil {
		rec := *j.info.Progress
		info.Progress = &rec
	}
	return info
}

// update applies a decoded record and returns the new percent.
func (j *job) update(rec *progress.Record) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.info.Progress = rec
	if d := j.info.InputDuration; d > 0 {
		j.info.Percent = min(float64(rec.Elapsed)/float64(d)*100, 100)
	}
	if rec.Done() {
		j.info.Percent = 100
	}
	return j.info.Percent
}

func (j *job) parseFailed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.info.ParseErrors++
	return j.info.ParseErrors
}
