package events

// Event type constants for kelindar/event.
const (
	TypeJobStarted uint32 = iota + 1
	TypeJobProgress
	TypeJobFinished
	TypeLogEntry
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// JobStartedEvent is published once a render process has been spawned.
type JobStartedEvent struct {
	JobID     string `json:"job_id" example:"3Ukq9LpWbZ2mH7rN" doc:"Render job ID"`
	Command   string `json:"command" doc:"Command line of the child process"`
	PID       int    `json:"pid" example:"4242" doc:"Child process ID"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobStartedEvent.
func (e JobStartedEvent) Type() uint32 { return TypeJobStarted }

// JobProgressEvent carries the latest decoded progress record of a job.
type JobProgressEvent struct {
	JobID           string  `json:"job_id" example:"3Ukq9LpWbZ2mH7rN" doc:"Render job ID"`
	Frame           uint64  `json:"frame" example:"1200" doc:"Frames encoded"`
	FPS             float64 `json:"fps" example:"59.8" doc:"Current encoding FPS"`
	Bitrate         string  `json:"bitrate" example:"2345.6kbits/s" doc:"Current output bitrate"`
	TotalSize       uint64  `json:"total_size" example:"10485760" doc:"Bytes written"`
	ElapsedUS       int64   `json:"elapsed_us" example:"40000000" doc:"Output timestamp in microseconds"`
	DuplicateFrames int64   `json:"dup_frames" doc:"Duplicated frames"`
	DroppedFrames   int64   `json:"drop_frames" doc:"Dropped frames"`
	Speed           string  `json:"speed" example:"1.98x" doc:"Encoding speed relative to realtime"`
	Status          string  `json:"status" example:"continue" doc:"continue or end"`
	Percent         float64 `json:"percent" example:"42.5" doc:"Percent of input encoded, 0 when duration is unknown"`
	Timestamp       string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobProgressEvent.
func (e JobProgressEvent) Type() uint32 { return TypeJobProgress }

// JobFinishedEvent is published when a render job reaches a final state.
type JobFinishedEvent struct {
	JobID     string `json:"job_id" example:"3Ukq9LpWbZ2mH7rN" doc:"Render job ID"`
	State     string `json:"state" example:"completed" doc:"Final state: completed, failed or cancelled"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Exit status, -1 when killed"`
	Error     string `json:"error,omitempty" doc:"Failure description"`
	Duration  string `json:"duration" example:"1m2.5s" doc:"Wall time of the job"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobFinishedEvent.
func (e JobFinishedEvent) Type() uint32 { return TypeJobFinished }

// LogEntryEvent mirrors one log record for the log stream.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Position in the server log history"`
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"process" doc:"Logger module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// ConfigReloadedEvent is published after the config file changed on disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"config.toml" doc:"Reloaded file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
