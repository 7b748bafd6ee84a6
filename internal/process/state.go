package process

// State is the lifecycle position of an Executor.
type State string

// Executor states.
const (
	StateIdle     State = "idle"     // Never started
	StateRunning  State = "running"  // Child spawned, not yet waited on
	StateFinished State = "finished" // Waited on or torn down
)

// Output is the text captured from one run.
// Both fields are empty when capture is disabled.
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Callback receives each chunk read from the child's stdout, in order.
// The slice is reused after the call returns.
type Callback func(chunk []byte)
