package models

// ExecRequest runs one command synchronously.
type ExecRequest struct {
	Body struct {
		Command   string `json:"command" minLength:"1" example:"ffprobe -version" doc:"Command line, split on whitespace with quote grouping"`
		TimeoutMS int    `json:"timeout_ms,omitempty" minimum:"0" example:"5000" doc:"Graceful timeout in milliseconds, 0 uses the server default"`
		Capture   *bool  `json:"capture,omitempty" doc:"Return stdout and stderr, default true"`
	}
}

// ExecData is the outcome of a finished command.
type ExecData struct {
	PID        int    `json:"pid" example:"4242" doc:"Process ID the child ran as"`
	ExitCode   int    `json:"exit_code" example:"0" doc:"Exit status, -1 when killed by a signal"`
	Stdout     string `json:"stdout" doc:"Captured standard output"`
	Stderr     string `json:"stderr" doc:"Captured standard error"`
	DurationMS int64  `json:"duration_ms" example:"37" doc:"Wall time from start to exit"`
}

// ExecResponse wraps ExecData.
type ExecResponse struct {
	Body ExecData
}
