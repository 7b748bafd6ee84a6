package models

import (
	"time"

	"github.com/smazurov/captioner/internal/progress"
)

// RenderCreateRequest starts a subtitle burn-in.
type RenderCreateRequest struct {
	Body struct {
		Input      string   `json:"input" minLength:"1" example:"/media/in.mp4" doc:"Source video"`
		Subtitles  string   `json:"subtitles" minLength:"1" example:"/media/in.srt" doc:"Subtitle file rendered into the picture"`
		Output     string   `json:"output" minLength:"1" example:"/media/out.mp4" doc:"Destination file"`
		ForceStyle string   `json:"force_style,omitempty" example:"FontSize=24" doc:"ASS style override"`
		Charenc    string   `json:"charenc,omitempty" example:"CP1252" doc:"Subtitle encoding when not UTF-8"`
		Encoder    string   `json:"encoder,omitempty" example:"libx264" doc:"Video encoder"`
		CRF        int      `json:"crf,omitempty" minimum:"0" maximum:"51" example:"20" doc:"Constant rate factor"`
		Preset     string   `json:"preset,omitempty" example:"veryfast" doc:"Encoder preset"`
		AudioCodec string   `json:"audio_codec,omitempty" example:"copy" doc:"Audio codec"`
		Overwrite  bool     `json:"overwrite,omitempty" doc:"Replace an existing output file"`
		Options    []string `json:"options,omitempty" example:"[\"faststart\"]" doc:"Render option keys from GET /api/options"`
		TimeoutMS  int      `json:"timeout_ms,omitempty" minimum:"0" doc:"Graceful timeout in milliseconds, 0 uses the server default"`
	}
}

// RenderData is one render job.
type RenderData struct {
	ID            string           `json:"id" example:"3Ukq9LpWbZ2mH7rN" doc:"Job ID"`
	Command       string           `json:"command" doc:"ffmpeg command line"`
	State         string           `json:"state" example:"running" doc:"pending, running, completed, failed or cancelled"`
	PID           int              `json:"pid,omitempty" doc:"Child process ID while running"`
	Percent       float64          `json:"percent" example:"42.5" doc:"Percent of input encoded, 0 when the duration is unknown"`
	InputDuration float64          `json:"input_duration_seconds,omitempty" doc:"Probed input duration"`
	Progress      *progress.Record `json:"progress,omitempty" doc:"Last decoded progress record"`
	ExitCode      int              `json:"exit_code" doc:"Exit status, -1 until exit or when killed"`
	Error         string           `json:"error,omitempty" doc:"Failure description"`
	ParseErrors   int              `json:"parse_errors,omitempty" doc:"Progress blocks that failed to decode"`
	Stderr        string           `json:"stderr,omitempty" doc:"ffmpeg log output, set once the job is final"`
	CreatedAt     time.Time        `json:"created_at" doc:"Submission time"`
	StartedAt     *time.Time       `json:"started_at,omitempty" doc:"Spawn time"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty" doc:"Completion time"`
}

// RenderResponse wraps RenderData.
type RenderResponse struct {
	Body RenderData
}

// RenderListResponse lists jobs oldest first.
type RenderListResponse struct {
	Body struct {
		Renders []RenderData `json:"renders" doc:"Render jobs"`
	}
}

// RenderIDInput addresses a single job.
type RenderIDInput struct {
	ID string `path:"id" example:"3Ukq9LpWbZ2mH7rN" doc:"Job ID"`
}

// RenderStatsResponse is a resource sample of a running job.
type RenderStatsResponse struct {
	Body struct {
		PID        int     `json:"pid" doc:"Child process ID"`
		CPUPercent float64 `json:"cpu_percent" doc:"CPU usage since spawn"`
		MemoryRSS  uint64  `json:"memory_rss" doc:"Resident set size in bytes"`
	}
}
