package models

import "github.com/smazurov/captioner/internal/ffmpeg"

// HealthData reports liveness.
type HealthData struct {
	Status     string `json:"status" example:"ok" doc:"Service status"`
	Message    string `json:"message" example:"API is healthy" doc:"Status message"`
	ActiveJobs int    `json:"active_jobs" example:"1" doc:"Render jobs pending or running"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData is build metadata.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2026-01-15T14:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// OptionsData lists the render flags accepted by POST /api/renders.
type OptionsData struct {
	Options []ffmpeg.Option `json:"options" doc:"Available render options"`
}

// OptionsResponse wraps OptionsData.
type OptionsResponse struct {
	Body OptionsData
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Body struct {
		Message string `json:"message" example:"ok" doc:"Status message"`
	}
}

// NewMessage builds a MessageResponse.
func NewMessage(msg string) *MessageResponse {
	r := &MessageResponse{}
	r.Body.Message = msg
	return r
}
