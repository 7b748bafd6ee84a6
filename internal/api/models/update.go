package models

import "time"

// UpdateCheckData describes the newest release.
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Installed version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Newest release"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Markdown release notes"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Release page"`
	PublishedAt     time.Time `json:"published_at,omitzero" doc:"Publication time"`
	AssetSize       int       `json:"asset_size,omitempty" example:"5242880" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether the release is newer"`
}

// UpdateCheckResponse wraps UpdateCheckData.
type UpdateCheckResponse struct {
	Body UpdateCheckData
}

// UpdateStatusData is the updater state.
type UpdateStatusData struct {
	State           string     `json:"state" example:"idle" doc:"Updater state"`
	CurrentVersion  string     `json:"current_version" example:"1.0.0" doc:"Installed version"`
	TargetVersion   string     `json:"target_version,omitempty" example:"1.1.0" doc:"Version found by the last check"`
	Error           string     `json:"error,omitempty" doc:"Last failure"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"Time of the last check"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether rollback is possible"`
	BackupVersion   string     `json:"backup_version,omitempty" example:"0.9.0" doc:"Version held in the backup"`
}

// UpdateStatusResponse wraps UpdateStatusData.
type UpdateStatusResponse struct {
	Body UpdateStatusData
}
