package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/captioner/internal/api/models"
	"github.com/smazurov/captioner/internal/updater"
)

// registerUpdateRoutes registers self-update endpoints. They answer 503
// when the service is absent or disabled.
func (s *Server) registerUpdateRoutes() {
	svc := s.options.UpdateService

	unavailable := func() error {
		if svc == nil {
			return huma.Error503ServiceUnavailable("Update service not configured")
		}
		if !svc.IsEnabled() {
			return huma.Error503ServiceUnavailable("Update service disabled: " + svc.DisabledReason())
		}
		return nil
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodGet,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Tags:        []string{"update"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
		if err := unavailable(); err != nil {
			return nil, err
		}
		info, err := svc.CheckForUpdate(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{Body: models.UpdateCheckData{
			CurrentVersion:  info.CurrentVersion,
			LatestVersion:   info.LatestVersion,
			ReleaseNotes:    info.ReleaseNotes,
			ReleaseURL:      info.ReleaseURL,
			PublishedAt:     info.PublishedAt,
			AssetSize:       info.AssetSize,
			UpdateAvailable: info.UpdateAvailable,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update/status",
		Summary:     "Update Status",
		Tags:        []string{"update"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		if err := unavailable(); err != nil {
			return nil, err
		}
		st := svc.GetStatus(ctx)
		return &models.UpdateStatusResponse{Body: models.UpdateStatusData{
			State:           string(st.State),
			CurrentVersion:  st.CurrentVersion,
			TargetVersion:   st.TargetVersion,
			Error:           st.Error,
			LastChecked:     st.LastChecked,
			BackupAvailable: st.BackupAvailable,
			BackupVersion:   st.BackupVersion,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update/apply",
		Summary:     "Apply Update",
		Description: "Install the latest release and restart. Refused while renders are running.",
		Tags:        []string{"update"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if err := unavailable(); err != nil {
			return nil, err
		}
		if err := svc.ApplyUpdate(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return models.NewMessage("Update applied, restarting..."), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Rollback Update",
		Tags:        []string{"update"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if err := unavailable(); err != nil {
			return nil, err
		}
		if err := svc.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		return models.NewMessage("Rollback complete, restarting..."), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/update/restart",
		Summary:     "Restart Service",
		Tags:        []string{"update"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
		if svc == nil {
			return nil, huma.Error503ServiceUnavailable("Update service not configured")
		}
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return models.NewMessage("Restarting..."), nil
	})
}

// mapUpdateError converts updater errors to huma errors.
func mapUpdateError(err error) error {
	var ue *updater.Error
	if !errors.As(err, &ue) {
		return huma.Error500InternalServerError(err.Error())
	}
	switch ue.Code {
	case updater.ErrCodeInvalidState, updater.ErrCodeBusy:
		return huma.Error409Conflict(ue.Message)
	case updater.ErrCodeNoUpdate:
		return huma.Error400BadRequest(ue.Message)
	case updater.ErrCodeNotFound, updater.ErrCodeNoBackup:
		return huma.Error404NotFound(ue.Message)
	case updater.ErrCodeDisabled:
		return huma.Error503ServiceUnavailable(ue.Message)
	default:
		return huma.Error500InternalServerError(ue.Message)
	}
}
