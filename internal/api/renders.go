package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/captioner/internal/api/models"
	"github.com/smazurov/captioner/internal/ffmpeg"
	"github.com/smazurov/captioner/internal/process"
	"github.com/smazurov/captioner/internal/render"
)

func (s *Server) registerRenderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-render",
		Method:        http.MethodPost,
		Path:          "/api/renders",
		Summary:       "Start Render",
		Description:   "Burn subtitles into a video. The job runs in the background; follow it via GET /api/renders/{id} or /api/events.",
		Tags:          []string{"renders"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 422},
	}, func(_ context.Context, input *models.RenderCreateRequest) (*models.RenderResponse, error) {
		b := input.Body
		params := &ffmpeg.BurnParams{
			Input:      b.Input,
			Subtitles:  b.Subtitles,
			Output:     b.Output,
			ForceStyle: b.ForceStyle,
			Charenc:    b.Charenc,
			Encoder:    b.Encoder,
			CRF:        b.CRF,
			Preset:     b.Preset,
			AudioCodec: b.AudioCodec,
			Overwrite:  b.Overwrite,
		}
		for _, key := range b.Options {
			params.Options = append(params.Options, ffmpeg.OptionType(key))
		}

		info, err := s.runner.Render(params, render.RunOptions{
			Timeout: time.Duration(b.TimeoutMS) * time.Millisecond,
		})
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return &models.RenderResponse{Body: toRenderData(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-renders",
		Method:      http.MethodGet,
		Path:        "/api/renders",
		Summary:     "List Renders",
		Tags:        []string{"renders"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RenderListResponse, error) {
		resp := &models.RenderListResponse{}
		resp.Body.Renders = make([]models.RenderData, 0)
		for _, info := range s.runner.List() {
			resp.Body.Renders = append(resp.Body.Renders, toRenderData(info))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-render",
		Method:      http.MethodGet,
		Path:        "/api/renders/{id}",
		Summary:     "Get Render",
		Tags:        []string{"renders"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.RenderIDInput) (*models.RenderResponse, error) {
		info, err := s.runner.Get(input.ID)
		if err != nil {
			return nil, mapRenderError(err)
		}
		return &models.RenderResponse{Body: toRenderData(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-render-stats",
		Method:      http.MethodGet,
		Path:        "/api/renders/{id}/stats",
		Summary:     "Render Resource Usage",
		Description: "CPU and memory of the job's ffmpeg process. Only available while it runs.",
		Tags:        []string{"renders"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.RenderIDInput) (*models.RenderStatsResponse, error) {
		st, err := s.runner.Stats(input.ID)
		if err != nil {
			return nil, mapRenderError(err)
		}
		resp := &models.RenderStatsResponse{}
		resp.Body.PID = st.PID
		resp.Body.CPUPercent = st.CPU
		resp.Body.MemoryRSS = st.Memory
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-render",
		Method:      http.MethodDelete,
		Path:        "/api/renders/{id}",
		Summary:     "Cancel or Remove Render",
		Description: "Cancels a running job. A job that is already final is removed from the list.",
		Tags:        []string{"renders"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.RenderIDInput) (*models.MessageResponse, error) {
		info, err := s.runner.Get(input.ID)
		if err != nil {
			return nil, mapRenderError(err)
		}
		if info.State.Done() {
			if err := s.runner.Remove(input.ID); err != nil {
				return nil, mapRenderError(err)
			}
			return models.NewMessage("removed"), nil
		}
		if err := s.runner.Cancel(input.ID); err != nil {
			return nil, mapRenderError(err)
		}
		return models.NewMessage("cancelled"), nil
	})
}

func toRenderData(info render.Info) models.RenderData {
	data := models.RenderData{
		ID:            info.ID,
		Command:       info.Command,
		State:         string(info.State),
		PID:           info.PID,
		Percent:       info.Percent,
		InputDuration: info.InputDuration.Seconds(),
		Progress:      info.Progress,
		ExitCode:      info.ExitCode,
		Error:         info.Error,
		ParseErrors:   info.ParseErrors,
		Stderr:        info.Output.Stderr,
		CreatedAt:     info.CreatedAt,
	}
	if !info.StartedAt.IsZero() {
		t := info.StartedAt
		data.StartedAt = &t
	}
	if !info.FinishedAt.IsZero() {
		t := info.FinishedAt
		data.FinishedAt = &t
	}
	return data
}

func mapRenderError(err error) error {
	switch {
	case errors.Is(err, render.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, render.ErrRunning), errors.Is(err, process.ErrInvalidState):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
