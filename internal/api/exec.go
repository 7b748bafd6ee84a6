package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/captioner/internal/api/models"
	"github.com/smazurov/captioner/internal/process"
)

func (s *Server) registerExecRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exec-command",
		Method:      http.MethodPost,
		Path:        "/api/exec",
		Summary:     "Run Command",
		Description: "Run a command to completion. After the timeout the child is asked to stop, then killed.",
		Tags:        []string{"exec"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 422, 500},
	}, func(_ context.Context, input *models.ExecRequest) (*models.ExecResponse, error) {
		timeout := time.Duration(input.Body.TimeoutMS) * time.Millisecond
		if timeout == 0 && s.runner != nil {
			timeout = s.runner.DefaultTimeout()
		}
		capture := input.Body.Capture == nil || *input.Body.Capture

		data, err := s.execCommand(input.Body.Command, timeout, capture)
		if err != nil {
			return nil, mapProcessError(err)
		}
		return &models.ExecResponse{Body: data}, nil
	})
}

func (s *Server) execCommand(command string, timeout time.Duration, capture bool) (models.ExecData, error) {
	exec := process.New(s.logger)
	defer exec.Close()

	if err := exec.SetCommand(command); err != nil {
		return models.ExecData{}, err
	}
	exec.CaptureOutput(capture)

	start := time.Now()
	if err := exec.Start(); err != nil {
		return models.ExecData{}, err
	}
	pid := exec.PID()

	out, err := exec.WaitUntilFinished(timeout)
	if err != nil {
		return models.ExecData{}, err
	}
	return models.ExecData{
		PID:        pid,
		ExitCode:   exec.ExitCode(),
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// mapProcessError converts executor errors to huma errors.
func mapProcessError(err error) error {
	switch {
	case errors.Is(err, process.ErrInvalidCommand):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, process.ErrSpawn):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, process.ErrInvalidState):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
