package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/captioner/internal/api/models"
	"github.com/smazurov/captioner/internal/ffmpeg"
)

func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-render-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Render Options",
		Description: "Flags accepted in the options list of POST /api/renders, with conflicts",
		Tags:        []string{"renders"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{Body: models.OptionsData{Options: ffmpeg.AllOptions}}, nil
	})
}
