package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/captioner/internal/events"
)

type eventsInput struct {
	Job string `query:"job" doc:"Only forward events of this render job"`
}

// registerSSERoutes registers the render event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Render lifecycle and progress events, plus config reload notices",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"job-started":     events.JobStartedEvent{},
		"job-progress":    events.JobProgressEvent{},
		"job-finished":    events.JobFinishedEvent{},
		"config-reloaded": events.ConfigReloadedEvent{},
	}, func(ctx context.Context, input *eventsInput, send sse.Sender) {
		eventCh := make(chan any, 32)

		job := input.Job
		unsubscribers := []func(){
			events.SubscribeToChannelFunc(s.eventBus, eventCh, func(e events.JobStartedEvent) bool {
				return job == "" || e.JobID == job
			}),
			events.SubscribeToChannelFunc(s.eventBus, eventCh, func(e events.JobProgressEvent) bool {
				return job == "" || e.JobID == job
			}),
			events.SubscribeToChannelFunc(s.eventBus, eventCh, func(e events.JobFinishedEvent) bool {
				return job == "" || e.JobID == job
			}),
		}
		if job == "" {
			unsubscribers = append(unsubscribers, events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh))
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
