package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/logging"
)

type logsInput struct {
	Module string `query:"module" doc:"Only stream entries from this logger module"`
	Since  uint64 `query:"since" doc:"Skip history up to and including this sequence number"`
}

func logEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// registerLogRoutes registers the log stream. Buffered history is sent
// before live entries, each entry once.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, input *logsInput, send sse.Sender) {
		keep := func(e events.LogEntryEvent) bool {
			return input.Module == "" || e.Module == input.Module
		}

		// subscribe before replaying so nothing logged in between is lost
		eventCh := make(chan any, 256)
		unsubscribe := events.SubscribeToChannelFunc(s.eventBus, eventCh, keep)
		defer unsubscribe()

		sent := input.Since
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.Since(input.Since) {
				ev := logEvent(entry)
				sent = ev.Seq
				if !keep(ev) {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-eventCh:
				if ev, ok := msg.(events.LogEntryEvent); ok && ev.Seq != 0 && ev.Seq <= sent {
					continue
				}
				if err := send.Data(msg); err != nil {
					return
				}
			}
		}
	})
}
