package process

import (
	"time"

	"github.com/smazurov/captioner/internal/logging"
)

// escalate waits for h to exit within timeout: half the budget passively,
// half after a graceful stop request. Past the budget the child is killed
// and the final confirmation wait is unbounded.
func escalate(h *handle, timeout time.Duration, logger logging.Logger) {
	if h.exited() {
		return
	}

	half := timeout / 2
	if h.wait(half) {
		return
	}

	logger.Info("Requesting graceful stop", "pid", h.pid, "step", "stop", "timeout", timeout)
	if err := h.stop(); err != nil {
		logger.Warn("Failed to request graceful stop", "pid", h.pid, "step", "stop", "error", err)
	}
	if h.wait(timeout - half) {
		return
	}

	logger.Warn("Graceful stop timed out, forcing kill", "pid", h.pid, "step", "kill", "timeout", timeout)
	if err := h.kill(); err != nil {
		logger.Error("Failed to kill process", "pid", h.pid, "step", "kill", "error", err)
	}
	<-h.done
}
