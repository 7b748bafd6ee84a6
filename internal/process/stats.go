package process

import (
	"fmt"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Stats is a resource sample of a running child.
type Stats struct {
	PID    int     `json:"pid"`
	CPU    float64 `json:"cpu_percent"`
	Memory uint64  `json:"memory_rss"`
}

// Stats samples CPU and resident memory of the running child.
func (e *Executor) Stats() (Stats, error) {
	e.mu.Lock()
	if e.state != StateRunning || e.run == nil {
		state := e.state
		e.mu.Unlock()
		return Stats{}, stateError("Stats", state)
	}
	pid := e.run.h.pid
	e.mu.Unlock()

	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return Stats{}, fmt.Errorf("inspect pid %d: %w", pid, err)
	}

	stats := Stats{PID: pid}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPU = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.Memory = mem.RSS
	}
	return stats, nil
}
