package main

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

type ProcUsage struct {
	PID int32
	RSS uint64
	CPU float64
}

// currentUsage reports the resident memory and CPU share of this process.
func currentUsage() (ProcUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcUsage{}, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return ProcUsage{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return ProcUsage{}, err
	}
	return ProcUsage{PID: p.Pid, RSS: mem.RSS, CPU: cpu}, nil
}
