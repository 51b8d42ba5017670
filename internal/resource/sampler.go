// Package resource samples host resource usage during a run, feeding the
// resources map of a Result document, grounded on the spec's resources
// field and the teacher's shirou/gopsutil/v3 dependency.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sampler periodically records memory and CPU usage while a container runs,
// reporting peak and average figures.
type Sampler struct {
	interval time.Duration

	mu          sync.Mutex
	memSamples  []float64
	cpuSamples  []float64
}

// NewSampler returns a Sampler that polls every interval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Sampler{interval: interval}
}

// Run polls until ctx is canceled, recording each sample. Call this in a
// goroutine alongside the container execution it observes.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	var memPercent, cpuPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	s.mu.Lock()
	s.memSamples = append(s.memSamples, memPercent)
	s.cpuSamples = append(s.cpuSamples, cpuPercent)
	s.mu.Unlock()
}

// Summary reduces the collected samples into the resources map shape used by
// Result: memory_peak, memory_average, cpu_usage.
func (s *Sampler) Summary() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]float64{
		"memory_peak":    peak(s.memSamples),
		"memory_average": average(s.memSamples),
		"cpu_usage":      average(s.cpuSamples),
	}
}

func peak(values []float64) float64 {
	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
