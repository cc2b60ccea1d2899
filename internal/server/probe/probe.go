// Package probe reads host CPU, memory and disk usage for the telemetry
// channel and the monitoring endpoints.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

// DefaultSampleGap is the pause between the two CPU counter readings.
const DefaultSampleGap = 100 * time.Millisecond

// Probe samples host resources. Disk usage is reported for the filesystem
// holding root.
type Probe struct {
	root      string
	procRoot  string
	sampleGap time.Duration
}

func New(root string, sampleGap time.Duration) *Probe {
	if sampleGap <= 0 {
		sampleGap = DefaultSampleGap
	}
	return &Probe{root: root, procRoot: "/proc", sampleGap: sampleGap}
}

// Snapshot takes one reading. It blocks for the sample gap and returns
// early with ctx.Err() when ctx is cancelled.
func (p *Probe) Snapshot(ctx context.Context) (models.ResourceSnapshot, error) {
	var snap models.ResourceSnapshot

	before, err := readCPU(p.procRoot)
	if err != nil {
		return snap, fmt.Errorf("read cpu stats: %w", err)
	}

	timer := time.NewTimer(p.sampleGap)
	select {
	case <-ctx.Done():
		timer.Stop()
		return snap, ctx.Err()
	case <-timer.C:
	}

	after, err := readCPU(p.procRoot)
	if err != nil {
		return snap, fmt.Errorf("read cpu stats: %w", err)
	}
	snap.CPUPercent = CPUPercent(before, after)

	mem, err := readMemory(p.procRoot)
	if err != nil {
		return snap, fmt.Errorf("read memory stats: %w", err)
	}
	snap.MemoryTotalBytes = mem.Total
	snap.MemoryUsedBytes = mem.Used()

	disk, err := diskUsage(p.root)
	if err != nil {
		return snap, fmt.Errorf("stat %s: %w", p.root, err)
	}
	snap.DiskTotalBytes = disk.Total
	snap.DiskUsedBytes = disk.Used
	snap.DiskFreeBytes = disk.Free

	return snap, nil
}
