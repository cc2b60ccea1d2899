package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
)

// ResourceProber reads host CPU, memory and disk usage.
type ResourceProber interface {
	Snapshot(ctx context.Context) (models.ResourceSnapshot, error)
}

// InventorySource reports catalog totals.
type InventorySource interface {
	Inventory(ctx context.Context) (models.ContentInventory, error)
}

// MonitoringService assembles telemetry documents. startedAt is fixed at
// construction and never changes for the life of the process.
type MonitoringService struct {
	probe     ResourceProber
	inventory InventorySource
	clock     clock.Clock
	startedAt time.Time
}

func NewMonitoringService(probe ResourceProber, inventory InventorySource, c clock.Clock, startedAt time.Time) *MonitoringService {
	if c == nil {
		c = clock.Real()
	}
	return &MonitoringService{probe: probe, inventory: inventory, clock: c, startedAt: startedAt}
}

// StartedAt is the process start time.
func (s *MonitoringService) StartedAt() time.Time { return s.startedAt }

// Uptime is whole seconds since start.
func (s *MonitoringService) Uptime() int64 {
	d := s.clock.Now().Sub(s.startedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func (s *MonitoringService) System(ctx context.Context) (models.ResourceSnapshot, error) {
	snap, err := s.probe.Snapshot(ctx)
	if err != nil {
		return models.ResourceSnapshot{}, common.Wrap(common.KindInternal, err, "probe resources")
	}
	return snap, nil
}

func (s *MonitoringService) Storage(ctx context.Context) (models.ContentInventory, error) {
	return s.inventory.Inventory(ctx)
}

// Snapshot builds one full telemetry document.
func (s *MonitoringService) Snapshot(ctx context.Context) (models.TelemetrySnapshot, error) {
	res, err := s.System(ctx)
	if err != nil {
		return models.TelemetrySnapshot{}, err
	}
	inv, err := s.Storage(ctx)
	if err != nil {
		return models.TelemetrySnapshot{}, err
	}
	return models.TelemetrySnapshot{
		Resources:     res,
		Inventory:     inv,
		UptimeSeconds: s.Uptime(),
	}, nil
}
