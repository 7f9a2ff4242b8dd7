package adapters

import (
	"context"

	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
)

// StatsAdapter exposes the read-only aggregate view.
type StatsAdapter struct {
	core *memory.Core
}

// NewStatsAdapter creates an adapter over the core's stats aggregation.
func NewStatsAdapter(core *memory.Core) *StatsAdapter {
	return &StatsAdapter{core: core}
}

// Stats gathers per-component counts concurrently.
func (a *StatsAdapter) Stats(ctx context.Context) (memory.Stats, error) {
	return a.core.Stats(ctx)
}
