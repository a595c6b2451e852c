package driven

import (
	"context"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
)

// StatisticsCache defines the driven port for cached per-repository statistics.
// Set with a nil stats value clears the entry, whether or not one exists.
// Get returns nil, nil when no entry is cached.
type StatisticsCache interface {
	Get(ctx context.Context, fullName string) (*model.Statistics, error)
	Set(ctx context.Context, fullName string, stats *model.Statistics) error
}
