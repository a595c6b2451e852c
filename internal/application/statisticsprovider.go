package application

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// StatisticsProvider returns the statistics of owner/name. Implementations
// are expected to populate the statistics cache as a side effect.
type StatisticsProvider interface {
	GetStatistics(ctx context.Context, owner, name string) (*model.Statistics, error)
}

// Compile-time interface satisfaction check.
var _ StatisticsProvider = (*CachingStatisticsProvider)(nil)

// CachingStatisticsProvider serves statistics from the cache and computes
// them from the issue source on a miss.
type CachingStatisticsProvider struct {
	source driven.IssueSource
	cache  driven.StatisticsCache
	clock  clockwork.Clock
}

// NewCachingStatisticsProvider creates a provider reading issues from source
// and caching results in cache. A nil clock uses the real clock.
func NewCachingStatisticsProvider(source driven.IssueSource, cache driven.StatisticsCache, clock clockwork.Clock) *CachingStatisticsProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachingStatisticsProvider{
		source: source,
		cache:  cache,
		clock:  clock,
	}
}

// GetStatistics returns cached statistics when present. Otherwise it fetches
// the issues of owner/name, computes the statistics and writes them into the
// cache before returning them.
func (p *CachingStatisticsProvider) GetStatistics(ctx context.Context, owner, name string) (*model.Statistics, error) {
	fullName := owner + "/" + name

	cached, err := p.cache.Get(ctx, fullName)
	if err != nil {
		return nil, fmt.Errorf("read cached statistics for %s: %w", fullName, err)
	}
	if cached != nil {
		return cached, nil
	}

	issues, err := p.source.FetchIssues(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetch issues for %s: %w", fullName, err)
	}

	stats := model.ComputeStatistics(issues, p.clock.Now())
	if err := p.cache.Set(ctx, fullName, &stats); err != nil {
		return nil, fmt.Errorf("cache statistics for %s: %w", fullName, err)
	}

	return &stats, nil
}
