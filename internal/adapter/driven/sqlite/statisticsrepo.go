package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatisticsCache = (*StatisticsRepo)(nil)

// StatisticsRepo is the SQLite implementation of the StatisticsCache port interface.
// Entries are keyed by repository full name and are independent of the
// repositories table, so statistics can be cached for unregistered repositories.
type StatisticsRepo struct {
	db *DB
}

// NewStatisticsRepo creates a new StatisticsRepo backed by the given DB.
func NewStatisticsRepo(db *DB) *StatisticsRepo {
	return &StatisticsRepo{db: db}
}

// Get returns the cached statistics for fullName, or nil, nil if none are cached.
func (r *StatisticsRepo) Get(ctx context.Context, fullName string) (*model.Statistics, error) {
	const query = `SELECT open_issues, closed_issues, open_issues_ratio, resolution_time_seconds, computed_at
		FROM statistics_cache WHERE full_name = ?`

	var stats model.Statistics
	var resolutionSeconds int64
	var computedAt string

	err := r.db.Reader.QueryRowContext(ctx, query, fullName).Scan(
		&stats.OpenIssues,
		&stats.ClosedIssues,
		&stats.OpenIssuesRatio,
		&resolutionSeconds,
		&computedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get statistics %s: %w", fullName, err)
	}

	stats.ResolutionTime = time.Duration(resolutionSeconds) * time.Second
	stats.ComputedAt, err = parseTime(computedAt)
	if err != nil {
		return nil, fmt.Errorf("parse computed_at for %s: %w", fullName, err)
	}

	return &stats, nil
}

// Set stores stats for fullName, replacing any existing entry. A nil stats
// clears the entry; clearing a missing entry is not an error.
func (r *StatisticsRepo) Set(ctx context.Context, fullName string, stats *model.Statistics) error {
	if stats == nil {
		const query = `DELETE FROM statistics_cache WHERE full_name = ?`
		if _, err := r.db.Writer.ExecContext(ctx, query, fullName); err != nil {
			return fmt.Errorf("clear statistics %s: %w", fullName, err)
		}
		return nil
	}

	const query = `INSERT OR REPLACE INTO statistics_cache
		(full_name, open_issues, closed_issues, open_issues_ratio, resolution_time_seconds, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		fullName,
		stats.OpenIssues,
		stats.ClosedIssues,
		stats.OpenIssuesRatio,
		int64(stats.ResolutionTime/time.Second),
		formatTime(stats.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("set statistics %s: %w", fullName, err)
	}

	return nil
}
