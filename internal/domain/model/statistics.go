package model

import (
	"sort"
	"time"
)

// Issue is the subset of a GitHub issue needed to compute statistics.
// Pull requests are never represented as issues.
type Issue struct {
	Number    int
	Open      bool
	CreatedAt time.Time
	ClosedAt  time.Time // Zero while the issue is open.
}

// Statistics holds the maintenance indicators computed for a repository.
type Statistics struct {
	OpenIssues      int
	ClosedIssues    int
	OpenIssuesRatio float64       // OpenIssues / (OpenIssues + ClosedIssues), 0 when there are no issues.
	ResolutionTime  time.Duration // Median time from creation to closing over closed issues, in whole seconds.
	ComputedAt      time.Time
}

// OpenIssuesPercent returns OpenIssuesRatio as a rounded percentage.
func (s Statistics) OpenIssuesPercent() int {
	return int(s.OpenIssuesRatio*100 + 0.5)
}

// ComputeStatistics derives Statistics from a list of issues. Closed issues
// whose close time precedes their creation time are counted but excluded
// from the resolution time median.
func ComputeStatistics(issues []Issue, now time.Time) Statistics {
	stats := Statistics{ComputedAt: now.UTC()}

	var durations []time.Duration
	for _, issue := range issues {
		if issue.Open {
			stats.OpenIssues++
			continue
		}
		stats.ClosedIssues++
		if issue.ClosedAt.IsZero() || issue.ClosedAt.Before(issue.CreatedAt) {
			continue
		}
		durations = append(durations, issue.ClosedAt.Sub(issue.CreatedAt))
	}

	if total := stats.OpenIssues + stats.ClosedIssues; total > 0 {
		stats.OpenIssuesRatio = float64(stats.OpenIssues) / float64(total)
	}
	stats.ResolutionTime = median(durations).Round(time.Second)

	return stats
}

func median(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	mid := len(durations) / 2
	if len(durations)%2 == 1 {
		return durations[mid]
	}
	return (durations[mid-1] + durations[mid]) / 2
}
