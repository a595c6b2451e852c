// Package application contains use-case orchestration services.
package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// UpdateStatisticsJobName names the lock guarding the update job.
const UpdateStatisticsJobName = "stats:update"

// ErrProviderFailure indicates the statistics provider failed during a refresh.
var ErrProviderFailure = errors.New("statistics provider failed")

// UpdateResult describes the outcome of one UpdateStatisticsJob.Run.
type UpdateResult struct {
	// Skipped is true when another process held the job lock.
	Skipped bool
	// Repository is the full name of the refreshed repository, empty when
	// nothing was refreshed.
	Repository string
	// Duration is the wall-clock time spent refreshing Repository.
	Duration time.Duration
}

// UpdateStatisticsJob refreshes the statistics of the stalest repository.
// Each Run refreshes at most one repository; repeated runs cycle through the
// collection in order of staleness.
type UpdateStatisticsJob struct {
	locker    driven.Locker
	repoStore driven.RepoStore
	cache     driven.StatisticsCache
	provider  StatisticsProvider
	recorder  driven.JobRecorder
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewUpdateStatisticsJob creates a new UpdateStatisticsJob with all required
// dependencies. recorder, clock and logger may be nil.
func NewUpdateStatisticsJob(
	locker driven.Locker,
	repoStore driven.RepoStore,
	cache driven.StatisticsCache,
	provider StatisticsProvider,
	recorder driven.JobRecorder,
	clock clockwork.Clock,
	logger *slog.Logger,
) *UpdateStatisticsJob {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateStatisticsJob{
		locker:    locker,
		repoStore: repoStore,
		cache:     cache,
		provider:  provider,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
	}
}

// Run refreshes the repository with the oldest LastUpdateTimestamp. It returns
// a skipped result and no error when another process holds the job lock, and
// an empty result when there are no repositories. The lock is released on
// every path once acquired.
func (j *UpdateStatisticsJob) Run(ctx context.Context) (result UpdateResult, err error) {
	lock, ok, err := j.locker.TryAcquire(UpdateStatisticsJobName)
	if err != nil {
		return UpdateResult{}, err
	}
	if !ok {
		j.logger.Info("the command is already running in another process", "job", UpdateStatisticsJobName)
		j.recorder.IncSkipped()
		return UpdateResult{Skipped: true}, nil
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			if err == nil {
				err = releaseErr
				return
			}
			j.logger.Error("lock release failed", "job", UpdateStatisticsJobName, "error", releaseErr)
		}
	}()

	repos, err := j.repoStore.ListAll(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("list repositories: %w", err)
	}
	if len(repos) == 0 {
		j.logger.Info("no repositories to update")
		return UpdateResult{}, nil
	}

	repo := stalest(repos)
	j.logger.Info("updating repository statistics", "repo", repo.FullName, "last_update", repo.LastUpdateTimestamp)

	start := j.clock.Now()
	err = j.Refresh(ctx, &repo)
	duration := j.clock.Since(start)

	j.recorder.ObserveRefresh(repo.FullName, duration, err == nil)
	result = UpdateResult{Repository: repo.FullName, Duration: duration}
	if err != nil {
		return result, err
	}

	j.logger.Info("repository statistics updated",
		"repo", repo.FullName,
		"duration", duration.Round(time.Millisecond),
	)

	return result, nil
}

// Refresh clears the cached statistics of repo, recomputes them through the
// provider, then advances and persists repo's timestamp. When the provider
// fails the cache stays cleared and the timestamp is left unchanged, so the
// repository remains the first candidate for the next run.
func (j *UpdateStatisticsJob) Refresh(ctx context.Context, repo *model.Repository) error {
	owner, name, err := model.SplitFullName(repo.FullName)
	if err != nil {
		return err
	}

	if err := j.cache.Set(ctx, repo.FullName, nil); err != nil {
		return fmt.Errorf("clear statistics cache for %s: %w", repo.FullName, err)
	}

	if _, err := j.provider.GetStatistics(ctx, owner, name); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrProviderFailure, repo.FullName, err)
	}

	repo.Update(j.clock.Now())
	if err := j.repoStore.Save(ctx, *repo); err != nil {
		return fmt.Errorf("save repository %s: %w", repo.FullName, err)
	}

	return nil
}

// stalest returns the repository with the smallest LastUpdateTimestamp. Ties
// resolve to the earliest repository in enumeration order.
func stalest(repos []model.Repository) model.Repository {
	return slices.MinFunc(repos, func(a, b model.Repository) int {
		return cmp.Compare(a.LastUpdateTimestamp, b.LastUpdateTimestamp)
	})
}

type noopRecorder struct{}

func (noopRecorder) ObserveRefresh(string, time.Duration, bool) {}
func (noopRecorder) IncSkipped()                                {}
