package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	promadapter "github.com/ericfisherdev/isitmaintained/internal/adapter/driven/prometheus"
	"github.com/ericfisherdev/isitmaintained/internal/application"
	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
)

type statsUpdateCmd struct{}

// Run refreshes one repository. A run skipped because another process holds
// the lock, and a run with nothing to update, both succeed.
func (c *statsUpdateCmd) Run(a *app) error {
	repoStore, err := a.repoStore()
	if err != nil {
		return err
	}
	cache, err := a.statisticsCache()
	if err != nil {
		return err
	}

	recorder := promadapter.NewRecorder(prom.NewRegistry(), a.clock)
	job := application.NewUpdateStatisticsJob(
		a.locker(),
		repoStore,
		cache,
		a.statisticsProvider(cache),
		recorder,
		a.clock,
		a.logger,
	)

	result, err := job.Run(a.ctx)
	a.pushMetrics(recorder)
	if err != nil {
		return err
	}

	switch {
	case result.Skipped:
		fmt.Fprintln(a.out, "The command is already running in another process.")
	case result.Repository == "":
		fmt.Fprintln(a.out, "No repository to update.")
	default:
		fmt.Fprintf(a.out, "Updated %s in %s\n", result.Repository, result.Duration.Round(time.Millisecond))
	}
	return nil
}

type statsShowCmd struct {
	Name string `arg:"" help:"Repository as owner/name."`
}

func (c *statsShowCmd) Run(a *app) error {
	owner, name, err := model.SplitFullName(c.Name)
	if err != nil {
		return err
	}
	cache, err := a.statisticsCache()
	if err != nil {
		return err
	}

	stats, err := a.statisticsProvider(cache).GetStatistics(a.ctx, owner, name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Repository:\t%s\n", c.Name)
	fmt.Fprintf(w, "Resolution time:\t%s\n", formatDuration(stats.ResolutionTime))
	fmt.Fprintf(w, "Open issues:\t%d%% (%d open, %d closed)\n", stats.OpenIssuesPercent(), stats.OpenIssues, stats.ClosedIssues)
	fmt.Fprintf(w, "Computed at:\t%s\n", stats.ComputedAt.Format(time.RFC3339))
	return w.Flush()
}

type repoAddCmd struct {
	Name string `arg:"" help:"Repository as owner/name."`
}

func (c *repoAddCmd) Run(a *app) error {
	if _, _, err := model.SplitFullName(c.Name); err != nil {
		return err
	}
	store, err := a.repoStore()
	if err != nil {
		return err
	}

	if err := store.Add(a.ctx, model.Repository{FullName: c.Name, AddedAt: a.clock.Now().UTC()}); err != nil {
		return err
	}

	a.logger.Info("repository added", "repo", c.Name)
	fmt.Fprintf(a.out, "Tracking %s\n", c.Name)
	return nil
}

type repoRemoveCmd struct {
	Name string `arg:"" help:"Repository as owner/name."`
}

// Run removes the repository and drops its cached statistics.
func (c *repoRemoveCmd) Run(a *app) error {
	store, err := a.repoStore()
	if err != nil {
		return err
	}
	cache, err := a.statisticsCache()
	if err != nil {
		return err
	}

	if err := store.Remove(a.ctx, c.Name); err != nil {
		return err
	}
	if err := cache.Set(a.ctx, c.Name, nil); err != nil {
		return err
	}

	a.logger.Info("repository removed", "repo", c.Name)
	fmt.Fprintf(a.out, "Stopped tracking %s\n", c.Name)
	return nil
}

type repoListCmd struct{}

func (c *repoListCmd) Run(a *app) error {
	store, err := a.repoStore()
	if err != nil {
		return err
	}

	repos, err := store.ListAll(a.ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tLAST UPDATE")
	for _, repo := range repos {
		lastUpdate := "never"
		if t := repo.LastUpdatedAt(); !t.IsZero() {
			lastUpdate = t.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\n", repo.FullName, lastUpdate)
	}
	return w.Flush()
}

// formatDuration renders a resolution time in days and hours, the scale at
// which issue resolution is meaningful.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	switch {
	case days == 0 && hours == 0:
		return "< 1h"
	case days == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dd %dh", days, hours)
	}
}
