package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/ericfisherdev/isitmaintained/internal/adapter/driven/filelock"
	githubadapter "github.com/ericfisherdev/isitmaintained/internal/adapter/driven/github"
	promadapter "github.com/ericfisherdev/isitmaintained/internal/adapter/driven/prometheus"
	sqliteadapter "github.com/ericfisherdev/isitmaintained/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/isitmaintained/internal/application"
	"github.com/ericfisherdev/isitmaintained/internal/config"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// pushJobName groups the metrics of every stats update run on the Pushgateway.
const pushJobName = "isitmaintained_stats_update"

// app is the composition root shared by all commands. Adapters are created on
// first use so commands only open what they need.
type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	clock  clockwork.Clock

	db          *sqliteadapter.DB
	issueSource driven.IssueSource // Overridden in tests.
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) *app {
	return &app{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		out:    out,
		clock:  clockwork.NewRealClock(),
	}
}

// database opens the SQLite database and applies pending migrations.
func (a *app) database() (*sqliteadapter.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	db, err := sqliteadapter.NewDB(a.ctx, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.logger.Debug("database opened", "path", a.cfg.DBPath, "schema_version", version)

	a.db = db
	return db, nil
}

func (a *app) repoStore() (*sqliteadapter.RepoRepo, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return sqliteadapter.NewRepoRepo(db), nil
}

func (a *app) statisticsCache() (*sqliteadapter.StatisticsRepo, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return sqliteadapter.NewStatisticsRepo(db), nil
}

func (a *app) statisticsProvider(cache driven.StatisticsCache) *application.CachingStatisticsProvider {
	source := a.issueSource
	if source == nil {
		if !a.cfg.HasGitHubToken() {
			a.logger.Warn("no github token configured, using unauthenticated requests")
		}
		source = githubadapter.NewClient(a.cfg.GitHubToken, a.cfg.IssuePageLimit)
	}
	return application.NewCachingStatisticsProvider(source, cache, a.clock)
}

// pushMetrics sends the recorder's metrics to the configured Pushgateway. A
// failed push is logged and does not fail the command.
func (a *app) pushMetrics(recorder *promadapter.Recorder) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := recorder.Push(a.ctx, a.cfg.PushgatewayURL, pushJobName); err != nil {
		a.logger.Warn("metrics push failed", "error", err)
		return
	}
	a.logger.Debug("metrics pushed", "url", a.cfg.PushgatewayURL)
}

func (a *app) locker() *filelock.Locker {
	return filelock.NewLocker(a.cfg.LockDir)
}

// Close releases the database connections, if any were opened.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
	a.db = nil
}
