package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/isitmaintained/internal/application"
	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// --- Mock implementations ---

// callLog records the order of side effects across collaborators.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

type mockLock struct {
	releases   int
	releaseErr error
}

func (m *mockLock) Release() error {
	m.releases++
	return m.releaseErr
}

type mockLocker struct {
	held       bool
	acquireErr error
	names      []string
	lock       *mockLock
}

func (m *mockLocker) TryAcquire(name string) (driven.ProcessLock, bool, error) {
	m.names = append(m.names, name)
	if m.acquireErr != nil {
		return nil, false, m.acquireErr
	}
	if m.held {
		return nil, false, nil
	}
	m.lock = &mockLock{}
	return m.lock, true, nil
}

type mockRepoStore struct {
	repos   []model.Repository
	saves   []model.Repository
	listErr error
	saveErr error
	log     *callLog
}

func (m *mockRepoStore) Add(_ context.Context, _ model.Repository) error {
	return nil
}

func (m *mockRepoStore) Remove(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepoStore) GetByFullName(_ context.Context, _ string) (*model.Repository, error) {
	return nil, nil
}

func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	// Return a copy so the job cannot mutate the fixture.
	out := make([]model.Repository, len(m.repos))
	copy(out, m.repos)
	return out, nil
}

func (m *mockRepoStore) Save(_ context.Context, repo model.Repository) error {
	m.log.add("save:" + repo.FullName)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, repo)
	return nil
}

type setCall struct {
	FullName string
	Stats    *model.Statistics
}

type mockCache struct {
	entries map[string]*model.Statistics
	sets    []setCall
	log     *callLog
}

func newMockCache(log *callLog) *mockCache {
	return &mockCache{entries: map[string]*model.Statistics{}, log: log}
}

func (m *mockCache) Get(_ context.Context, fullName string) (*model.Statistics, error) {
	return m.entries[fullName], nil
}

func (m *mockCache) Set(_ context.Context, fullName string, stats *model.Statistics) error {
	if stats == nil {
		m.log.add("clear:" + fullName)
		delete(m.entries, fullName)
	} else {
		m.log.add("cache:" + fullName)
		m.entries[fullName] = stats
	}
	m.sets = append(m.sets, setCall{FullName: fullName, Stats: stats})
	return nil
}

type providerCall struct {
	Owner string
	Name  string
}

type mockProvider struct {
	calls []providerCall
	err   error
	cache *mockCache
	clock *clockwork.FakeClock
	took  time.Duration
	log   *callLog
}

func (m *mockProvider) GetStatistics(ctx context.Context, owner, name string) (*model.Statistics, error) {
	m.log.add("provide:" + owner + "/" + name)
	m.calls = append(m.calls, providerCall{Owner: owner, Name: name})
	if m.clock != nil {
		m.clock.Advance(m.took)
	}
	if m.err != nil {
		return nil, m.err
	}
	stats := &model.Statistics{OpenIssues: 1}
	_ = m.cache.Set(ctx, owner+"/"+name, stats)
	return stats, nil
}

type mockRecorder struct {
	refreshes []refreshObservation
	skipped   int
}

type refreshObservation struct {
	Repo     string
	Duration time.Duration
	Success  bool
}

func (m *mockRecorder) ObserveRefresh(repo string, d time.Duration, success bool) {
	m.refreshes = append(m.refreshes, refreshObservation{Repo: repo, Duration: d, Success: success})
}

func (m *mockRecorder) IncSkipped() {
	m.skipped++
}

// --- Fixture ---

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	log      *callLog
	locker   *mockLocker
	store    *mockRepoStore
	cache    *mockCache
	provider *mockProvider
	recorder *mockRecorder
	clock    *clockwork.FakeClock
	job      *application.UpdateStatisticsJob
}

func newFixture(repos ...model.Repository) *fixture {
	log := &callLog{}
	clock := clockwork.NewFakeClockAt(epoch)
	cache := newMockCache(log)
	f := &fixture{
		log:      log,
		locker:   &mockLocker{},
		store:    &mockRepoStore{repos: repos, log: log},
		cache:    cache,
		provider: &mockProvider{cache: cache, clock: clock, took: 3 * time.Second, log: log},
		recorder: &mockRecorder{},
		clock:    clock,
	}
	f.job = application.NewUpdateStatisticsJob(f.locker, f.store, f.cache, f.provider, f.recorder, f.clock, nil)
	return f
}

func repoAt(fullName string, ts int64) model.Repository {
	return model.Repository{FullName: fullName, LastUpdateTimestamp: ts}
}

// --- Tests ---

func TestRun_RefreshesStalest(t *testing.T) {
	f := newFixture(
		repoAt("acme/widgets", epoch.Add(-time.Hour).Unix()),
		repoAt("acme/gadgets", epoch.Add(-48*time.Hour).Unix()),
		repoAt("acme/gizmos", epoch.Add(-2*time.Hour).Unix()),
	)

	result, err := f.job.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "acme/gadgets", result.Repository)
	assert.Equal(t, 3*time.Second, result.Duration)

	require.Len(t, f.store.saves, 1, "exactly one repository is refreshed per run")
	assert.Equal(t, "acme/gadgets", f.store.saves[0].FullName)
	assert.Equal(t, epoch.Add(3*time.Second).Unix(), f.store.saves[0].LastUpdateTimestamp)

	require.Len(t, f.provider.calls, 1)
	assert.Equal(t, providerCall{Owner: "acme", Name: "gadgets"}, f.provider.calls[0])

	assert.Equal(t, []string{"clear:acme/gadgets", "provide:acme/gadgets", "cache:acme/gadgets", "save:acme/gadgets"}, f.log.calls)

	require.Len(t, f.recorder.refreshes, 1)
	assert.Equal(t, refreshObservation{Repo: "acme/gadgets", Duration: 3 * time.Second, Success: true}, f.recorder.refreshes[0])

	assert.Equal(t, []string{application.UpdateStatisticsJobName}, f.locker.names)
	assert.Equal(t, 1, f.locker.lock.releases)
}

func TestRun_TieResolvesToEnumerationOrder(t *testing.T) {
	f := newFixture(
		repoAt("acme/newer", 200),
		repoAt("acme/first", 100),
		repoAt("acme/second", 100),
	)

	result, err := f.job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "acme/first", result.Repository)
}

func TestRun_NeverRefreshedComesFirst(t *testing.T) {
	f := newFixture(
		repoAt("acme/widgets", epoch.Unix()),
		repoAt("acme/fresh", 0),
	)

	result, err := f.job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "acme/fresh", result.Repository)
}

func TestRun_RepeatedRunsCycleByStaleness(t *testing.T) {
	f := newFixture(
		repoAt("acme/a", 300),
		repoAt("acme/b", 100),
		repoAt("acme/c", 200),
	)

	var order []string
	for range 4 {
		result, err := f.job.Run(context.Background())
		require.NoError(t, err)
		order = append(order, result.Repository)

		// Feed the persisted timestamp back into the store fixture.
		for i := range f.store.repos {
			if f.store.repos[i].FullName == result.Repository {
				f.store.repos[i] = f.store.saves[len(f.store.saves)-1]
			}
		}
	}

	assert.Equal(t, []string{"acme/b", "acme/c", "acme/a", "acme/b"}, order)
}

func TestRun_EmptyCollection(t *testing.T) {
	f := newFixture()

	result, err := f.job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, application.UpdateResult{}, result)
	assert.Empty(t, f.log.calls, "no cache or store writes on empty collection")
	assert.Empty(t, f.recorder.refreshes)
	assert.Equal(t, 1, f.locker.lock.releases)
}

func TestRun_LockHeld(t *testing.T) {
	f := newFixture(repoAt("acme/widgets", 0))
	f.locker.held = true

	result, err := f.job.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.Repository)
	assert.Empty(t, f.log.calls, "no cache or store writes when the lock is held")
	assert.Equal(t, 1, f.recorder.skipped)
	assert.Nil(t, f.locker.lock, "nothing to release when the lock was never acquired")
}

func TestRun_LockError(t *testing.T) {
	f := newFixture(repoAt("acme/widgets", 0))
	f.locker.acquireErr = errors.New("permission denied")

	_, err := f.job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Empty(t, f.log.calls)
}

func TestRun_ProviderFailure(t *testing.T) {
	original := repoAt("acme/widgets", 100)
	f := newFixture(original)
	f.provider.err = errors.New("github unavailable")

	result, err := f.job.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrProviderFailure)
	assert.Contains(t, err.Error(), "github unavailable")
	assert.Equal(t, "acme/widgets", result.Repository)

	assert.Empty(t, f.store.saves, "store must not be rewritten after a provider failure")
	assert.Equal(t, []string{"clear:acme/widgets", "provide:acme/widgets"}, f.log.calls)
	assert.Equal(t, int64(100), f.store.repos[0].LastUpdateTimestamp)

	require.Len(t, f.recorder.refreshes, 1)
	assert.False(t, f.recorder.refreshes[0].Success)
	assert.Equal(t, 1, f.locker.lock.releases, "lock must be released on failure")
}

func TestRun_MalformedIdentifier(t *testing.T) {
	f := newFixture(repoAt("acme/widgets/extra", 0), repoAt("acme/widgets", 100))

	_, err := f.job.Run(context.Background())

	require.ErrorIs(t, err, model.ErrMalformedIdentifier)
	assert.Empty(t, f.log.calls, "no cache or store mutation for a malformed name")
	assert.Empty(t, f.provider.calls)
	assert.Equal(t, 1, f.locker.lock.releases)
}

func TestRun_ListError(t *testing.T) {
	f := newFixture()
	f.store.listErr = errors.New("disk I/O error")

	_, err := f.job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list repositories")
	assert.Equal(t, 1, f.locker.lock.releases)
}

func TestRun_SaveError(t *testing.T) {
	f := newFixture(repoAt("acme/widgets", 0))
	f.store.saveErr = errors.New("database is locked")

	_, err := f.job.Run(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrProviderFailure)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, 1, f.locker.lock.releases)
}

func TestRun_ReleaseErrorReturnedOnSuccess(t *testing.T) {
	f := newFixture()
	releaseErr := errors.New("unlock failed")
	locker := &releaseFailingLocker{err: releaseErr}
	job := application.NewUpdateStatisticsJob(locker, f.store, f.cache, f.provider, nil, f.clock, nil)

	_, err := job.Run(context.Background())

	assert.ErrorIs(t, err, releaseErr)
	assert.Equal(t, 1, locker.lock.releases)
}

func TestRun_ReleaseErrorDoesNotMaskRefreshError(t *testing.T) {
	f := newFixture(repoAt("acme/widgets", 0))
	f.provider.err = errors.New("github unavailable")
	locker := &releaseFailingLocker{err: errors.New("unlock failed")}
	job := application.NewUpdateStatisticsJob(locker, f.store, f.cache, f.provider, nil, f.clock, nil)

	_, err := job.Run(context.Background())

	assert.ErrorIs(t, err, application.ErrProviderFailure)
	assert.Equal(t, 1, locker.lock.releases)
}

// releaseFailingLocker hands out locks whose Release fails.
type releaseFailingLocker struct {
	err  error
	lock *mockLock
}

func (m *releaseFailingLocker) TryAcquire(_ string) (driven.ProcessLock, bool, error) {
	m.lock = &mockLock{releaseErr: m.err}
	return m.lock, true, nil
}

func TestRefresh_SuccessAdvancesTimestamp(t *testing.T) {
	f := newFixture()
	repo := repoAt("acme/widgets", epoch.Unix())

	err := f.job.Refresh(context.Background(), &repo)

	require.NoError(t, err)
	assert.Greater(t, repo.LastUpdateTimestamp, epoch.Unix(), "timestamp strictly increases")
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, repo, f.store.saves[0])

	require.NotEmpty(t, f.cache.sets)
	assert.Nil(t, f.cache.sets[0].Stats, "cache is cleared before the provider call")
	assert.NotNil(t, f.cache.entries["acme/widgets"], "provider repopulates the cache")
}

func TestRefresh_MalformedIdentifier(t *testing.T) {
	for _, name := range []string{"widgets", "acme/widgets/extra"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			repo := repoAt(name, 0)

			err := f.job.Refresh(context.Background(), &repo)

			require.ErrorIs(t, err, model.ErrMalformedIdentifier)
			assert.Empty(t, f.log.calls)
		})
	}
}
