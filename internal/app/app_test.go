package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sheetdrip/internal/domain"
	"sheetdrip/internal/metrics"
	"sheetdrip/internal/queue"
	"sheetdrip/internal/scheduler"
)

type funcSubmitter func(ctx context.Context, endpoint string, p domain.Payload) error

func (f funcSubmitter) Submit(ctx context.Context, endpoint string, p domain.Payload) error {
	return f(ctx, endpoint, p)
}

func okSubmitter() funcSubmitter {
	return func(context.Context, string, domain.Payload) error { return nil }
}

func openRepo(t *testing.T) (queue.Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheetdrip.db")
	repo, err := queue.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func newApp(t *testing.T, repo queue.Repository, sub scheduler.Submitter, seed domain.AutomatorConfig) *App {
	t.Helper()
	a, err := New(context.Background(), repo, sub, seed, Options{Metrics: metrics.New()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func seedConfig() domain.AutomatorConfig {
	cfg := domain.DefaultAutomatorConfig()
	cfg.WebhookURL = "https://script.example.com/exec"
	cfg.BatchSize = 2
	return cfg
}

func waitPhase(t *testing.T, a *App, want scheduler.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return a.Status().Phase == want }, 2*time.Second, 2*time.Millisecond)
}

func TestNewSeedsConfigAndRecoversProcessing(t *testing.T) {
	repo, _ := openRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveQueue(ctx, []domain.QueueItem{
		{ID: "itm_1", URL: "https://1.example.com", Status: domain.StatusProcessing},
		{ID: "itm_2", URL: "https://2.example.com", Status: domain.StatusCompleted},
	}))

	a := newApp(t, repo, okSubmitter(), seedConfig())

	assert.Equal(t, seedConfig(), a.Config())
	stored, found, err := repo.LoadConfig(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, seedConfig(), stored)

	st := a.Status().Stats
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 0, st.Processing)

	items, err := repo.LoadQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, items[0].Status, "recovery is persisted")
}

func TestPersistedConfigWinsOverSeed(t *testing.T) {
	repo, _ := openRepo(t)
	saved := seedConfig()
	saved.SheetName = "Leads"
	require.NoError(t, repo.SaveConfig(context.Background(), saved))

	a := newApp(t, repo, okSubmitter(), seedConfig())
	assert.Equal(t, "Leads", a.Config().SheetName)
}

func TestStartPreflight(t *testing.T) {
	repo, _ := openRepo(t)
	a := newApp(t, repo, okSubmitter(), domain.DefaultAutomatorConfig())

	assert.ErrorIs(t, a.Start(), ErrNoPending)

	a.AddURLs([]string{"https://1.example.com"})
	assert.ErrorIs(t, a.Start(), ErrMissingWebhook)
	assert.Equal(t, scheduler.PhaseIdle, a.Status().Phase)
}

func TestRunPersistsProgress(t *testing.T) {
	repo, _ := openRepo(t)
	var calls int32
	sub := funcSubmitter(func(_ context.Context, endpoint string, p domain.Payload) error {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "https://script.example.com/exec", endpoint)
		return nil
	})
	a := newApp(t, repo, sub, seedConfig())

	assert.Equal(t, 3, a.AddURLs([]string{"https://1.example.com", "https://2.example.com", "https://3.example.com"}))
	require.NoError(t, a.Start())
	waitPhase(t, a, scheduler.PhaseWaiting)

	st := a.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.RemainingSeconds)
	assert.InDelta(t, 60, *st.RemainingSeconds, 1)
	assert.Equal(t, 2, st.Stats.Completed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	items, err := repo.LoadQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, domain.StatusCompleted, items[0].Status)
	assert.Equal(t, domain.StatusCompleted, items[1].Status)
	assert.Equal(t, domain.StatusPending, items[2].Status)

	a.Pause()
	st = a.Status()
	assert.Equal(t, scheduler.PhasePaused, st.Phase)
	require.NotNil(t, st.RemainingSeconds)
}

func TestFailureThenRequeue(t *testing.T) {
	repo, _ := openRepo(t)
	a := newApp(t, repo, funcSubmitter(func(context.Context, string, domain.Payload) error {
		return errors.New("dial tcp: connection refused")
	}), seedConfig())

	a.AddURLs([]string{"https://1.example.com", "https://2.example.com", "https://3.example.com"})
	require.NoError(t, a.Start())
	require.Eventually(t, func() bool { return a.Status().Stats.Failed == 2 }, 2*time.Second, 2*time.Millisecond)
	waitPhase(t, a, scheduler.PhaseIdle)
	assert.False(t, a.Status().Running)

	assert.Equal(t, 2, a.RequeueFailed())
	assert.Equal(t, 3, a.Status().Stats.Pending)
	assert.Equal(t, 0, a.RequeueFailed())
}

func TestResetWipesQueueAndLog(t *testing.T) {
	repo, _ := openRepo(t)
	a := newApp(t, repo, okSubmitter(), seedConfig())

	a.AddURLs([]string{"https://1.example.com", "https://2.example.com", "https://3.example.com"})
	require.NoError(t, a.Start())
	waitPhase(t, a, scheduler.PhaseWaiting)

	a.Reset()

	st := a.Status()
	assert.Equal(t, scheduler.PhaseIdle, st.Phase)
	assert.False(t, st.Running)
	assert.Nil(t, st.RemainingSeconds)
	assert.Empty(t, a.Queue())
	logs := a.Logs()
	require.Len(t, logs, 1)
	assert.True(t, strings.HasSuffix(logs[0], "Storage wiped."))

	items, err := repo.LoadQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, seedConfig(), a.Config(), "config survives reset")
}

func TestUpdateConfig(t *testing.T) {
	repo, _ := openRepo(t)
	a := newApp(t, repo, okSubmitter(), domain.DefaultAutomatorConfig())
	ctx := context.Background()

	hook := " https://script.example.com/exec "
	size := 10
	cfg, err := a.UpdateConfig(ctx, domain.ConfigPatch{WebhookURL: &hook, BatchSize: &size})
	require.NoError(t, err)
	assert.Equal(t, "https://script.example.com/exec", cfg.WebhookURL)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 1.0, cfg.IntervalMinutes, "untouched fields kept")

	zero := 0.0
	_, err = a.UpdateConfig(ctx, domain.ConfigPatch{IntervalMinutes: &zero})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1.0, a.Config().IntervalMinutes)

	stored, _, err := repo.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.BatchSize)
}

func TestAddURLsLogsImport(t *testing.T) {
	repo, _ := openRepo(t)
	a := newApp(t, repo, okSubmitter(), seedConfig())

	assert.Equal(t, 2, a.AddURLs([]string{"https://1.example.com", " https://1.example.com", "https://2.example.com"}))
	assert.Equal(t, 0, a.AddURLs([]string{"https://2.example.com"}))
	logs := a.Logs()
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0], "Imported 0 new URLs.")
	assert.Contains(t, logs[1], "Imported 2 new URLs.")
}
