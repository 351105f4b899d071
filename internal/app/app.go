package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"sheetdrip/internal/config"
	"sheetdrip/internal/domain"
	"sheetdrip/internal/eventlog"
	"sheetdrip/internal/metrics"
	"sheetdrip/internal/queue"
	"sheetdrip/internal/scheduler"
)

var (
	ErrNoPending      = errors.New("no pending URLs in queue")
	ErrMissingWebhook = errors.New("webhook URL is not configured")
	ErrInvalidConfig  = errors.New("invalid automator config")
)

type Options struct {
	Clock         scheduler.Clock
	Metrics       *metrics.Metrics
	EventCapacity int
	AutoStartCron string
}

// App is the host of the scheduler: it owns the queue, the automator config
// and their persistence, and exposes the operator controls.
type App struct {
	repo      queue.Repository
	store     *queue.Store
	events    *eventlog.Log
	metrics   *metrics.Metrics
	sched     *scheduler.Scheduler
	autostart *scheduler.AutoStart

	cfgMu sync.RWMutex
	cfg   domain.AutomatorConfig

	// ctl serializes operator controls against each other.
	ctl sync.Mutex
}

// New loads the persisted snapshots (seeding the config from seed on first
// boot) and builds the scheduler around them.
func New(ctx context.Context, repo queue.Repository, submitter scheduler.Submitter, seed domain.AutomatorConfig, opts Options) (*App, error) {
	cfg, found, err := repo.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !found {
		cfg = seed
		if err := repo.SaveConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("save config: %w", err)
		}
	}

	items, err := repo.LoadQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	a := &App{
		repo:    repo,
		store:   queue.NewStore(),
		events:  eventlog.New(opts.EventCapacity),
		metrics: opts.Metrics,
		cfg:     cfg,
	}
	if opts.Clock != nil {
		a.events.WithClock(opts.Clock.Now)
	}
	a.store.Load(items)
	if n := a.store.RecoverInFlight(); n > 0 {
		log.Info().Int("recovered", n).Msg("recovered items left in processing")
		a.persistQueue()
	}
	a.metrics.SetQueue(a.stats())

	a.sched = scheduler.New(a.store, a.Config, submitter, scheduler.Options{
		Clock:    opts.Clock,
		Events:   a.events,
		Metrics:  opts.Metrics,
		OnChange: a.persistQueue,
	})

	if opts.AutoStartCron != "" {
		a.autostart, err = scheduler.NewAutoStart(opts.AutoStartCron, a.Start)
		if err != nil {
			return nil, fmt.Errorf("autostart: %w", err)
		}
	}
	return a, nil
}

// Run starts background services. It does not start the scheduler itself.
func (a *App) Run() {
	if a.autostart != nil {
		a.autostart.Start()
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.autostart != nil {
		a.autostart.Stop()
	}
	return a.sched.Shutdown(ctx)
}

// Config returns the live automator config.
func (a *App) Config() domain.AutomatorConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	c := a.cfg
	c.GuestbookURLs = append([]string(nil), a.cfg.GuestbookURLs...)
	return c
}

// Start refuses to run without pending work or a webhook URL, then hands
// over to the scheduler.
func (a *App) Start() error {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	if a.store.PendingCount() == 0 {
		// Resuming over an in-flight batch or frozen wait is still allowed.
		if st := a.sched.Status(); st.Phase != scheduler.PhaseExecuting && !st.HasRemaining {
			return ErrNoPending
		}
	}
	if strings.TrimSpace(a.Config().WebhookURL) == "" {
		return ErrMissingWebhook
	}
	a.sched.Start()
	return nil
}

func (a *App) Pause() {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	a.sched.Pause()
}

// Reset stops the scheduler and wipes the queue and event log. The automator
// config is kept.
func (a *App) Reset() {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	a.sched.Reset()
	a.store.Clear()
	a.events.Reset()
	a.persistQueue()
	a.events.Add("Storage wiped.")
}

// AddURLs appends new URLs to the queue and returns how many were added.
func (a *App) AddURLs(urls []string) int {
	n := a.store.Append(urls)
	if n > 0 {
		a.persistQueue()
	}
	a.events.Addf("Imported %d new URLs.", n)
	return n
}

// RequeueFailed returns failed items to pending for a manual retry.
func (a *App) RequeueFailed() int {
	n := a.store.RequeueFailed()
	if n > 0 {
		a.persistQueue()
		a.events.Addf("Requeued %d failed URLs.", n)
	}
	return n
}

// UpdateConfig applies a partial update. It takes effect on the next batch
// selection or timer arm; an armed timer is not rescheduled.
func (a *App) UpdateConfig(ctx context.Context, patch domain.ConfigPatch) (domain.AutomatorConfig, error) {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	next := patch.Apply(a.cfg)
	if err := config.ValidateAutomator(next); err != nil {
		return a.cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := a.repo.SaveConfig(ctx, next); err != nil {
		return a.cfg, fmt.Errorf("save config: %w", err)
	}
	a.cfg = next
	return next, nil
}

func (a *App) Queue() []domain.QueueItem { return a.store.Snapshot() }

func (a *App) Logs() []string { return a.events.Entries() }

type StatusView struct {
	Stats            domain.Stats    `json:"stats"`
	Phase            scheduler.Phase `json:"phase"`
	Running          bool            `json:"running"`
	NextBatchAt      *time.Time      `json:"nextBatchAt,omitempty"`
	RemainingSeconds *int64          `json:"remainingSeconds,omitempty"`
	NextAutoStart    *time.Time      `json:"nextAutoStart,omitempty"`
}

func (a *App) Status() StatusView {
	st := a.sched.Status()
	v := StatusView{
		Stats:       a.stats(),
		Phase:       st.Phase,
		Running:     st.Running,
		NextBatchAt: st.NextBatchAt,
	}
	if st.HasRemaining {
		secs := int64((st.Remaining + time.Second - 1) / time.Second)
		v.RemainingSeconds = &secs
	}
	if a.autostart != nil {
		next := a.autostart.Next(time.Now())
		v.NextAutoStart = &next
	}
	return v
}

func (a *App) stats() domain.Stats {
	return a.store.Stats(len(a.Config().GuestbookURLs))
}

func (a *App) persistQueue() {
	if err := a.repo.SaveQueue(context.Background(), a.store.Snapshot()); err != nil {
		log.Error().Err(err).Msg("failed to persist queue snapshot")
	}
	a.metrics.SetQueue(a.stats())
}
