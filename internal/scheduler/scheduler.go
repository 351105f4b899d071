package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"sheetdrip/internal/domain"
	"sheetdrip/internal/eventlog"
	"sheetdrip/internal/metrics"
	"sheetdrip/internal/queue"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseWaiting   Phase = "waiting"
	PhaseExecuting Phase = "executing"
	PhasePaused    Phase = "paused"
)

// FailureReason is recorded on every item of a batch whose delivery failed.
const FailureReason = "Connection Error"

// Submitter is the delivery interface. A nil error means the call succeeded
// at the transport level; nothing more is assumed about the endpoint.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, p domain.Payload) error
}

// ConfigSource returns the live automator config. It is called at invocation
// time, never captured ahead of a deferred run.
type ConfigSource func() domain.AutomatorConfig

type Options struct {
	Clock   Clock
	Events  *eventlog.Log
	Metrics *metrics.Metrics
	// OnChange is called after every queue mutation made by the scheduler,
	// with the scheduler lock held. It must not call back into the scheduler.
	OnChange func()
}

type Status struct {
	Phase       Phase      `json:"phase"`
	Running     bool       `json:"running"`
	NextBatchAt *time.Time `json:"nextBatchAt,omitempty"`
	// Remaining is only meaningful when HasRemaining is set.
	Remaining    time.Duration `json:"-"`
	HasRemaining bool          `json:"-"`
}

// Scheduler drips pending queue items to the delivery interface one batch at
// a time. All state lives behind mu; the only goroutines it starts are timer
// callbacks and the single outstanding delivery.
type Scheduler struct {
	store     *queue.Store
	config    ConfigSource
	submitter Submitter
	clock     Clock
	events    *eventlog.Log
	metrics   *metrics.Metrics
	onChange  func()

	mu        sync.Mutex
	running   bool
	executing bool
	deadline  *time.Time
	frozen    *time.Duration
	timer     Timer
	timerGen  uint64
	epoch     uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(store *queue.Store, config ConfigSource, submitter Submitter, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.Events == nil {
		opts.Events = eventlog.New(eventlog.DefaultCapacity)
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	return &Scheduler{
		store:     store,
		config:    config,
		submitter: submitter,
		clock:     opts.Clock,
		events:    opts.Events,
		metrics:   opts.Metrics,
		onChange:  opts.OnChange,
	}
}

// Start sets the run flag. A frozen countdown is replayed unchanged, a future
// deadline is honoured, otherwise a batch runs immediately. Start on a running
// scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.metrics.SetRunning(true)

	if s.executing {
		s.events.Add("Resumed while a batch is in flight.")
		return
	}

	now := s.clock.Now()
	if s.frozen != nil && *s.frozen > 0 {
		rem := *s.frozen
		dl := now.Add(rem)
		s.deadline = &dl
		s.arm(rem)
		s.events.Addf("Resuming: starting from frozen time (%ds remaining).", ceilSeconds(rem))
		return
	}
	s.frozen = nil

	if s.deadline != nil && s.deadline.After(now) {
		s.arm(s.deadline.Sub(now))
		return
	}
	s.executeLocked()
}

// Pause clears the run flag and freezes whatever is left of the countdown. A
// delivery already in flight is not aborted.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.metrics.SetRunning(false)

	if s.timer == nil {
		s.events.Add("Paused.")
		return
	}
	s.cancelTimer()
	if s.deadline != nil {
		rem := s.deadline.Sub(s.clock.Now())
		if rem < 0 {
			rem = 0
		}
		s.frozen = &rem
		s.events.Addf("Paused: %ds frozen.", ceilSeconds(rem))
	}
}

// Reset cancels any armed timer and in-flight delivery and returns to Idle.
// The result of a cancelled delivery is discarded.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimer()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.epoch++
	s.executing = false
	s.running = false
	s.deadline = nil
	s.frozen = nil
	s.metrics.SetRunning(false)
}

// Shutdown stops timers and waits for an outstanding delivery to finish or
// for ctx to expire, whichever comes first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancelTimer()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Phase: s.phaseLocked(), Running: s.running}
	if s.deadline != nil {
		dl := *s.deadline
		st.NextBatchAt = &dl
	}
	switch {
	case !s.running && s.frozen != nil:
		st.Remaining, st.HasRemaining = *s.frozen, true
	case s.running && s.timer != nil && s.deadline != nil:
		rem := s.deadline.Sub(s.clock.Now())
		if rem < 0 {
			rem = 0
		}
		st.Remaining, st.HasRemaining = rem, true
	}
	return st
}

func (s *Scheduler) phaseLocked() Phase {
	switch {
	case s.executing:
		return PhaseExecuting
	case s.running && s.timer != nil:
		return PhaseWaiting
	case !s.running && s.frozen != nil:
		return PhasePaused
	default:
		return PhaseIdle
	}
}

// executeLocked is executeBatch. The caller holds mu.
func (s *Scheduler) executeLocked() {
	if s.executing {
		return
	}
	s.executing = true

	cfg := s.config()
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		s.events.Add("Stop: Webhook URL is missing.")
		log.Warn().Msg("webhook url missing, halting")
		s.haltLocked()
		s.executing = false
		return
	}

	batch := s.store.SelectBatch(cfg.BatchSize)
	if len(batch) == 0 {
		s.events.Add("All pending URLs finished. Shutting down.")
		s.haltLocked()
		s.executing = false
		return
	}

	ids := make([]string, len(batch))
	urls := make([]string, len(batch))
	for i, it := range batch {
		ids[i] = it.ID
		urls[i] = it.URL
	}
	sheet := cfg.TargetSheet()
	aux := cfg.HasAuxiliaryTargets()

	s.events.Addf("Starting batch: sending %d URLs to [%s]", len(batch), sheet)
	s.store.MarkInFlight(ids, aux)
	s.onChange()

	payload := domain.Payload{
		URLs:          urls,
		SheetName:     sheet,
		GuestbookURLs: append([]string(nil), cfg.GuestbookURLs...),
		CustomName:    cfg.CustomName,
		CustomEmail:   cfg.CustomEmail,
		Timestamp:     s.clock.Now().UTC(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.deliver(ctx, cancel, s.epoch, cfg.WebhookURL, ids, len(cfg.GuestbookURLs), payload)
}

func (s *Scheduler) deliver(ctx context.Context, cancel context.CancelFunc, epoch uint64, endpoint string, ids []string, auxCount int, payload domain.Payload) {
	defer s.wg.Done()
	defer cancel()

	started := time.Now()
	err := s.submitter.Submit(ctx, endpoint, payload)
	elapsed := time.Since(started).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		log.Debug().Int("batch_size", len(ids)).Msg("discarding result of reset batch")
		return
	}
	s.executing = false
	s.cancel = nil

	if err != nil {
		s.metrics.ObserveBatch("failure", len(ids), elapsed)
		log.Error().Err(err).Int("batch_size", len(ids)).Str("sheet", payload.SheetName).Msg("batch delivery failed")
		s.store.MarkFailed(ids, FailureReason, auxCount > 0)
		s.onChange()
		s.events.Add("Critical: Network connection failed.")
		s.haltLocked()
		return
	}

	s.metrics.ObserveBatch("success", len(ids), elapsed)
	now := s.clock.Now()
	s.store.MarkCompleted(ids, now, auxCount)
	s.onChange()
	s.events.Addf("Batch successful. Sent %d items.", len(ids))

	remaining := s.store.PendingCount()
	if remaining == 0 {
		s.events.Add("Queue finished.")
		s.haltLocked()
		return
	}

	// The interval is read now: it is the value current when the timer is armed.
	cfg := s.config()
	wait := cfg.Interval()
	dl := now.Add(wait)
	s.deadline = &dl
	s.frozen = nil

	if !s.running {
		// Paused while the batch was in flight; the next wait starts frozen.
		s.frozen = &wait
		s.events.Addf("Paused: %ds frozen.", ceilSeconds(wait))
		return
	}
	s.arm(wait)
	s.events.Addf("Waiting %s for next batch...", formatMinutes(cfg.IntervalMinutes))
	log.Info().Int("remaining", remaining).Time("next_batch", dl).Msg("next batch scheduled")
}

func (s *Scheduler) onTimer(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.timerGen || !s.running {
		return
	}
	s.timer = nil
	s.frozen = nil
	s.executeLocked()
}

// arm replaces any armed timer. The generation check in onTimer drops a
// callback whose timer was stopped after it had already fired.
func (s *Scheduler) arm(d time.Duration) {
	s.cancelTimer()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(d, func() { s.onTimer(gen) })
}

func (s *Scheduler) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Scheduler) haltLocked() {
	s.cancelTimer()
	s.running = false
	s.deadline = nil
	s.frozen = nil
	s.metrics.SetRunning(false)
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

func formatMinutes(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64) + "m"
}
