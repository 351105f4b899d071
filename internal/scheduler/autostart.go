package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// AutoStart fires a start function on a cron schedule, e.g. to resume the
// drip every weekday morning.
type AutoStart struct {
	expr     string
	cron     *cron.Cron
	schedule cron.Schedule
	start    func() error
}

func NewAutoStart(expr string, start func() error) (*AutoStart, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, err
	}
	a := &AutoStart{expr: expr, cron: cron.New(), schedule: sched, start: start}
	a.cron.Schedule(sched, cron.FuncJob(a.fire))
	return a, nil
}

func (a *AutoStart) Start() {
	log.Info().Str("cron_expr", a.expr).Time("next_run", a.schedule.Next(time.Now())).Msg("auto-start service started")
	a.cron.Start()
}

func (a *AutoStart) Stop() {
	<-a.cron.Stop().Done()
}

// Next returns the next time the schedule fires after from.
func (a *AutoStart) Next(from time.Time) time.Time {
	return a.schedule.Next(from)
}

func (a *AutoStart) fire() {
	if err := a.start(); err != nil {
		log.Warn().Err(err).Str("cron_expr", a.expr).Msg("auto-start skipped")
		return
	}
	log.Info().Str("cron_expr", a.expr).Msg("auto-start triggered")
}

// ValidateCronExpression validates a cron expression
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// NextRunTime calculates the next run time for a cron expression
func NextRunTime(expr string, from time.Time) (time.Time, error) {
	cronSchedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return cronSchedule.Next(from), nil
}
