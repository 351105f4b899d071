// Package eventlog keeps the bounded, human-readable activity log shown to
// operators. Entries are newest first.
package eventlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultCapacity = 50

type Log struct {
	mu       sync.RWMutex
	entries  []string
	capacity int
	now      func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, now: time.Now}
}

// WithClock overrides the time source used for entry prefixes.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

func (l *Log) Add(msg string) {
	entry := fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), msg)
	log.Info().Str("event", msg).Msg("automator")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]string{entry}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

func (l *Log) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

func (l *Log) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
