package queue

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"sheetdrip/internal/domain"
)

var ErrNotFound = errors.New("item not found")

// Store is the ordered, in-memory queue of work items. All mutations happen
// under a single lock so a batch transition is never observed half-applied.
type Store struct {
	mu    sync.RWMutex
	items []domain.QueueItem
	index map[string]int // id -> position
	urls  map[string]struct{}
}

func NewStore() *Store {
	return &Store{index: map[string]int{}, urls: map[string]struct{}{}}
}

// Load replaces the store contents with a snapshot.
func (s *Store) Load(items []domain.QueueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]domain.QueueItem, 0, len(items))
	s.index = make(map[string]int, len(items))
	s.urls = make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := s.urls[it.URL]; dup {
			continue
		}
		s.index[it.ID] = len(s.items)
		s.urls[it.URL] = struct{}{}
		s.items = append(s.items, it)
	}
}

// Append adds the trimmed, not-yet-queued URLs as pending items in the given
// order and returns how many were added.
func (s *Store) Append(urls []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, ok := s.urls[u]; ok {
			continue
		}
		it := domain.QueueItem{ID: "itm_" + uuid.NewString(), URL: u, Status: domain.StatusPending}
		s.index[it.ID] = len(s.items)
		s.urls[u] = struct{}{}
		s.items = append(s.items, it)
		added++
	}
	return added
}

// SelectBatch returns up to size pending items in insertion order.
func (s *Store) SelectBatch(size int) []domain.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if size <= 0 {
		return nil
	}
	var batch []domain.QueueItem
	for _, it := range s.items {
		if it.Status != domain.StatusPending {
			continue
		}
		batch = append(batch, it)
		if len(batch) == size {
			break
		}
	}
	return batch
}

// MarkInFlight moves the given items to processing. When aux is set the
// guestbook status mirrors it.
func (s *Store) MarkInFlight(ids []string, aux bool) {
	s.update(ids, func(it *domain.QueueItem) {
		it.Status = domain.StatusProcessing
		it.Error = ""
		if aux {
			it.GuestbookStatus = domain.StatusProcessing
		}
	})
}

// MarkCompleted stamps the items completed at ts. auxCount is the number of
// guestbook targets that were fanned out alongside the batch; zero skips
// auxiliary tracking.
func (s *Store) MarkCompleted(ids []string, ts time.Time, auxCount int) {
	s.update(ids, func(it *domain.QueueItem) {
		t := ts
		it.Status = domain.StatusCompleted
		it.SubmittedAt = &t
		it.Error = ""
		if auxCount > 0 {
			it.GuestbookStatus = domain.StatusCompleted
			it.GuestbookCount = auxCount
		}
	})
}

func (s *Store) MarkFailed(ids []string, reason string, aux bool) {
	s.update(ids, func(it *domain.QueueItem) {
		it.Status = domain.StatusFailed
		it.Error = reason
		if aux {
			it.GuestbookStatus = domain.StatusFailed
		}
	})
}

func (s *Store) update(ids []string, fn func(*domain.QueueItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if i, ok := s.index[id]; ok {
			fn(&s.items[i])
		}
	}
}

// RecoverInFlight returns items stuck in processing (left behind by a crash
// mid-delivery) to pending.
func (s *Store) RecoverInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.items {
		it := &s.items[i]
		if it.Status != domain.StatusProcessing {
			continue
		}
		it.Status = domain.StatusPending
		if it.GuestbookStatus == domain.StatusProcessing {
			it.GuestbookStatus = domain.StatusPending
		}
		n++
	}
	return n
}

// RequeueFailed moves every failed item back to pending.
func (s *Store) RequeueFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.items {
		it := &s.items[i]
		if it.Status != domain.StatusFailed {
			continue
		}
		it.Status = domain.StatusPending
		it.Error = ""
		if it.GuestbookStatus == domain.StatusFailed {
			it.GuestbookStatus = domain.StatusPending
		}
		n++
	}
	return n
}

func (s *Store) Get(id string) (domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.QueueItem{}, ErrNotFound
	}
	return s.items[i], nil
}

// Snapshot returns a copy of every item in queue order.
func (s *Store) Snapshot() []domain.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QueueItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		if it.Status == domain.StatusPending {
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = map[string]int{}
	s.urls = map[string]struct{}{}
}

// Stats aggregates counts per status. auxTargets is the configured number of
// guestbook targets.
func (s *Store) Stats(auxTargets int) domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.Stats{Total: len(s.items), TotalGuestbookTargets: auxTargets}
	for _, it := range s.items {
		switch it.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusProcessing:
			st.Processing++
		case domain.StatusCompleted:
			st.Completed++
		case domain.StatusFailed:
			st.Failed++
		}
		st.TotalGuestbookSubmissions += it.GuestbookCount
	}
	if st.Total > 0 {
		st.Progress = float64(st.Completed) / float64(st.Total) * 100
	}
	return st
}

// ParseURLList splits pasted text into candidate URLs: one per line, trimmed,
// keeping lines that look like a URL or a host name.
func ParseURLList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		u := strings.TrimSpace(line)
		if u == "" {
			continue
		}
		if strings.HasPrefix(u, "http") || strings.Contains(u, ".") {
			out = append(out, u)
		}
	}
	return out
}
