package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"FactorPipe/internal/domain/models"
	"FactorPipe/pkg/util"
)

type barKey struct {
	symbol  string
	session int64
}

// MemoryPricingStore keeps bars in memory. It backs the CLI, the memory
// backend and tests.
type MemoryPricingStore struct {
	mu       sync.RWMutex
	bars     map[barKey]models.Bar
	sessions []time.Time
}

// NewMemoryPricingStore creates an empty in-memory store.
func NewMemoryPricingStore() *MemoryPricingStore {
	return &MemoryPricingStore{bars: make(map[barKey]models.Bar)}
}

// StoreBars upserts bars by (symbol, session). Sessions are normalised to UTC midnight.
func (s *MemoryPricingStore) StoreBars(_ context.Context, bars []models.Bar) error {
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		b.Session = util.SessionOf(b.Session)
		s.bars[barKey{symbol: b.Symbol, session: b.Session.Unix()}] = b
	}
	s.rebuildSessions()
	return nil
}

func (s *MemoryPricingStore) rebuildSessions() {
	seen := make(map[int64]struct{}, len(s.sessions))
	out := s.sessions[:0]
	for k := range s.bars {
		if _, ok := seen[k.session]; ok {
			continue
		}
		seen[k.session] = struct{}{}
		out = append(out, time.Unix(k.session, 0).UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	s.sessions = out
}

func (s *MemoryPricingStore) Sessions(_ context.Context, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo := sort.Search(len(s.sessions), func(i int) bool { return !s.sessions[i].Before(from) })
	hi := sort.Search(len(s.sessions), func(i int) bool { return s.sessions[i].After(to) })
	if lo >= hi {
		return nil, nil
	}
	return append([]time.Time(nil), s.sessions[lo:hi]...), nil
}

func (s *MemoryPricingStore) SessionsBefore(_ context.Context, before time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hi := sort.Search(len(s.sessions), func(i int) bool { return !s.sessions[i].Before(before) })
	lo := max(hi-n, 0)
	return append([]time.Time(nil), s.sessions[lo:hi]...), nil
}

// GetBars returns bars in [from, to] ordered by session then symbol.
func (s *MemoryPricingStore) GetBars(_ context.Context, from, to time.Time) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bar
	for _, b := range s.bars {
		if b.Session.Before(from) || b.Session.After(to) {
			continue
		}
		out = append(out, b)
	}
	sortBars(out)
	return out, nil
}

// Len is the number of stored bars.
func (s *MemoryPricingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

func sortBars(bars []models.Bar) {
	sort.Slice(bars, func(i, j int) bool {
		if !bars[i].Session.Equal(bars[j].Session) {
			return bars[i].Session.Before(bars[j].Session)
		}
		return bars[i].Symbol < bars[j].Symbol
	})
}
