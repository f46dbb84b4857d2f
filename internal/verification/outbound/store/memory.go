package store

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

// sweepEvery bounds how often Put scans the whole map for stale codes.
const sweepEvery = time.Minute

// Memory is a process-local CodeStore. Codes past expiry plus retention are
// dropped when read and by a periodic sweep piggybacked on Put.
type Memory struct {
	clock     clock.Clocker
	retention time.Duration

	mu        sync.RWMutex
	codes     map[string]entity.PendingCode
	nextSweep time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory(clk clock.Clocker, retention time.Duration) *Memory {
	if clk == nil {
		clk = clock.New()
	}

	return &Memory{
		clock:     clk,
		retention: retention,
		codes:     make(map[string]entity.PendingCode),
	}
}

func (m *Memory) Put(_ context.Context, code entity.PendingCode) error {
	now := m.clock.Now()

	m.mu.Lock()
	m.codes[code.Subject] = code
	if !now.Before(m.nextSweep) {
		m.sweepLocked(now)
	}
	m.mu.Unlock()

	return nil
}

func (m *Memory) Get(_ context.Context, subject string) (*entity.PendingCode, error) {
	m.mu.RLock()
	code, ok := m.codes[subject]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if m.stale(code, m.clock.Now()) {
		m.mu.Lock()
		if cur, ok := m.codes[subject]; ok && cur.Token == code.Token {
			delete(m.codes, subject)
		}
		m.mu.Unlock()

		return nil, ErrNotFound
	}

	return &code, nil
}

func (m *Memory) Delete(_ context.Context, subject string) error {
	m.mu.Lock()
	delete(m.codes, subject)
	m.mu.Unlock()

	return nil
}

// Len reports how many codes are held, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.codes)
}

// Sweep drops every code past expiry plus retention and reports how many
// were removed.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sweepLocked(now)
}

func (m *Memory) sweepLocked(now time.Time) int {
	m.nextSweep = now.Add(sweepEvery)

	removed := 0
	for subject, code := range m.codes {
		if m.stale(code, now) {
			delete(m.codes, subject)
			removed++
		}
	}
	return removed
}

func (m *Memory) stale(code entity.PendingCode, now time.Time) bool {
	return now.After(code.ExpiresAt.Add(m.retention))
}
