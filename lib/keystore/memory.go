package keystore

import (
	"sync"

	"github.com/openxch/coinhandler/lib/coin"
)

// Memory is an in-process key store. It is the default for tests and single-process deployments; pairs do not
// survive a restart.
type Memory struct {
	mu    sync.RWMutex
	pairs []coin.KeyPair
}

// NewMemory returns a Memory store pre-loaded with the given pairs. Pairs without an ID are assigned sequential
// IDs starting at 1.
func NewMemory(pairs ...coin.KeyPair) *Memory {
	m := &Memory{}
	for _, kp := range pairs {
		m.Set(kp) //nolint:errcheck // Memory.Set cannot fail
	}

	return m
}

// Get returns the first matching key pair or (nil, nil).
func (m *Memory) Get(f Filter) (*coin.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, kp := range m.pairs {
		if f.Matches(kp) {
			kp := kp

			return &kp, nil
		}
	}

	return nil, nil
}

// Find returns all matching key pairs.
func (m *Memory) Find(f Filter) ([]coin.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []coin.KeyPair

	for _, kp := range m.pairs {
		if f.Matches(kp) {
			out = append(out, kp)
		}
	}

	return out, nil
}

// Set updates the pair with the same ID in place, or appends with the next sequential ID.
func (m *Memory) Set(kp coin.KeyPair) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kp.ID != 0 {
		for i := range m.pairs {
			if m.pairs[i].ID == kp.ID {
				m.pairs[i] = kp

				return kp.ID, nil
			}
		}
	}

	if kp.ID == 0 {
		// Next ID comes from the highest stored one, not the count: an insert that arrived with its own
		// ID would otherwise collide with a later auto-assigned ID.
		next := 1

		for i := range m.pairs {
			if m.pairs[i].ID >= next {
				next = m.pairs[i].ID + 1
			}
		}

		kp.ID = next
	}

	m.pairs = append(m.pairs, kp)

	return kp.ID, nil
}
