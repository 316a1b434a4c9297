// Package keystore defines the interface for key pair storage implementations used by account-based handlers.
package keystore

import (
	"errors"
	"sync"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/util"
)

// Store defines required methods for key pair storage backends.
type Store interface {
	// Get returns the first key pair matching the filter, or (nil, nil) when none does.
	Get(f Filter) (*coin.KeyPair, error)
	// Find returns all key pairs matching the filter.
	Find(f Filter) ([]coin.KeyPair, error)
	// Set stores a key pair. A pair with a known ID is updated in place, otherwise it is inserted and assigned
	// the next sequential ID, returned to the caller.
	Set(kp coin.KeyPair) (int, error)
}

// Errors returned
var (
	ErrNoStore = errors.New("no key store configured for this process")
)

// Filter selects key pairs. All set fields must match (conjunction); zero-value fields are ignored. Used is a
// pointer so that filtering on used=false remains expressible.
type Filter struct {
	ID         int
	Network    string
	PrivateKey string
	PublicKey  string
	Account    string
	KeyType    string
	KeyTypeIn  []string
	Used       *bool
}

// Matches reports whether the key pair satisfies every set field of the filter. Backends that can translate the
// filter into a native query (SQL, BSON) do so instead; Matches is the reference semantics.
func (f Filter) Matches(kp coin.KeyPair) bool {
	if f.ID != 0 && kp.ID != f.ID {
		return false
	}

	if f.Network != "" && kp.Network != f.Network {
		return false
	}

	if f.PrivateKey != "" && kp.PrivateKey != f.PrivateKey {
		return false
	}

	if f.PublicKey != "" && kp.PublicKey != f.PublicKey {
		return false
	}

	if f.Account != "" && kp.Account != f.Account {
		return false
	}

	if f.KeyType != "" && kp.KeyType != f.KeyType {
		return false
	}

	if len(f.KeyTypeIn) > 0 && !util.In(f.KeyTypeIn, kp.KeyType) {
		return false
	}

	if f.Used != nil && kp.Used != *f.Used {
		return false
	}

	return true
}

//nolint:gochecknoglobals // one key store per process, set once at startup
var (
	mu      sync.RWMutex
	current Store
)

// SetStore installs the process-wide key store. Services call it once at startup before any handler is loaded.
func SetStore(s Store) {
	mu.Lock()
	current = s
	mu.Unlock()
}

// GetStore returns the process-wide key store, or ErrNoStore when none was installed.
func GetStore() (Store, error) {
	mu.RLock()
	defer mu.RUnlock()

	if current == nil {
		return nil, ErrNoStore
	}

	return current, nil
}
