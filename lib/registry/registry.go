// Package registry implements the process catalog of handler modules and the symbol-indexed lookup of their
// Loader/Manager instances.
//
// A Registry is constructed empty, configured (modules registered, coins attached, settings merged) and then
// Reload()ed to materialise an index snapshot mapping coin symbols to instantiated loaders and managers. The
// snapshot is swapped in atomically so a caller never observes a half-built index. Configuration and lookups are
// expected to be driven by one logical goroutine; the swap guarantee is the only concurrency promise made here.
package registry

import (
	"fmt"
	"sync"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Module is a handler backend's static registration record: factories for its roles, an optional refresh hook and
// the coins it contributes to the symbol catalog.
//
// Both factories receive only the coin(s) the instance is bound to: NewLoader a one-element list for the coin it
// is indexed under, NewManager that single coin. Either factory may be nil when the backend does not provide
// that role.
type Module struct {
	NewLoader  func(coins []coin.Coin, global settings.Map, kw handler.Kwargs) (handler.Loader, error)
	NewManager func(c coin.Coin, global settings.Map, kw handler.Kwargs) (handler.Manager, error)
	// Reload is invoked only on re-reloads, before instances are rebuilt, to refresh derived state such as
	// settings caches. First-time initialization belongs in the factories.
	Reload func()
	Coins  []coin.Coin
}

// entry is the per-handler-name configuration state.
type entry struct {
	mod     Module
	enabled bool
	coins   []coin.Coin
	kwargs  handler.Kwargs
}

// index is one immutable snapshot of symbol to instances. Instances are filed under the coin's native symbol.
type index struct {
	loaders  map[string][]handler.Loader
	managers map[string][]handler.Manager
}

// Registry is the catalog. The zero value is not usable, construct with New.
type Registry struct {
	mu       sync.Mutex
	order    []string
	entries  map[string]*entry
	catalog  map[string]coin.Coin
	settings settings.Map

	idx    *index
	loaded bool
}

// New returns an empty Registry with an empty global settings map.
func New() *Registry {
	return &Registry{
		entries:  map[string]*entry{},
		catalog:  map[string]coin.Coin{},
		settings: settings.Map{},
	}
}

// Settings exposes the registry's global per-symbol settings map, as passed to handler factories.
func (r *Registry) Settings() settings.Map {
	return r.settings
}

// Register adds a handler module under name, enabled by default, and merges the module's coin catalog into the
// symbol catalog. Registering an existing name replaces its module but keeps its configuration.
func (r *Registry) Register(name string, mod Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range mod.Coins {
		c.SetDefaults()
		r.catalog[c.Symbol] = c
	}

	if e, ok := r.entries[name]; ok {
		e.mod = mod

		return
	}

	r.entries[name] = &entry{mod: mod, enabled: true, kwargs: handler.Kwargs{}}
	r.order = append(r.order, name)
}

// EnableHandler marks the named handlers enabled. Unknown names fail with ErrHandlerNotFound.
func (r *Registry) EnableHandler(names ...string) error {
	return r.setEnabled(true, names)
}

// DisableHandler marks the named handlers disabled. Unknown names fail with ErrHandlerNotFound.
func (r *Registry) DisableHandler(names ...string) error {
	return r.setEnabled(false, names)
}

func (r *Registry) setEnabled(enabled bool, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("%q: %w", name, handler.ErrHandlerNotFound)
		}

		e.enabled = enabled
	}

	return nil
}

// AddHandlerCoin appends a Coin to a handler's coin list. Idempotent: a coin already present (matched by symbol,
// case-sensitive) is left alone. The coin is also merged into the symbol catalog; fields the given coin leaves
// empty keep their catalog values.
func (r *Registry) AddHandlerCoin(name string, c coin.Coin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, handler.ErrHandlerNotFound)
	}

	if have, ok := r.catalog[c.Symbol]; ok {
		c = mergeCoin(c, have)
	}

	c.SetDefaults()

	for _, have := range e.coins {
		if have.Symbol == c.Symbol {
			return nil
		}
	}

	e.coins = append(e.coins, c)
	r.catalog[c.Symbol] = c

	return nil
}

// mergeCoin fills c's empty fields from the catalog entry base.
func mergeCoin(c, base coin.Coin) coin.Coin {
	if c.SymbolID == "" {
		c.SymbolID = base.SymbolID
	}

	if c.CoinType == "" {
		c.CoinType = base.CoinType
	}

	if c.DisplayName == "" {
		c.DisplayName = base.DisplayName
	}

	if c.OurAccount == "" {
		c.OurAccount = base.OurAccount
	}

	if c.Host == "" {
		c.Host = base.Host
	}

	if c.Port == 0 {
		c.Port = base.Port
	}

	if c.User == "" {
		c.User = base.User
	}

	if c.Pass == "" {
		c.Pass = base.Pass
	}

	if c.JSON == "" {
		c.JSON = base.JSON
	}

	return c
}

// AddHandlerSymbol is AddHandlerCoin for a bare symbol, resolved through the symbol catalog. An unknown symbol
// fails with ErrTokenNotFound.
func (r *Registry) AddHandlerSymbol(name, symbol string) error {
	r.mu.Lock()
	c, ok := r.catalog[symbol]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%q: %w", symbol, handler.ErrTokenNotFound)
	}

	return r.AddHandlerCoin(name, c)
}

// SetKwargs replaces the extra construction arguments forwarded to a handler's factories.
func (r *Registry) SetKwargs(name string, kw handler.Kwargs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, handler.ErrHandlerNotFound)
	}

	e.kwargs = kw

	return nil
}

// ConfigureCoin shallow-merges opts into the global settings map entry for symbol, creating it when absent, and
// updates any matching connection fields on the symbol's catalog Coin. Each call only overwrites the keys it
// names, so repeated calls with disjoint keys accumulate.
func (r *Registry) ConfigureCoin(symbol string, opts map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := settings.Key(symbol)

	s, ok := r.settings[key]
	if !ok {
		s = map[string]interface{}{}
		r.settings[key] = s
	}

	for k, v := range opts {
		s[k] = v
	}

	c, ok := r.catalog[symbol]
	if !ok {
		return
	}

	applyCoinOpts(&c, opts)
	r.catalog[symbol] = c

	// Keep handler coin lists in sync with the catalog entry.
	for _, e := range r.entries {
		for i := range e.coins {
			if e.coins[i].Symbol == symbol {
				applyCoinOpts(&e.coins[i], opts)
			}
		}
	}
}

func applyCoinOpts(c *coin.Coin, opts map[string]interface{}) {
	for k, v := range opts {
		switch k {
		case "host":
			if s, ok := v.(string); ok {
				c.Host = s
			}
		case "port":
			if n, ok := v.(int); ok {
				c.Port = n
			}
		case "user":
			if s, ok := v.(string); ok {
				c.User = s
			}
		case "password":
			if s, ok := v.(string); ok {
				c.Pass = s
			}
		case "our_account":
			if s, ok := v.(string); ok {
				c.OurAccount = s
			}
		case "can_issue":
			if b, ok := v.(bool); ok {
				c.CanIssue = b
			}
		case "json":
			if s, ok := v.(string); ok {
				c.JSON = s
			}
		}
	}
}

// Reload rebuilds the symbol index from scratch and publishes it atomically. A handler whose refresh hook or
// factories fail is logged and skipped without aborting the remaining handlers.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reloadLocked()
}

func (r *Registry) reloadLocked() {
	next := &index{
		loaders:  map[string][]handler.Loader{},
		managers: map[string][]handler.Manager{},
	}

	for _, name := range r.order {
		e := r.entries[name]
		if !e.enabled {
			continue
		}

		if r.loaded && e.mod.Reload != nil {
			e.mod.Reload()
		}

		if err := buildHandler(next, name, e, r.settings); err != nil {
			logger.L.Errorf("handler %q failed to load, skipping: %v", name, err)
		}
	}

	r.idx = next
	r.loaded = true
}

// buildHandler instantiates one handler's loaders and managers into next. Any factory error aborts just this
// handler; nothing of a failed handler is indexed.
func buildHandler(next *index, name string, e *entry, global settings.Map) error {
	loaders := map[string][]handler.Loader{}
	managers := map[string][]handler.Manager{}

	for _, c := range e.coins {
		c.SetDefaults()

		if e.mod.NewLoader != nil {
			// One loader per coin, covering just that coin. A loader enumerates every coin it is built
			// with, so a wider list would leak sibling deposits into this symbol's index slot.
			l, err := e.mod.NewLoader([]coin.Coin{c}, global, e.kwargs)
			if err != nil {
				return fmt.Errorf("loader for %s: %w", c.Symbol, err)
			}

			loaders[c.SymbolID] = append(loaders[c.SymbolID], l)
		}

		if e.mod.NewManager != nil {
			m, err := e.mod.NewManager(c, global, e.kwargs)
			if err != nil {
				return fmt.Errorf("manager for %s: %w", c.Symbol, err)
			}

			managers[c.SymbolID] = append(managers[c.SymbolID], m)
		}
	}

	for sym, ls := range loaders {
		next.loaders[sym] = append(next.loaders[sym], ls...)
	}

	for sym, ms := range managers {
		next.managers[sym] = append(next.managers[sym], ms...)
	}

	return nil
}

// snapshot returns the current index, triggering the first reload when none has happened yet.
func (r *Registry) snapshot() *index {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		r.reloadLocked()
	}

	return r.idx
}

// GetLoader returns the first Loader indexed under symbol. Fails with ErrTokenNotFound for an unindexed symbol.
func (r *Registry) GetLoader(symbol string) (handler.Loader, error) {
	ls := r.snapshot().loaders[symbol]
	if len(ls) == 0 {
		return nil, fmt.Errorf("%q: %w", symbol, handler.ErrTokenNotFound)
	}

	return ls[0], nil
}

// GetManager returns the first Manager indexed under symbol. Fails with ErrTokenNotFound for an unindexed symbol.
func (r *Registry) GetManager(symbol string) (handler.Manager, error) {
	ms := r.snapshot().managers[symbol]
	if len(ms) == 0 {
		return nil, fmt.Errorf("%q: %w", symbol, handler.ErrTokenNotFound)
	}

	return ms[0], nil
}

// GetLoaders returns every indexed Loader, keyed by symbol. The returned map is the caller's to mutate; the
// published snapshot stays intact.
func (r *Registry) GetLoaders() map[string][]handler.Loader {
	src := r.snapshot().loaders

	out := make(map[string][]handler.Loader, len(src))
	for sym, ls := range src {
		out[sym] = append([]handler.Loader(nil), ls...)
	}

	return out
}

// GetManagers returns every indexed Manager, keyed by symbol. The returned map is the caller's to mutate; the
// published snapshot stays intact.
func (r *Registry) GetManagers() map[string][]handler.Manager {
	src := r.snapshot().managers

	out := make(map[string][]handler.Manager, len(src))
	for sym, ms := range src {
		out[sym] = append([]handler.Manager(nil), ms...)
	}

	return out
}

// HasLoader reports whether a Loader is indexed under symbol. Never fails.
func (r *Registry) HasLoader(symbol string) bool {
	return len(r.snapshot().loaders[symbol]) > 0
}

// HasManager reports whether a Manager is indexed under symbol. Never fails.
func (r *Registry) HasManager(symbol string) bool {
	return len(r.snapshot().managers[symbol]) > 0
}

// Coin returns the catalog Coin for symbol.
func (r *Registry) Coin(symbol string) (coin.Coin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.catalog[symbol]
	if !ok {
		return coin.Coin{}, fmt.Errorf("%q: %w", symbol, handler.ErrTokenNotFound)
	}

	return c, nil
}
