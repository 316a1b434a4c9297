// Package settings implements the layered configuration resolver used by coin handlers.
//
// A handler is configured from up to four sources. In per-key precedence order: an environment override named
// COIN_<SYMBOL>_<KEY>, the global per-symbol settings map passed to the handler, the Coin object's own connection
// fields and JSON extras, and finally the handler's compiled-in defaults.
package settings

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/util"
)

// Map is the global settings shape: coin symbol to setting name to value. Entries are keyed by Key(symbol).
type Map map[string]map[string]interface{}

// Key normalises a coin symbol into its global settings map key.
func Key(symbol string) string {
	return strings.ToUpper(symbol)
}

// Resolver produces one authoritative value per coin symbol and setting key, and a complete merged settings map
// per symbol. Merged maps are cached until Reset is called; the registry resets on every reload.
//
// Defaults, IntKeys and BoolKeys are set by the owning handler before the first lookup and are not changed after.
type Resolver struct {
	Global   Map
	Defaults map[string]interface{}
	IntKeys  []string
	BoolKeys []string

	coins map[string]coin.Coin
	cache map[string]map[string]interface{}
}

// New returns a Resolver over the global settings map and the coins a handler instance is responsible for. Coins
// are indexed by their native symbol.
func New(global Map, coins []coin.Coin) *Resolver {
	r := &Resolver{
		Global: global,
		coins:  make(map[string]coin.Coin, len(coins)),
		cache:  map[string]map[string]interface{}{},
	}

	for _, c := range coins {
		c.SetDefaults()
		r.coins[c.SymbolID] = c
	}

	return r
}

// Reset drops all cached merged maps so the next lookup re-resolves from current inputs.
func (r *Resolver) Reset() {
	r.cache = map[string]map[string]interface{}{}
}

// Get resolves one setting for a symbol. Resolution order, first match wins: the COIN_<SYMBOL>_<KEY> environment
// variable, the global settings map, the Coin's flat settings and JSON extras (probing the key as given, lower and
// upper cased), and finally def. Get never fails for a missing key.
func (r *Resolver) Get(symbol, key string, def interface{}) interface{} {
	if env, ok := os.LookupEnv("COIN_" + strings.ToUpper(symbol) + "_" + strings.ToUpper(key)); ok {
		return env
	}

	if s, ok := r.Global[Key(symbol)]; ok {
		if v, ok := s[key]; ok {
			return v
		}
	}

	if c, ok := r.lookupCoin(symbol); ok {
		flat := c.Settings()

		ex, _ := flat["json"].(map[string]interface{})
		delete(flat, "json")

		if v, ok := findKey(flat, key); ok && !isEmpty(v) {
			return v
		}

		if v, ok := findKey(ex, key); ok {
			return v
		}
	}

	return def
}

// ForSymbol returns the complete merged settings map for a symbol: handler defaults, overlaid by the Coin's flat
// connection fields, overlaid by its JSON extras, and fully replaced by the global map's entry for the symbol when
// one exists. Missing or empty keys are then filled from defaults and known keys are coerced to int/bool. The
// result is cached and must be treated as read-only.
func (r *Resolver) ForSymbol(symbol string) map[string]interface{} {
	if m, ok := r.cache[symbol]; ok {
		return m
	}

	merged := map[string]interface{}{}

	if c, ok := r.lookupCoin(symbol); ok {
		for k, v := range c.Settings() {
			if k == "json" { // applied below so its keys win over the flat fields
				continue
			}

			merged[k] = v
		}

		for k, v := range c.Extras() {
			merged[k] = v
		}
	}

	// The global map is authoritative: it replaces, not merges into, the coin-level layers.
	if g, ok := r.Global[Key(symbol)]; ok {
		merged = map[string]interface{}{}
		for k, v := range g {
			merged[k] = v
		}
	}

	for k, dv := range r.Defaults {
		if v, ok := merged[k]; !ok || isEmpty(v) {
			merged[k] = dv
		}
	}

	for _, k := range r.IntKeys {
		if v, ok := merged[k]; ok {
			merged[k] = toInt(symbol, k, v)
		}
	}

	for _, k := range r.BoolKeys {
		if v, ok := merged[k]; ok {
			merged[k] = util.Truthy(v)
		}
	}

	r.cache[symbol] = merged

	return merged
}

func (r *Resolver) lookupCoin(symbol string) (coin.Coin, bool) {
	if c, ok := r.coins[symbol]; ok {
		return c, true
	}

	c, ok := r.coins[strings.ToUpper(symbol)]

	return c, ok
}

// findKey probes a map for the key as given, then lower cased, then upper cased.
func findKey(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}

	if v, ok := m[strings.ToLower(key)]; ok {
		return v, true
	}

	v, ok := m[strings.ToUpper(key)]

	return v, ok
}

// isEmpty treats the zero values of the Coin connection fields as unset, so they never shadow a default. Port 0
// is not a usable port, so int 0 counts as unset too.
func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	}

	return false
}

func toInt(symbol, key string, v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}

	logger.L.Warnf("[%s] setting %q = %v is not a valid integer, using 0", symbol, key, v)

	return 0
}
