// Package handlers wires the built-in backend modules into a registry according to the service configuration.
package handlers

import (
	"github.com/openxch/coinhandler/handlers/bitcoin"
	"github.com/openxch/coinhandler/handlers/ethereum"
	"github.com/openxch/coinhandler/handlers/golos"
	"github.com/openxch/coinhandler/handlers/monero"
	"github.com/openxch/coinhandler/lib/config"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

// modules is the static registration table mapping handler names to their modules.
func modules() map[string]registry.Module {
	return map[string]registry.Module{
		"bitcoind": bitcoin.Module(),
		"golos":    golos.Module(),
		"steem":    golos.Module(),
		"ethereum": ethereum.Module(),
		"monero":   monero.Module(),
	}
}

// Init builds a registry from the configured handlers and global settings. A non-empty seed is the HD wallet
// seed (hex) made available to the ethereum coins through their settings, unless their settings already carry
// one. Handlers with no module defined are ignored with a log line. The registry is returned unloaded; the first
// lookup or an explicit Reload builds the instance index.
func Init(hc []config.HandlerConfig, global settings.Map, seed string) *registry.Registry {
	reg := registry.New()
	mods := modules()

	if global == nil {
		global = settings.Map{}
	}

	for _, h := range hc {
		mod, ok := mods[h.Name]
		if !ok {
			logger.L.Warnf("handler module not defined for %s, ignoring", h.Name)

			continue
		}

		reg.Register(h.Name, mod)

		for _, cc := range h.Coins {
			if err := reg.AddHandlerCoin(h.Name, cc.Coin()); err != nil {
				logger.L.Warnf("could not attach coin %s to handler %s: %v", cc.Symbol, h.Name, err)
			}

			if seed != "" && h.Name == "ethereum" {
				key := settings.Key(cc.Symbol)
				if global[key] == nil {
					global[key] = map[string]interface{}{}
				}

				if _, ok := global[key]["seed"]; !ok {
					global[key]["seed"] = seed
				}
			}
		}

		if len(h.Kwargs) > 0 {
			_ = reg.SetKwargs(h.Name, h.Kwargs)
		}

		if h.Disabled {
			_ = reg.DisableHandler(h.Name)
		}
	}

	for sym, kv := range global {
		reg.ConfigureCoin(sym, kv)
	}

	return reg
}
