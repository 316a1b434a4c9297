// Package golos implements the handler module for Golos/Steem-family account-based chains, speaking to a
// cli_wallet bridge that holds imported keys and signs outgoing operations.
package golos

import (
	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

// network is the key store network tag for this family.
const network = "golos"

// defaultPrecision applies when an account balance string does not reveal the asset's precision.
const defaultPrecision int32 = 3

// defaultTxCount bounds how many history operations a load walks per coin unless overridden.
const defaultTxCount = 100

// signingKeyTypes are the key types able to sign a transfer, in preference order.
var signingKeyTypes = []string{"active", "owner"} //nolint:gochecknoglobals // static table

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"host":            "127.0.0.1",
		"port":            8091,
		"confirms_needed": 0,
		"precision":       int(defaultPrecision),
	}
}

func newResolver(global settings.Map, coins []coin.Coin) *settings.Resolver {
	r := settings.New(global, coins)
	r.Defaults = defaults()
	r.IntKeys = []string{"port", "confirms_needed", "precision"}

	return r
}

func connFor(r *settings.Resolver, symbol string) *client {
	s := r.ForSymbol(symbol)

	host, _ := s["host"].(string)
	port, _ := s["port"].(int)

	return newClient(host, port)
}

// Module returns the registry registration for Golos/Steem-family coins.
func Module() registry.Module {
	return registry.Module{
		NewLoader: func(coins []coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Loader, error) {
			return NewLoader(coins, global), nil
		},
		NewManager: func(c coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Manager, error) {
			return NewManager(c, global), nil
		},
		Coins: []coin.Coin{
			{Symbol: "GOLOS", CoinType: "golos", DisplayName: "Golos"},
			{Symbol: "GBG", CoinType: "golos", DisplayName: "Golos Gold"},
		},
	}
}
