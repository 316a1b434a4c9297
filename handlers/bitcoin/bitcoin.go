// Package bitcoin implements the handler module for bitcoind-compatible wallet daemons (Bitcoin, Litecoin and
// most forks sharing the JSON-RPC wallet API).
package bitcoin

import (
	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

// precision is the smallest unit of any bitcoind-family coin, 1 satoshi.
const precision int32 = 8

// defaultTxCount bounds how many wallet transactions a load enumerates per coin unless overridden.
const defaultTxCount = 100

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"host":            "127.0.0.1",
		"port":            8332,
		"user":            "",
		"password":        "",
		"confirms_needed": 0,
		"use_trusted":     true,
	}
}

func newResolver(global settings.Map, coins []coin.Coin) *settings.Resolver {
	r := settings.New(global, coins)
	r.Defaults = defaults()
	r.IntKeys = []string{"port", "confirms_needed"}
	r.BoolKeys = []string{"use_trusted"}

	return r
}

// connFor dials the daemon configured for symbol.
func connFor(r *settings.Resolver, symbol string) *rpcClient {
	s := r.ForSymbol(symbol)

	host, _ := s["host"].(string)
	port, _ := s["port"].(int)
	user, _ := s["user"].(string)
	pass, _ := s["password"].(string)

	return newRPCClient(host, port, user, pass)
}

func policyFor(r *settings.Resolver, symbol string) handler.Policy {
	s := r.ForSymbol(symbol)

	confirms, _ := s["confirms_needed"].(int)
	trusted, _ := s["use_trusted"].(bool)

	return handler.Policy{ConfirmsNeeded: confirms, UseTrusted: trusted}
}

// Module returns the registry registration for bitcoind-family coins.
func Module() registry.Module {
	return registry.Module{
		NewLoader: func(coins []coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Loader, error) {
			return NewLoader(coins, global), nil
		},
		NewManager: func(c coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Manager, error) {
			return NewManager(c, global), nil
		},
		Coins: []coin.Coin{
			{Symbol: "BTC", CoinType: "bitcoind", DisplayName: "Bitcoin"},
			{Symbol: "LTC", CoinType: "bitcoind", DisplayName: "Litecoin", Port: 9332},
		},
	}
}
