// Package monero implements the handler module for the monero-wallet-rpc daemon.
//
// Monero amounts travel as atomic-unit integers (1 XMR = 1e12 piconero) and every incoming transfer carries its
// own suggested confirmation threshold, which feeds the per-record trust override during normalisation.
package monero

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

// precision is the smallest unit of monero, 1 piconero.
const precision int32 = 12

// defaultTxCount bounds how many incoming transfers a load keeps per coin unless overridden.
const defaultTxCount = 100

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"host":            "127.0.0.1",
		"port":            18100,
		"user":            "",
		"password":        "",
		"wallet":          "default",
		"wallet_password": "",
		"account":         "",
		"account_id":      0,
		"confirms_needed": 1,
		"use_trusted":     true,
	}
}

func newResolver(global settings.Map, coins []coin.Coin) *settings.Resolver {
	r := settings.New(global, coins)
	r.Defaults = defaults()
	r.IntKeys = []string{"port", "account_id", "confirms_needed"}
	r.BoolKeys = []string{"use_trusted"}

	return r
}

// connFor dials the wallet daemon configured for symbol.
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

// withWallet opens the configured wallet file around fn and flushes it to disk afterwards. The daemon keeps one
// wallet open at a time, so every operation brackets itself. An empty wallet name means the daemon was started
// with a fixed wallet and fn runs as-is.
func withWallet(conn *rpcClient, r *settings.Resolver, symbol string, fn func() error) error {
	s := r.ForSymbol(symbol)

	wallet, _ := s["wallet"].(string)
	if wallet == "" {
		return fn()
	}

	pass, _ := s["wallet_password"].(string)
	if err := conn.openWallet(wallet, pass); err != nil {
		return fmt.Errorf("[%s] open_wallet %s: %w", symbol, wallet, err)
	}

	err := fn()

	if serr := conn.store(); serr != nil {
		logger.L.Warnf("[%s] could not flush wallet %s: %v", symbol, wallet, serr)
	}

	return err
}

// accountFor resolves the wallet account a coin operates on: an explicit account_id wins, then a lookup of the
// configured account label or tag, then account 0. Must run with the wallet open.
func accountFor(conn *rpcClient, r *settings.Resolver, symbol string) (int, error) {
	s := r.ForSymbol(symbol)

	if id, _ := s["account_id"].(int); id > 0 {
		return id, nil
	}

	label, _ := s["account"].(string)
	if label == "" {
		return 0, nil
	}

	accs, err := conn.getAccounts()
	if err != nil {
		return 0, fmt.Errorf("get_accounts: %w", err)
	}

	for _, a := range accs {
		if strings.EqualFold(a.Label, label) || strings.EqualFold(a.Tag, label) {
			return a.AccountIndex, nil
		}
	}

	logger.L.Warnf("[%s] no wallet account labelled %q, falling back to account 0", symbol, label)

	return 0, nil
}

// fromAtomic converts an atomic-unit integer into whole coins.
func fromAtomic(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("atomic amount %q: %w", n, err)
	}

	return d.Shift(-precision), nil
}

// toAtomic converts whole coins into the atomic-unit integer the daemon expects. The amount must already be at
// coin precision.
func toAtomic(d decimal.Decimal) json.Number {
	return json.Number(d.Shift(precision).String())
}

// Module returns the registry registration for monero.
func Module() registry.Module {
	return registry.Module{
		NewLoader: func(coins []coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Loader, error) {
			return NewLoader(coins, global), nil
		},
		NewManager: func(c coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Manager, error) {
			return NewManager(c, global), nil
		},
		Coins: []coin.Coin{
			{Symbol: "XMR", CoinType: "monero", DisplayName: "Monero", Port: 18100},
		},
	}
}
