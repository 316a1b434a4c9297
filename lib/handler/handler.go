// Package handler defines the contract every backend module must satisfy and the shared transaction
// normalisation logic Loaders build on.
//
// A backend provides up to two roles. A Loader enumerates incoming deposits for the coins it covers, pulling
// backend transaction history in bounded batches and normalising each record through Normalize. A Manager is bound
// to a single coin and validates addresses, reports balances and sends or issues funds.
package handler

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
)

// Kwargs are extra construction arguments forwarded verbatim from a registry entry to both Loader and Manager
// constructors.
type Kwargs map[string]interface{}

// Loader enumerates incoming deposits for one or more coins.
type Loader interface {
	// Load prepares the loader to enumerate up to txCount transactions per coin. It is safe to call again
	// with a different txCount.
	Load(txCount int) error
	// ListTxs returns a pull cursor over normalised deposits, fetching backend history in batches of the
	// given size. The cursor owns any backend session it opens and releases it when exhausted or closed.
	ListTxs(batch int) *Stream
}

// Manager validates addresses, reports balances and sends or issues funds for a single coin.
type Manager interface {
	// AddressValid reports whether the address or account exists and is well formed. It never fails;
	// backend errors count as invalid.
	AddressValid(address string) bool
	// GetDeposit returns the kind of deposit destination ("address" or "account") and the destination
	// itself. Memo generation for account-based coins is the caller's concern.
	GetDeposit() (kind, destination string, err error)
	// Balance returns the confirmed balance of the given address, or of the handler's own account/wallet
	// when address is empty. Fails with ErrAccountNotFound for an unknown address.
	Balance(address, memo string, memoCaseSensitive bool) (decimal.Decimal, error)
	// Send transfers amount to address. An empty from falls back to the handler's configured own account.
	Send(amount decimal.Decimal, address, from, memo string) (*SendResult, error)
	// Issue mints amount to address. Coins that cannot mint fail with ErrIssueNotSupported.
	Issue(amount decimal.Decimal, address, memo string) (*SendResult, error)
	// Health returns a diagnostic snapshot of the backend connection.
	Health() Health
	// HealthTest reports whether the backend is reachable and sane. It never fails; internal errors count
	// as unhealthy.
	HealthTest() bool
}

// SendResult is the outcome of a successful Send or Issue.
type SendResult struct {
	TxID     string          `json:"txid"`
	Coin     string          `json:"coin"`
	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	From     string          `json:"from"`
	SendType string          `json:"send_type"` // "send" or "issue"
}

// Health is one row of a diagnostic table: a handler name, column headings and the matching values.
type Health struct {
	Name     string   `json:"name"`
	Headings []string `json:"headings"`
	Row      []string `json:"row"`
}

// SendOrIssue attempts a send and falls back to issuing only when the failure is ErrNotEnoughBalance. Every other
// send failure propagates unchanged.
func SendOrIssue(m Manager, amount decimal.Decimal, address, from, memo string) (*SendResult, error) {
	res, err := m.Send(amount, address, from, memo)
	if errors.Is(err, ErrNotEnoughBalance) {
		return m.Issue(amount, address, memo)
	}

	return res, err
}

// ToPrecision rounds amount down to the asset's precision. Rounding is always down so a send can never overdraw.
// Fails with ErrAmountTooSmall when the rounded amount is below one unit of precision.
func ToPrecision(amount decimal.Decimal, precision int32) (decimal.Decimal, error) {
	rounded := amount.RoundDown(precision)

	if rounded.LessThan(decimal.New(1, -precision)) {
		return decimal.Zero, ErrAmountTooSmall
	}

	return rounded, nil
}

// PartitionCoins builds the two coin indexes a Loader keeps: by native network symbol and by application-unique
// symbol.
func PartitionCoins(coins []coin.Coin) (bySymbolID, bySymbol map[string]coin.Coin) {
	bySymbolID = make(map[string]coin.Coin, len(coins))
	bySymbol = make(map[string]coin.Coin, len(coins))

	for _, c := range coins {
		c.SetDefaults()
		bySymbolID[c.SymbolID] = c
		bySymbol[c.Symbol] = c
	}

	return bySymbolID, bySymbol
}
