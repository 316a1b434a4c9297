package monero

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Manager operates one monero coin's wallet daemon.
type Manager struct {
	coin coin.Coin
	res  *settings.Resolver
	conn *rpcClient
}

// NewManager returns a Manager bound to c.
func NewManager(c coin.Coin, global settings.Map) *Manager {
	c.SetDefaults()
	res := newResolver(global, []coin.Coin{c})

	return &Manager{coin: c, res: res, conn: connFor(res, c.SymbolID)}
}

// AddressValid reports whether the daemon considers address well formed. Backend failures count as invalid.
func (m *Manager) AddressValid(address string) bool {
	ok, err := m.conn.validateAddress(address)
	if err != nil {
		logger.L.Warnf("[%s] validate_address failed, treating %s as invalid: %v", m.coin.Symbol, address, err)

		return false
	}

	return ok
}

// GetDeposit creates a fresh subaddress under the configured wallet account.
func (m *Manager) GetDeposit() (string, string, error) {
	var addr string

	err := withWallet(m.conn, m.res, m.coin.SymbolID, func() error {
		acct, err := accountFor(m.conn, m.res, m.coin.SymbolID)
		if err != nil {
			return err
		}

		addr, err = m.conn.createAddress(acct)

		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("[%s] could not get deposit address: %w", m.coin.Symbol, err)
	}

	return "address", addr, nil
}

// Balance returns the account's total balance, or the balance held by one of its subaddresses. Memo arguments
// are ignored, monero has no memo concept.
func (m *Manager) Balance(address, _ string, _ bool) (decimal.Decimal, error) {
	if address != "" && !m.AddressValid(address) {
		return decimal.Zero, fmt.Errorf("[%s] %s: %w", m.coin.Symbol, address, handler.ErrAccountNotFound)
	}

	var bal balanceResult

	err := withWallet(m.conn, m.res, m.coin.SymbolID, func() error {
		acct, err := accountFor(m.conn, m.res, m.coin.SymbolID)
		if err != nil {
			return err
		}

		bal, err = m.conn.getBalance(acct)

		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("[%s] get_balance: %w", m.coin.Symbol, err)
	}

	if address == "" {
		return fromAtomic(bal.Balance)
	}

	// The daemon only lists subaddresses that have ever held funds, so an unlisted address holds zero.
	total := decimal.Zero

	for _, sub := range bal.PerSubaddress {
		if sub.Address != address {
			continue
		}

		b, err := fromAtomic(sub.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("[%s] get_balance %s: %w", m.coin.Symbol, address, err)
		}

		total = total.Add(b)
	}

	return total, nil
}

// Send transfers amount to address. The amount is rounded down to 12 decimals and checked against the account
// balance before anything is broadcast. The wallet signs with its own keys, so an explicit from that is not the
// coin's configured account cannot be honoured.
func (m *Manager) Send(amount decimal.Decimal, address, from, _ string) (*handler.SendResult, error) {
	amount, err := handler.ToPrecision(amount, precision)
	if err != nil {
		return nil, fmt.Errorf("[%s] send of %s: %w", m.coin.Symbol, amount, err)
	}

	if from != "" && !strings.EqualFold(from, m.coin.OurAccount) {
		return nil, fmt.Errorf("[%s] source %s: %w", m.coin.Symbol, from, handler.ErrAuthorityMissing)
	}

	if !m.AddressValid(address) {
		return nil, fmt.Errorf("[%s] destination %s: %w", m.coin.Symbol, address, handler.ErrAccountNotFound)
	}

	balance, err := m.Balance("", "", false)
	if err != nil {
		return nil, err
	}

	if balance.LessThan(amount) {
		return nil, fmt.Errorf("[%s] balance %s < %s: %w",
			m.coin.Symbol, balance, amount, handler.ErrNotEnoughBalance)
	}

	var tr transferResult

	err = withWallet(m.conn, m.res, m.coin.SymbolID, func() error {
		acct, err := accountFor(m.conn, m.res, m.coin.SymbolID)
		if err != nil {
			return err
		}

		tr, err = m.conn.transfer(acct, address, toAtomic(amount))

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] transfer: %w", m.coin.Symbol, err)
	}

	res := &handler.SendResult{
		TxID:     tr.TxHash,
		Coin:     m.coin.Symbol,
		Amount:   amount,
		From:     from,
		SendType: "send",
	}
	if res.From == "" {
		res.From = m.coin.OurAccount
	}

	if fee, err := fromAtomic(tr.Fee); err == nil {
		res.Fee = fee
	}

	return res, nil
}

// Issue is unsupported, monero cannot mint.
func (m *Manager) Issue(decimal.Decimal, string, string) (*handler.SendResult, error) {
	return nil, fmt.Errorf("[%s]: %w", m.coin.Symbol, handler.ErrIssueNotSupported)
}

// Health reports the wallet daemon's state.
func (m *Manager) Health() handler.Health {
	h := handler.Health{
		Name:     "Monero (" + m.coin.Symbol + ")",
		Headings: []string{"Height", "Working", "Balance"},
	}

	height, err := m.conn.getHeight()
	if err != nil {
		h.Row = []string{"-", "false", "-"}

		return h
	}

	bal, err := m.Balance("", "", false)
	if err != nil {
		h.Row = []string{strconv.FormatInt(height, 10), "true", "-"}

		return h
	}

	h.Row = []string{strconv.FormatInt(height, 10), "true", bal.String()}

	return h
}

// HealthTest reports whether the daemon answers get_height. Never fails.
func (m *Manager) HealthTest() bool {
	_, err := m.conn.getHeight()

	return err == nil
}
