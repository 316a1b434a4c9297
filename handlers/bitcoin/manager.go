package bitcoin

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Manager operates one bitcoind-family coin's wallet daemon.
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
		logger.L.Warnf("[%s] validateaddress failed, treating %s as invalid: %v", m.coin.Symbol, address, err)

		return false
	}

	return ok
}

// GetDeposit asks the wallet for a fresh receive address.
func (m *Manager) GetDeposit() (string, string, error) {
	addr, err := m.conn.getNewAddress()
	if err != nil {
		return "", "", fmt.Errorf("[%s] could not get deposit address: %w", m.coin.Symbol, err)
	}

	return "address", addr, nil
}

// Balance returns the wallet's confirmed balance, or the total received by a specific address. Memo arguments are
// ignored, bitcoind has no memo concept.
func (m *Manager) Balance(address, _ string, _ bool) (decimal.Decimal, error) {
	confirms, _ := m.res.ForSymbol(m.coin.SymbolID)["confirms_needed"].(int)

	if address == "" {
		bal, err := m.conn.getBalance(confirms)
		if err != nil {
			return decimal.Zero, fmt.Errorf("[%s] getbalance: %w", m.coin.Symbol, err)
		}

		return coin.ParseAmount(bal)
	}

	if !m.AddressValid(address) {
		return decimal.Zero, fmt.Errorf("[%s] %s: %w", m.coin.Symbol, address, handler.ErrAccountNotFound)
	}

	bal, err := m.conn.getReceivedByAddress(address, confirms)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[%s] getreceivedbyaddress: %w", m.coin.Symbol, err)
	}

	return coin.ParseAmount(bal)
}

// Send transfers amount to address. The amount is rounded down to 8 decimals and checked against the wallet
// balance before anything is broadcast. The daemon picks the inputs, so from only labels the result; when empty
// it falls back to the coin's configured account.
func (m *Manager) Send(amount decimal.Decimal, address, from, _ string) (*handler.SendResult, error) {
	amount, err := handler.ToPrecision(amount, precision)
	if err != nil {
		return nil, fmt.Errorf("[%s] send of %s: %w", m.coin.Symbol, amount, err)
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

	txid, err := m.conn.sendToAddress(address, amount.StringFixed(precision))
	if err != nil {
		return nil, fmt.Errorf("[%s] sendtoaddress: %w", m.coin.Symbol, err)
	}

	res := &handler.SendResult{
		TxID:     txid,
		Coin:     m.coin.Symbol,
		Amount:   amount,
		From:     from,
		SendType: "send",
	}
	if res.From == "" {
		res.From = m.coin.OurAccount
	}

	// Read the broadcast transaction back for the network fee; a failure here does not undo the send.
	tx, err := m.conn.getTransaction(txid)
	if err != nil {
		logger.L.Warnf("[%s] could not read back tx %s for its fee: %v", m.coin.Symbol, txid, err)

		return res, nil
	}

	if fee, err := coin.ParseAmount(tx.Fee); err == nil {
		res.Fee = fee.Abs()
	}

	return res, nil
}

// Issue is unsupported, bitcoind-family coins cannot mint.
func (m *Manager) Issue(decimal.Decimal, string, string) (*handler.SendResult, error) {
	return nil, fmt.Errorf("[%s]: %w", m.coin.Symbol, handler.ErrIssueNotSupported)
}

// Health reports the daemon's chain state.
func (m *Manager) Health() handler.Health {
	h := handler.Health{
		Name:     "Bitcoind (" + m.coin.Symbol + ")",
		Headings: []string{"Chain", "Working", "Blocks", "Difficulty"},
	}

	ci, err := m.conn.getBlockchainInfo()
	if err != nil {
		h.Row = []string{"-", "false", "-", "-"}

		return h
	}

	h.Row = []string{ci.Chain, "true", strconv.FormatInt(ci.Blocks, 10), ci.Difficulty.String()}

	return h
}

// HealthTest reports whether the daemon answers getblockchaininfo. Never fails.
func (m *Manager) HealthTest() bool {
	_, err := m.conn.getBlockchainInfo()

	return err == nil
}
