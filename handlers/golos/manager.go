package golos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/keystore"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Manager operates one Golos/Steem-family coin through the wallet bridge. Signing material is located in the
// process key store at send time.
type Manager struct {
	coin coin.Coin
	res  *settings.Resolver
	conn *client
}

// NewManager returns a Manager bound to c.
func NewManager(c coin.Coin, global settings.Map) *Manager {
	c.SetDefaults()
	res := newResolver(global, []coin.Coin{c})

	return &Manager{coin: c, res: res, conn: connFor(res, c.SymbolID)}
}

func (m *Manager) precision() int32 {
	p, _ := m.res.ForSymbol(m.coin.SymbolID)["precision"].(int)

	return int32(p)
}

// AddressValid reports whether the account exists on the chain. Backend failures count as invalid.
func (m *Manager) AddressValid(account string) bool {
	acc, err := m.conn.getAccount(account)
	if err != nil {
		logger.L.Warnf("[%s] get_accounts failed, treating %s as invalid: %v", m.coin.Symbol, account, err)

		return false
	}

	return acc != nil
}

// GetDeposit returns the handler's receiving account; the caller generates a memo to tell deposits apart.
func (m *Manager) GetDeposit() (string, string, error) {
	if m.coin.OurAccount == "" {
		return "", "", fmt.Errorf("[%s] no receiving account configured: %w",
			m.coin.Symbol, handler.ErrNoSourceAccount)
	}

	return "account", m.coin.OurAccount, nil
}

// Balance returns the account's native-symbol balance, defaulting to the handler's own account. When a memo is
// given it instead sums deposits carrying that memo out of recent history, so a caller can check what one
// depositor has paid in.
func (m *Manager) Balance(account, memo string, memoCaseSensitive bool) (decimal.Decimal, error) {
	if account == "" {
		account = m.coin.OurAccount
	}

	if account == "" {
		return decimal.Zero, fmt.Errorf("[%s] no account to query: %w", m.coin.Symbol, handler.ErrAccountNotFound)
	}

	if memo != "" {
		return m.memoBalance(account, memo, memoCaseSensitive)
	}

	acc, err := m.conn.getAccount(account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[%s] get_accounts: %w", m.coin.Symbol, err)
	}

	if acc == nil {
		return decimal.Zero, fmt.Errorf("[%s] %s: %w", m.coin.Symbol, account, handler.ErrAccountNotFound)
	}

	amount, symbol, _, err := parseAsset(acc.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[%s] account balance: %w", m.coin.Symbol, err)
	}

	if !strings.EqualFold(symbol, m.coin.SymbolID) {
		return decimal.Zero, fmt.Errorf("[%s] account balance is in %s, expected %s",
			m.coin.Symbol, symbol, m.coin.SymbolID)
	}

	return coin.ParseAmount(amount)
}

func (m *Manager) memoBalance(account, memo string, caseSensitive bool) (decimal.Decimal, error) {
	hist, err := m.conn.getAccountHistory(account, -1, defaultTxCount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[%s] get_account_history: %w", m.coin.Symbol, err)
	}

	total := decimal.Zero

	for _, h := range hist {
		if h.OpName != "transfer" || h.Op.To != account {
			continue
		}

		got := strings.TrimSpace(h.Op.Memo)
		want := strings.TrimSpace(memo)

		if caseSensitive {
			if got != want {
				continue
			}
		} else if !strings.EqualFold(got, want) {
			continue
		}

		amount, symbol, _, err := parseAsset(h.Op.Amount)
		if err != nil || !strings.EqualFold(symbol, m.coin.SymbolID) {
			continue
		}

		d, err := coin.ParseAmount(amount)
		if err != nil {
			continue
		}

		total = total.Add(d)
	}

	return total, nil
}

// Send transfers amount to the destination account. The source is the explicit from when given, else the coin's
// configured own account; the amount is rounded down to the asset precision and the source balance is checked
// before the signing key is even looked up.
func (m *Manager) Send(amount decimal.Decimal, account, from, memo string) (*handler.SendResult, error) {
	if from == "" {
		from = m.coin.OurAccount
	}

	if from == "" {
		return nil, fmt.Errorf("[%s]: %w", m.coin.Symbol, handler.ErrNoSourceAccount)
	}

	prec := m.precision()

	amount, err := handler.ToPrecision(amount, prec)
	if err != nil {
		return nil, fmt.Errorf("[%s] send: %w", m.coin.Symbol, err)
	}

	if !m.AddressValid(from) {
		return nil, fmt.Errorf("[%s] source %s: %w", m.coin.Symbol, from, handler.ErrAccountNotFound)
	}

	if !m.AddressValid(account) {
		return nil, fmt.Errorf("[%s] destination %s: %w", m.coin.Symbol, account, handler.ErrAccountNotFound)
	}

	balance, err := m.Balance(from, "", false)
	if err != nil {
		return nil, err
	}

	if balance.LessThan(amount) {
		return nil, fmt.Errorf("[%s] balance %s < %s: %w",
			m.coin.Symbol, balance, amount, handler.ErrNotEnoughBalance)
	}

	if err = m.importSigningKey(from); err != nil {
		return nil, err
	}

	txid, err := m.conn.transfer(from, account, formatAsset(amount, m.coin.SymbolID, prec), memo)
	if err != nil {
		return nil, fmt.Errorf("[%s] transfer: %w", m.coin.Symbol, err)
	}

	return &handler.SendResult{
		TxID:     txid,
		Coin:     m.coin.Symbol,
		Amount:   amount,
		Fee:      decimal.Zero, // transfers are feeless on this family
		From:     from,
		SendType: "send",
	}, nil
}

// Issue mints amount to the destination account. Only coins flagged can_issue support it, and the issuing key
// must be present in the key store.
func (m *Manager) Issue(amount decimal.Decimal, account, memo string) (*handler.SendResult, error) {
	if !m.coin.CanIssue || m.coin.OurAccount == "" {
		return nil, fmt.Errorf("[%s]: %w", m.coin.Symbol, handler.ErrIssueNotSupported)
	}

	prec := m.precision()

	amount, err := handler.ToPrecision(amount, prec)
	if err != nil {
		return nil, fmt.Errorf("[%s] issue: %w", m.coin.Symbol, err)
	}

	if !m.AddressValid(account) {
		return nil, fmt.Errorf("[%s] destination %s: %w", m.coin.Symbol, account, handler.ErrAccountNotFound)
	}

	if err = m.importSigningKey(m.coin.OurAccount); err != nil {
		return nil, err
	}

	txid, err := m.conn.issueAsset(m.coin.OurAccount, account, formatAsset(amount, m.coin.SymbolID, prec), memo)
	if err != nil {
		return nil, fmt.Errorf("[%s] issue_asset: %w", m.coin.Symbol, err)
	}

	return &handler.SendResult{
		TxID:     txid,
		Coin:     m.coin.Symbol,
		Amount:   amount,
		Fee:      decimal.Zero,
		From:     m.coin.OurAccount,
		SendType: "issue",
	}, nil
}

// importSigningKey locates the account's signing credential in the process key store and hands it to the wallet
// bridge. No store or no matching key is an authority failure.
func (m *Manager) importSigningKey(account string) error {
	ks, err := keystore.GetStore()
	if err != nil {
		return fmt.Errorf("[%s] %s: %w: %v", m.coin.Symbol, account, handler.ErrAuthorityMissing, err)
	}

	kp, err := ks.Get(keystore.Filter{Network: network, Account: account, KeyTypeIn: signingKeyTypes})
	if err != nil {
		return fmt.Errorf("[%s] key store lookup for %s: %w", m.coin.Symbol, account, err)
	}

	if kp == nil {
		return fmt.Errorf("[%s] %s: %w", m.coin.Symbol, account, handler.ErrAuthorityMissing)
	}

	if err = m.conn.importKey(kp.PrivateKey); err != nil {
		return fmt.Errorf("[%s] import_key for %s: %w", m.coin.Symbol, account, err)
	}

	return nil
}

// Health reports the bridge connection and receiving account state.
func (m *Manager) Health() handler.Health {
	h := handler.Health{
		Name:     "Golos (" + m.coin.Symbol + ")",
		Headings: []string{"Account", "Working", "Balance"},
	}

	bal, err := m.Balance("", "", false)
	if err != nil {
		h.Row = []string{m.coin.OurAccount, "false", "-"}

		return h
	}

	h.Row = []string{m.coin.OurAccount, "true", bal.String()}

	return h
}

// HealthTest reports whether the receiving account is reachable through the bridge. Never fails.
func (m *Manager) HealthTest() bool {
	_, err := m.Balance("", "", false)

	return err == nil
}
