// Package ethereum implements a manager-only handler module for ethereum networks. Deposits on ethereum are
// better detected by a chain explorer than by wallet polling, so the module provides no Loader; sending,
// balances and deposit addresses are served from an HD wallet and an ethereum node.
package ethereum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tarancss/ethcli"
	"github.com/tarancss/hd"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

// precision is ether's native decimal count. ERC20 tokens with fewer decimals still fit, amounts are rounded
// down per asset before broadcast.
const precision int32 = 18

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"host":      "127.0.0.1",
		"port":      8545,
		"secret":    "",
		"seed":      "",
		"token":     "", // ERC20 contract address, empty for native ether
		"hd_wallet": 0,
		"hd_id":     0,
		"precision": int(precision),
	}
}

func newResolver(global settings.Map, coins []coin.Coin) *settings.Resolver {
	r := settings.New(global, coins)
	r.Defaults = defaults()
	r.IntKeys = []string{"port", "hd_wallet", "hd_id", "precision"}

	return r
}

// Manager operates one ethereum-backed coin. The spending key is derived from the configured HD seed, never
// stored alongside the connection settings.
type Manager struct {
	coin      coin.Coin
	res       *settings.Resolver
	cli       *ethcli.EthCli
	token     string
	precision int32
	address   string
	key       string
}

// NewManager connects to the configured node and derives the coin's own address from the HD seed.
func NewManager(c coin.Coin, global settings.Map) (*Manager, error) {
	c.SetDefaults()
	res := newResolver(global, []coin.Coin{c})
	s := res.ForSymbol(c.SymbolID)

	host, _ := s["host"].(string)
	port, _ := s["port"].(int)
	secret, _ := s["secret"].(string)

	node := host
	if !strings.Contains(node, "://") {
		node = fmt.Sprintf("http://%s:%d", host, port)
	}

	cli := ethcli.Init(node, secret)
	if cli == nil {
		return nil, fmt.Errorf("[%s] cannot connect to ethereum node %s", c.Symbol, node)
	}

	seedHex, _ := s["seed"].(string)

	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) == 0 {
		return nil, fmt.Errorf("[%s] bad or missing HD seed: %w", c.Symbol, handler.ErrAuthorityMissing)
	}

	hdw, err := hd.Init(seed)
	if err != nil {
		return nil, fmt.Errorf("[%s] HD wallet init: %w", c.Symbol, err)
	}

	wallet, _ := s["hd_wallet"].(int)
	id, _ := s["hd_id"].(int)

	addr, key, _, err := hdw.Address(uint32(wallet), hd.External, uint32(id))
	if err != nil {
		return nil, fmt.Errorf("[%s] HD address derivation: %w", c.Symbol, err)
	}

	token, _ := s["token"].(string)
	prec, _ := s["precision"].(int)

	return &Manager{
		coin:      c,
		res:       res,
		cli:       cli,
		token:     token,
		precision: int32(prec),
		address:   "0x" + hex.EncodeToString(addr),
		key:       hex.EncodeToString(key),
	}, nil
}

// Close ends the node connection.
func (m *Manager) Close() {
	m.cli.End()
}

// AddressValid checks the 0x-hex shape of an ethereum address. No RPC is involved, every well-formed address
// exists on chain.
func (m *Manager) AddressValid(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}

	_, err := hex.DecodeString(address[2:])

	return err == nil
}

// GetDeposit returns the coin's own HD-derived receive address.
func (m *Manager) GetDeposit() (string, string, error) {
	return "address", m.address, nil
}

// Balance returns the ether (or configured token) balance of the address, defaulting to the coin's own. Memo
// arguments are ignored, ethereum has no memo concept.
func (m *Manager) Balance(address, _ string, _ bool) (decimal.Decimal, error) {
	if address == "" {
		address = m.address
	}

	if !m.AddressValid(address) {
		return decimal.Zero, fmt.Errorf("[%s] %s: %w", m.coin.Symbol, address, handler.ErrAccountNotFound)
	}

	var bal, tokBal big.Int

	if err := m.cli.GetBalance(address, m.token, &bal, &tokBal); err != nil {
		return decimal.Zero, fmt.Errorf("[%s] balance of %s: %w", m.coin.Symbol, address, err)
	}

	if m.token != "" {
		return decimal.NewFromBigInt(&tokBal, -m.precision), nil
	}

	return decimal.NewFromBigInt(&bal, -m.precision), nil
}

// Send transfers amount to address from the coin's own HD account. An explicit from must match that account,
// any other source has no key here.
func (m *Manager) Send(amount decimal.Decimal, address, from, _ string) (*handler.SendResult, error) {
	if from != "" && !strings.EqualFold(from, m.address) {
		return nil, fmt.Errorf("[%s] no key for source %s: %w", m.coin.Symbol, from, handler.ErrAuthorityMissing)
	}

	amount, err := handler.ToPrecision(amount, m.precision)
	if err != nil {
		return nil, fmt.Errorf("[%s] send: %w", m.coin.Symbol, err)
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

	wei := amount.Shift(m.precision).BigInt().String()

	price, gas, hash, err := m.cli.SendTrx(m.address, address, m.token, wei, nil, m.key, 0, false)
	if err != nil {
		if errors.Is(err, ethcli.ErrBadAmt) {
			return nil, fmt.Errorf("[%s] send: %w", m.coin.Symbol, handler.ErrNotEnoughBalance)
		}

		return nil, fmt.Errorf("[%s] send: %w", m.coin.Symbol, err)
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(price), new(big.Int).SetUint64(gas))

	return &handler.SendResult{
		TxID:     "0x" + hex.EncodeToString(hash),
		Coin:     m.coin.Symbol,
		Amount:   amount,
		Fee:      decimal.NewFromBigInt(fee, -precision),
		From:     m.address,
		SendType: "send",
	}, nil
}

// Issue is unsupported, ether cannot be minted and token minting needs the contract owner.
func (m *Manager) Issue(decimal.Decimal, string, string) (*handler.SendResult, error) {
	return nil, fmt.Errorf("[%s]: %w", m.coin.Symbol, handler.ErrIssueNotSupported)
}

// Health reports the node connection and own-address state.
func (m *Manager) Health() handler.Health {
	h := handler.Health{
		Name:     "Ethereum (" + m.coin.Symbol + ")",
		Headings: []string{"Address", "Working", "Balance"},
	}

	bal, err := m.Balance("", "", false)
	if err != nil {
		logger.L.Warnf("[%s] health check failed: %v", m.coin.Symbol, err)
		h.Row = []string{m.address, "false", "-"}

		return h
	}

	h.Row = []string{m.address, "true", bal.String()}

	return h
}

// HealthTest reports whether the node answers a balance query. Never fails.
func (m *Manager) HealthTest() bool {
	_, err := m.Balance("", "", false)

	return err == nil
}

// Module returns the registry registration for ethereum coins. The module is manager-only.
func Module() registry.Module {
	return registry.Module{
		NewManager: func(c coin.Coin, global settings.Map, _ handler.Kwargs) (handler.Manager, error) {
			return NewManager(c, global)
		},
		Coins: []coin.Coin{
			{Symbol: "ETH", CoinType: "ethereum", DisplayName: "Ether"},
		},
	}
}
