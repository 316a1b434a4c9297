package golos

import (
	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Loader walks account history for one or more account-based coins. A coin without a configured receiving
// account cannot be loaded and is dropped with a warning rather than failing the rest.
type Loader struct {
	coins      []coin.Coin
	bySymbolID map[string]coin.Coin
	bySymbol   map[string]coin.Coin
	res        *settings.Resolver
	loadable   []coin.Coin
	txCount    int
}

// NewLoader returns a Loader over the given coins.
func NewLoader(coins []coin.Coin, global settings.Map) *Loader {
	bySymbolID, bySymbol := handler.PartitionCoins(coins)

	l := &Loader{
		coins:      coins,
		bySymbolID: bySymbolID,
		bySymbol:   bySymbol,
		res:        newResolver(global, coins),
		txCount:    defaultTxCount,
	}
	l.partition()

	return l
}

func (l *Loader) partition() {
	l.loadable = l.loadable[:0]

	for _, c := range l.coins {
		c.SetDefaults()

		if c.OurAccount == "" {
			logger.L.Warnf("[%s] coin has no our_account set, excluding it from deposit loading", c.Symbol)

			continue
		}

		l.loadable = append(l.loadable, c)
	}
}

// Load bounds enumeration to txCount history operations per coin. Safe to call again with a different count.
func (l *Loader) Load(txCount int) error {
	if txCount <= 0 {
		txCount = defaultTxCount
	}

	l.txCount = txCount
	l.partition()

	return nil
}

// ListTxs returns a cursor over normalised deposits across every loadable coin. History is walked newest-first
// in pages of the batch size; per-operation normalisation failures are logged and skipped.
func (l *Loader) ListTxs(batch int) *handler.Stream {
	var (
		ci     int
		cursor = -1
		seen   int
		conn   *client
	)

	fetch := func(n int) ([]coin.Deposit, bool, error) {
		if ci >= len(l.loadable) {
			return nil, false, nil
		}

		c := l.loadable[ci]
		if conn == nil {
			conn = connFor(l.res, c.SymbolID)
		}

		if remaining := l.txCount - seen; n > remaining {
			n = remaining
		}

		hist, err := conn.getAccountHistory(c.OurAccount, cursor, n)
		if err != nil {
			return nil, false, err
		}

		deposits := l.normalizePage(c, hist)

		seen += len(hist)
		lowest := cursor

		for _, h := range hist {
			if lowest == -1 || h.Index < lowest {
				lowest = h.Index
			}
		}

		if len(hist) < n || seen >= l.txCount || lowest <= 0 {
			// This coin's history is exhausted, move on.
			ci++
			cursor = -1
			seen = 0
			conn = nil
		} else {
			cursor = lowest - 1
		}

		return deposits, ci < len(l.loadable) || len(deposits) > 0, nil
	}

	return handler.NewStream(batch, fetch, nil)
}

func (l *Loader) normalizePage(c coin.Coin, hist []histEntry) []coin.Deposit {
	s := l.res.ForSymbol(c.SymbolID)
	confirms, _ := s["confirms_needed"].(int)
	pol := handler.Policy{ConfirmsNeeded: confirms}

	var out []coin.Deposit

	for _, h := range hist {
		if h.OpName != "transfer" {
			continue
		}

		amount, symbol, _, err := parseAsset(h.Op.Amount)
		if err != nil {
			logger.L.Warnf("[%s] skipping malformed history op %s: %v", c.Symbol, h.TrxID, err)

			continue
		}

		// The chain reports amounts in the native symbol, which may differ from the application one.
		d, err := handler.Normalize(c.SymbolID, handler.Record{
			OpType:        "transfer",
			TxID:          h.TrxID,
			FromAccount:   h.Op.From,
			ToAccount:     h.Op.To,
			Memo:          h.Op.Memo,
			Symbol:        symbol,
			Amount:        amount,
			Timestamp:     h.Timestamp,
			Confirmations: confirms, // history ops are already in irreversible blocks
		}, handler.Filter{Account: c.OurAccount}, pol)
		if err != nil {
			logger.L.Warnf("[%s] skipping malformed history op %s: %v", c.Symbol, h.TrxID, err)

			continue
		}

		if d != nil {
			d.Coin = c.Symbol
			out = append(out, *d)
		}
	}

	return out
}
