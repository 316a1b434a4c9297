package bitcoin

import (
	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Loader enumerates wallet deposits for one or more bitcoind-family coins, paging through listtransactions.
type Loader struct {
	coins      []coin.Coin
	bySymbolID map[string]coin.Coin
	bySymbol   map[string]coin.Coin
	res        *settings.Resolver
	txCount    int
}

// NewLoader returns a Loader over the given coins, resolving connections through the layered settings.
func NewLoader(coins []coin.Coin, global settings.Map) *Loader {
	bySymbolID, bySymbol := handler.PartitionCoins(coins)

	return &Loader{
		coins:      coins,
		bySymbolID: bySymbolID,
		bySymbol:   bySymbol,
		res:        newResolver(global, coins),
		txCount:    defaultTxCount,
	}
}

// Load bounds enumeration to txCount wallet transactions per coin. Safe to call again with a different count.
func (l *Loader) Load(txCount int) error {
	if txCount <= 0 {
		txCount = defaultTxCount
	}

	l.txCount = txCount

	return nil
}

// ListTxs returns a cursor over normalised deposits for every covered coin, in coin insertion order. Each fetch
// pulls one page of raw wallet transactions from one coin's daemon; malformed records are logged and skipped.
func (l *Loader) ListTxs(batch int) *handler.Stream {
	var (
		ci     int
		offset int
		conn   *rpcClient
	)

	fetch := func(n int) ([]coin.Deposit, bool, error) {
		if ci >= len(l.coins) {
			return nil, false, nil
		}

		c := l.coins[ci]
		if conn == nil {
			conn = connFor(l.res, c.SymbolID)
		}

		if remaining := l.txCount - offset; n > remaining {
			n = remaining
		}

		raw, err := conn.listTransactions(n, offset)
		if err != nil {
			return nil, false, err
		}

		deposits := l.normalizePage(c, raw)

		offset += len(raw)
		if len(raw) < n || offset >= l.txCount {
			// This coin is exhausted, move to the next one.
			ci++
			offset = 0
			conn = nil
		}

		return deposits, ci < len(l.coins) || len(deposits) > 0, nil
	}

	return handler.NewStream(batch, fetch, nil)
}

func (l *Loader) normalizePage(c coin.Coin, raw []rawTx) []coin.Deposit {
	pol := policyFor(l.res, c.SymbolID)

	var out []coin.Deposit

	for _, tx := range raw {
		if tx.Generated { // coinbase/stake rewards are not deposits
			continue
		}

		d, err := handler.Normalize(c.Symbol, handler.Record{
			OpType:        tx.Category,
			TxID:          tx.TxID,
			Vout:          tx.Vout,
			Address:       tx.Address,
			Amount:        tx.Amount,
			Timestamp:     tx.Time,
			Confirmations: tx.Confirmations,
			Trusted:       tx.Trusted,
		}, handler.Filter{}, pol)
		if err != nil {
			logger.L.Warnf("[%s] skipping malformed wallet tx %s: %v", c.Symbol, tx.TxID, err)

			continue
		}

		if d != nil {
			out = append(out, *d)
		}
	}

	return out
}
