package monero

import (
	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/settings"
)

// Loader enumerates incoming wallet transfers for one or more monero coins. get_transfers is not paged, so each
// coin is fetched in a single call with the wallet opened and flushed around it.
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

// Load bounds enumeration to txCount incoming transfers per coin. Safe to call again with a different count.
func (l *Loader) Load(txCount int) error {
	if txCount <= 0 {
		txCount = defaultTxCount
	}

	l.txCount = txCount

	return nil
}

// ListTxs returns a cursor over normalised deposits for every covered coin, in coin insertion order. Each fetch
// covers one coin completely; malformed records are logged and skipped.
func (l *Loader) ListTxs(batch int) *handler.Stream {
	var ci int

	fetch := func(int) ([]coin.Deposit, bool, error) {
		if ci >= len(l.coins) {
			return nil, false, nil
		}

		c := l.coins[ci]
		ci++

		conn := connFor(l.res, c.SymbolID)

		var raw []rawTransfer

		err := withWallet(conn, l.res, c.SymbolID, func() error {
			acct, err := accountFor(conn, l.res, c.SymbolID)
			if err != nil {
				return err
			}

			raw, err = conn.getTransfers(acct)

			return err
		})
		if err != nil {
			return nil, false, err
		}

		// Transfers arrive oldest first; keep the newest when history outgrows the bound.
		if len(raw) > l.txCount {
			raw = raw[len(raw)-l.txCount:]
		}

		return l.normalizePage(c, raw), ci < len(l.coins) || len(raw) > 0, nil
	}

	return handler.NewStream(batch, fetch, nil)
}

func (l *Loader) normalizePage(c coin.Coin, raw []rawTransfer) []coin.Deposit {
	pol := policyFor(l.res, c.SymbolID)

	var out []coin.Deposit

	for _, tx := range raw {
		if tx.Type != "in" || tx.DoubleSpendSeen {
			continue
		}

		amount, err := fromAtomic(tx.Amount)
		if err != nil {
			logger.L.Warnf("[%s] skipping malformed transfer %s: %v", c.Symbol, tx.TxID, err)

			continue
		}

		// Every incoming transfer counts as trusted with its own suggested threshold, so below the coin's
		// confirmation target a record is still accepted once the daemon considers it safe to act on.
		d, err := handler.Normalize(c.Symbol, handler.Record{
			OpType:        "receive",
			TxID:          tx.TxID,
			Address:       tx.Address,
			Amount:        amount,
			Timestamp:     tx.Timestamp,
			Confirmations: tx.Confirmations,
			Trusted:       true,
			TrustedMin:    tx.SuggestedThreshold,
		}, handler.Filter{}, pol)
		if err != nil {
			logger.L.Warnf("[%s] skipping malformed transfer %s: %v", c.Symbol, tx.TxID, err)

			continue
		}

		if d != nil {
			out = append(out, *d)
		}
	}

	return out
}
