package handler

import (
	"strings"

	"github.com/openxch/coinhandler/lib/coin"
)

// Record is a backend-native transaction in the loosely typed form an RPC layer hands to the normaliser. Amount
// and Timestamp stay in their raw decimal-safe representation until Normalize parses them.
type Record struct {
	OpType        string // backend operation type, e.g. "receive" or "transfer"
	TxID          string
	Vout          int
	Address       string
	FromAccount   string
	ToAccount     string
	Memo          string
	Symbol        string      // asset symbol as reported by the backend, may be empty
	Amount        interface{} // string, integer or decimal.Decimal, never a binary float
	Timestamp     interface{} // ISO-8601 string, unix epoch or time.Time
	Confirmations int
	Trusted       bool // backend flagged the record as immediately final
	TrustedMin    int  // per-record minimum confirmations for trust, 0 means use the policy's
}

// Policy is a coin's confirmation/trust policy.
//
// A record below ConfirmsNeeded is normally discarded. Some backends flag transactions as safe to act on
// instantly (e.g. received from the node's own peers); when UseTrusted is set such records are accepted early,
// provided they carry at least TrustedMin confirmations (or the record's own TrustedMin override).
type Policy struct {
	ConfirmsNeeded int
	UseTrusted     bool
	TrustedMin     int
}

// Filter restricts normalisation to one receiving destination. Zero-value fields do not filter. Memo matching
// trims surrounding whitespace and is case-sensitive unless MemoIgnoreCase is set.
type Filter struct {
	Address        string
	Account        string
	Memo           string
	MemoIgnoreCase bool
}

// Normalize decides whether a backend record is an acceptable deposit for symbol and shapes it into a Deposit.
//
// Routine non-matches (wrong operation type, wrong recipient, wrong asset, insufficient confirmations) return
// (nil, nil) and are not errors. Only malformed input fails, and Loaders catch that per record, log it and skip.
func Normalize(symbol string, r Record, f Filter, p Policy) (*coin.Deposit, error) {
	if r.OpType != "receive" && r.OpType != "transfer" {
		return nil, nil
	}

	if !matches(r, f) {
		return nil, nil
	}

	if r.Symbol != "" && !strings.EqualFold(r.Symbol, symbol) {
		return nil, nil
	}

	if !confirmed(r, p) {
		return nil, nil
	}

	amount, err := coin.ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}

	ts, err := coin.ParseTime(r.Timestamp)
	if err != nil {
		return nil, err
	}

	return &coin.Deposit{
		Coin:        symbol,
		TxTimestamp: ts,
		Amount:      amount,
		TxID:        r.TxID,
		Vout:        r.Vout,
		Address:     r.Address,
		Memo:        strings.TrimSpace(r.Memo),
		FromAccount: r.FromAccount,
		ToAccount:   r.ToAccount,
	}, nil
}

func matches(r Record, f Filter) bool {
	if f.Address != "" && r.Address != f.Address {
		return false
	}

	if f.Account != "" {
		// A transfer we sent ourselves is not a deposit, even when it lands on our account.
		if r.ToAccount != f.Account || r.FromAccount == f.Account {
			return false
		}
	}

	if f.Memo != "" {
		memo := strings.TrimSpace(r.Memo)
		want := strings.TrimSpace(f.Memo)

		if f.MemoIgnoreCase {
			if !strings.EqualFold(memo, want) {
				return false
			}
		} else if memo != want {
			return false
		}
	}

	return true
}

func confirmed(r Record, p Policy) bool {
	if r.Confirmations >= p.ConfirmsNeeded {
		return true
	}

	min := p.TrustedMin
	if r.TrustedMin > 0 {
		min = r.TrustedMin
	}

	return p.UseTrusted && r.Trusted && r.Confirmations >= min
}
