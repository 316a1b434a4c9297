// Package coin defines the value objects shared by all handlers: a tradable asset (Coin), a normalised incoming
// transfer (Deposit) and a signing credential (KeyPair).
package coin

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/logger"
)

// Errors returned by the parse helpers.
var (
	ErrBadTimestamp = errors.New("timestamp must be an ISO-8601 string or unix epoch")
	ErrFloatAmount  = errors.New("monetary amounts must not be constructed from binary floats")
	ErrBadAmount    = errors.New("amount could not be parsed as a decimal")
)

// Coin represents one tradable asset as known to the calling application.
//
// Symbol is the application-unique identifier, SymbolID the native network symbol (defaults to Symbol) and CoinType
// a short tag such as "bitcoind" selecting the handler module that owns the coin. OurAccount is only set for
// account-based networks. Host, Port, User and Pass are free-form connection settings; JSON carries
// handler-specific extras as an opaque JSON object.
type Coin struct {
	Symbol      string `json:"symbol"`
	SymbolID    string `json:"symbol_id,omitempty"`
	CoinType    string `json:"coin_type,omitempty"`
	OurAccount  string `json:"our_account,omitempty"`
	CanIssue    bool   `json:"can_issue,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
	User string `json:"user,omitempty"`
	Pass string `json:"pass,omitempty"`
	JSON string `json:"json,omitempty"`
}

// New returns a Coin for symbol with defaults applied.
func New(symbol string) Coin {
	c := Coin{Symbol: symbol}
	c.SetDefaults()

	return c
}

// SetDefaults fills SymbolID and DisplayName from Symbol when unset.
func (c *Coin) SetDefaults() {
	if c.SymbolID == "" {
		c.SymbolID = c.Symbol
	}

	if c.DisplayName == "" {
		c.DisplayName = c.Symbol
	}
}

// Extras decodes the JSON extras blob. A decode failure is logged and degrades to an empty map, it never fails the
// caller.
func (c Coin) Extras() map[string]interface{} {
	ex := map[string]interface{}{}
	if c.JSON == "" {
		return ex
	}

	if err := json.Unmarshal([]byte(c.JSON), &ex); err != nil {
		logger.L.Warnf("[%s] could not decode coin JSON settings, falling back to {}: %v", c.Symbol, err)

		return map[string]interface{}{}
	}

	return ex
}

// Settings is a read-only view combining the four typed connection fields with the decoded extras under "json".
func (c Coin) Settings() map[string]interface{} {
	return map[string]interface{}{
		"host":     c.Host,
		"port":     c.Port,
		"user":     c.User,
		"password": c.Pass,
		"json":     c.Extras(),
	}
}

// Deposit is a normalised incoming transfer. Either Address (address-based coins) or the
// FromAccount/ToAccount/Memo triple (account-based coins) is populated.
type Deposit struct {
	Coin        string          `json:"coin"`
	TxTimestamp time.Time       `json:"tx_timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	TxID        string          `json:"txid,omitempty"`
	Vout        int             `json:"vout"`
	Address     string          `json:"address,omitempty"`
	Memo        string          `json:"memo,omitempty"`
	FromAccount string          `json:"from_account,omitempty"`
	ToAccount   string          `json:"to_account,omitempty"`
}

// Timestamp layouts accepted by ParseTime besides RFC3339.
var tsLayouts = []string{ //nolint:gochecknoglobals // static table
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime converts a backend-native timestamp into an absolute UTC time. It accepts ISO-8601 strings and unix
// epoch values (numeric or numeric string).
func ParseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
	case string:
		if epoch, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC(), nil
		}

		for _, l := range tsLayouts {
			if d, err := time.Parse(l, t); err == nil {
				return d.UTC(), nil
			}
		}
	}

	return time.Time{}, ErrBadTimestamp
}

// ParseAmount converts a backend-native amount into a Decimal. Only decimal-safe representations are accepted:
// strings, integers and Decimal values. Binary floats are rejected so monetary precision is never lost.
func ParseAmount(v interface{}) (decimal.Decimal, error) {
	switch a := v.(type) {
	case decimal.Decimal:
		return a, nil
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Zero, ErrBadAmount
		}

		return d, nil
	case int:
		return decimal.NewFromInt(int64(a)), nil
	case int64:
		return decimal.NewFromInt(a), nil
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		if err != nil {
			return decimal.Zero, ErrBadAmount
		}

		return d, nil
	case float32, float64:
		return decimal.Zero, ErrFloatAmount
	}

	return decimal.Zero, ErrBadAmount
}

// KeyPair is a signing credential as held by a key store. ID is assigned by the store on insertion.
type KeyPair struct {
	ID         int             `json:"id" bson:"id"`
	Network    string          `json:"network" bson:"network"`
	PrivateKey string          `json:"private_key" bson:"private_key"`
	PublicKey  string          `json:"public_key,omitempty" bson:"public_key,omitempty"`
	Account    string          `json:"account,omitempty" bson:"account,omitempty"`
	KeyType    string          `json:"key_type,omitempty" bson:"key_type,omitempty"`
	Balance    decimal.Decimal `json:"balance" bson:"balance"`
	Used       bool            `json:"used" bson:"used"`
}
