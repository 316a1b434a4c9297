package golos

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/keystore"
	"github.com/openxch/coinhandler/lib/settings"
)

// mockBridge fakes the cli_wallet JSON-RPC surface. Known accounts map to balance strings.
type mockBridge struct {
	srv      *httptest.Server
	calls    map[string]int
	accounts map[string]string
	history  string // raw JSON history page
}

func newMockBridge(t *testing.T) *mockBridge {
	t.Helper()

	m := &mockBridge{calls: map[string]int{}, accounts: map[string]string{}, history: "[]"}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		m.calls[req.Method]++

		switch req.Method {
		case "get_accounts":
			names, _ := req.Params[0].([]interface{})

			out := "["
			for _, n := range names {
				if bal, ok := m.accounts[n.(string)]; ok {
					out += fmt.Sprintf(`{"name":%q,"balance":%q}`, n, bal)
				}
			}
			out += "]"

			fmt.Fprintf(w, `{"result":%s,"error":null}`, out)
		case "get_account_history":
			fmt.Fprintf(w, `{"result":%s,"error":null}`, m.history)
		case "import_key":
			fmt.Fprint(w, `{"result":true,"error":null}`)
		case "transfer", "issue_asset":
			fmt.Fprint(w, `{"result":{"id":"tx-broadcast"},"error":null}`)
		default:
			fmt.Fprint(w, `{"result":null,"error":{"code":-32601,"message":"method not found"}}`)
		}
	}))
	t.Cleanup(m.srv.Close)

	return m
}

func (m *mockBridge) global(symbol string) settings.Map {
	host, portStr, _ := net.SplitHostPort(m.srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	return settings.Map{symbol: {"host": host, "port": port}}
}

func testCoin(account string) coin.Coin {
	c := coin.New("TEST")
	c.CoinType = "golos"
	c.OurAccount = account

	return c
}

const historyPage = `[
	[0, {"timestamp":"2020-01-01T00:00:00","trx_id":"abc123",
		"op":["transfer",{"from":"alice","to":"bob","amount":"1.500 TEST","memo":" hi "}]}],
	[1, {"timestamp":"2020-01-01T00:01:00","trx_id":"def456",
		"op":["transfer",{"from":"bob","to":"bob","amount":"9.000 TEST","memo":"self"}]}],
	[2, {"timestamp":"2020-01-01T00:02:00","trx_id":"ghi789",
		"op":["transfer",{"from":"carol","to":"bob","amount":"2.000 OTHER","memo":""}]}],
	[3, {"timestamp":"2020-01-01T00:03:00","trx_id":"jkl012",
		"op":["vote",{"voter":"dave"}]}]
]`

func TestLoaderListTxs(t *testing.T) {
	b := newMockBridge(t)
	b.history = historyPage

	l := NewLoader([]coin.Coin{testCoin("bob")}, b.global("TEST"))
	require.NoError(t, l.Load(10))

	st := l.ListTxs(10)
	defer st.Close()

	var got []coin.Deposit
	for st.Next() {
		got = append(got, st.Deposit())
	}

	require.NoError(t, st.Err())
	// Only the real incoming transfer survives: self-sends, foreign assets and non-transfer ops are skipped.
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].TxID)
	assert.Equal(t, "alice", got[0].FromAccount)
	assert.Equal(t, "bob", got[0].ToAccount)
	assert.Equal(t, "hi", got[0].Memo)
	assert.Equal(t, "TEST", got[0].Coin)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("1.5")))
}

func TestLoaderNeedsAccount(t *testing.T) {
	b := newMockBridge(t)
	b.history = historyPage

	// No our_account: the coin is excluded, the load itself succeeds.
	l := NewLoader([]coin.Coin{testCoin("")}, b.global("TEST"))
	require.NoError(t, l.Load(10))

	st := l.ListTxs(10)
	defer st.Close()

	assert.False(t, st.Next())
	require.NoError(t, st.Err())
	assert.Equal(t, 0, b.calls["get_account_history"])
}

func TestManagerSend(t *testing.T) {
	b := newMockBridge(t)
	b.accounts["issuer"] = "10.000 TEST"
	b.accounts["bob"] = "0.000 TEST"

	keystore.SetStore(keystore.NewMemory(coin.KeyPair{
		Network: "golos", Account: "issuer", KeyType: "active", PrivateKey: "5JWif",
	}))
	t.Cleanup(func() { keystore.SetStore(nil) })

	m := NewManager(testCoin("issuer"), b.global("TEST"))

	res, err := m.Send(decimal.RequireFromString("1.23456"), "bob", "", "thanks")
	require.NoError(t, err)

	assert.Equal(t, "tx-broadcast", res.TxID)
	assert.Equal(t, "send", res.SendType)
	assert.Equal(t, "issuer", res.From)
	// Rounded down to the asset's 3 decimals.
	assert.Equal(t, "1.234", res.Amount.String())
	assert.True(t, res.Fee.IsZero())
	assert.Equal(t, 1, b.calls["import_key"])
}

func TestManagerSendFailures(t *testing.T) {
	b := newMockBridge(t)
	b.accounts["issuer"] = "1.000 TEST"
	b.accounts["bob"] = "0.000 TEST"

	keystore.SetStore(keystore.NewMemory())
	t.Cleanup(func() { keystore.SetStore(nil) })

	m := NewManager(testCoin("issuer"), b.global("TEST"))
	one := decimal.NewFromInt(1)

	// Below one unit of precision: nothing is broadcast.
	_, err := m.Send(decimal.RequireFromString("0.0004"), "bob", "", "")
	assert.ErrorIs(t, err, handler.ErrAmountTooSmall)

	// Unknown destination.
	_, err = m.Send(one, "nobody", "", "")
	assert.ErrorIs(t, err, handler.ErrAccountNotFound)

	// Insufficient funds.
	_, err = m.Send(decimal.NewFromInt(5), "bob", "", "")
	assert.ErrorIs(t, err, handler.ErrNotEnoughBalance)

	// No signing key in the store.
	_, err = m.Send(one, "bob", "", "")
	assert.ErrorIs(t, err, handler.ErrAuthorityMissing)
	assert.Equal(t, 0, b.calls["transfer"])

	// No source account at all.
	m = NewManager(testCoin(""), b.global("TEST"))
	_, err = m.Send(one, "bob", "", "")
	assert.ErrorIs(t, err, handler.ErrNoSourceAccount)
}

func TestManagerIssue(t *testing.T) {
	b := newMockBridge(t)
	b.accounts["issuer"] = "0.000 TEST"
	b.accounts["bob"] = "0.000 TEST"

	keystore.SetStore(keystore.NewMemory(coin.KeyPair{
		Network: "golos", Account: "issuer", KeyType: "active", PrivateKey: "5JWif",
	}))
	t.Cleanup(func() { keystore.SetStore(nil) })

	c := testCoin("issuer")

	m := NewManager(c, b.global("TEST"))
	_, err := m.Issue(decimal.NewFromInt(2), "bob", "")
	assert.ErrorIs(t, err, handler.ErrIssueNotSupported)

	c.CanIssue = true
	m = NewManager(c, b.global("TEST"))

	res, err := m.Issue(decimal.NewFromInt(2), "bob", "minted")
	require.NoError(t, err)
	assert.Equal(t, "issue", res.SendType)
	assert.Equal(t, "issuer", res.From)

	// send_or_issue falls back to issuing when the balance is short.
	res, err = handler.SendOrIssue(m, decimal.NewFromInt(5), "bob", "", "")
	require.NoError(t, err)
	assert.Equal(t, "issue", res.SendType)
}

func TestManagerBalance(t *testing.T) {
	b := newMockBridge(t)
	b.accounts["issuer"] = "10.500 TEST"
	b.history = historyPage

	m := NewManager(testCoin("issuer"), b.global("TEST"))

	bal, err := m.Balance("", "", false)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("10.5")))

	_, err = m.Balance("nobody", "", false)
	assert.ErrorIs(t, err, handler.ErrAccountNotFound)

	// Memo balance sums matching incoming transfers from history.
	bal, err = m.Balance("bob", "HI", false)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("1.5")))

	bal, err = m.Balance("bob", "HI", true)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}
