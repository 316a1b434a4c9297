package golos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// client speaks JSON-RPC 2.0 to a Golos/Steem cli_wallet bridge, which holds imported keys and signs outgoing
// transfers on our behalf.
type client struct {
	url string
	hc  *http.Client
}

func newClient(host string, port int) *client {
	return &client{url: fmt.Sprintf("http://%s:%d", host, port), hc: &http.Client{}}
}

type rpcRequest struct {
	Version string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *client) call(method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	body, err := json.Marshal(rpcRequest{Version: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	resp, err := c.hc.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var r rpcResponse
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if r.Error != nil {
		return fmt.Errorf("%s: %w", method, r.Error)
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}

// account is the subset of a chain account object used here.
type account struct {
	Name    string `json:"name"`
	Balance string `json:"balance"` // e.g. "1.500 GOLOS"
}

// getAccount returns the named account or nil when it does not exist.
func (c *client) getAccount(name string) (*account, error) {
	var accs []account

	if err := c.call("get_accounts", []interface{}{[]string{name}}, &accs); err != nil {
		return nil, err
	}

	if len(accs) == 0 {
		return nil, nil
	}

	return &accs[0], nil
}

// transferOp is the payload of a "transfer" history operation.
type transferOp struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"` // e.g. "1.500 GOLOS"
	Memo   string `json:"memo"`
}

// histEntry is one element of an account history page. The wire shape is a pair [index, entry].
type histEntry struct {
	Index     int
	Timestamp string
	TrxID     string
	OpName    string
	Op        transferOp
}

func (h *histEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}

	if len(pair) != 2 { //nolint:gomnd // history entries are [index, entry] pairs
		return fmt.Errorf("history entry is not a pair: %s", data)
	}

	if err := json.Unmarshal(pair[0], &h.Index); err != nil {
		return err
	}

	var entry struct {
		Timestamp string            `json:"timestamp"`
		TrxID     string            `json:"trx_id"`
		Op        []json.RawMessage `json:"op"`
	}

	if err := json.Unmarshal(pair[1], &entry); err != nil {
		return err
	}

	h.Timestamp = entry.Timestamp
	h.TrxID = entry.TrxID

	if len(entry.Op) != 2 { //nolint:gomnd // operations are [name, payload] pairs
		return fmt.Errorf("history op is not a pair: %s", pair[1])
	}

	if err := json.Unmarshal(entry.Op[0], &h.OpName); err != nil {
		return err
	}

	if h.OpName == "transfer" {
		return json.Unmarshal(entry.Op[1], &h.Op)
	}

	return nil
}

// getAccountHistory returns up to limit history entries for account, ending at index from (-1 for the newest).
func (c *client) getAccountHistory(acc string, from, limit int) ([]histEntry, error) {
	var hist []histEntry

	err := c.call("get_account_history", []interface{}{acc, from, limit}, &hist)

	return hist, err
}

// importKey hands a signing key to the wallet bridge for the duration of the session.
func (c *client) importKey(wif string) error {
	return c.call("import_key", []interface{}{wif}, nil)
}

type broadcastResult struct {
	ID string `json:"id"`
}

// transfer broadcasts a signed transfer and returns its transaction id. amount carries the asset suffix,
// e.g. "1.500 GOLOS".
func (c *client) transfer(from, to, amount, memo string) (string, error) {
	var res broadcastResult

	if err := c.call("transfer", []interface{}{from, to, amount, memo, true}, &res); err != nil {
		return "", err
	}

	return res.ID, nil
}

// issueAsset broadcasts an asset issuance by the issuer account and returns its transaction id.
func (c *client) issueAsset(issuer, to, amount, memo string) (string, error) {
	var res broadcastResult

	if err := c.call("issue_asset", []interface{}{issuer, to, amount, memo, true}, &res); err != nil {
		return "", err
	}

	return res.ID, nil
}

// parseAsset splits a chain amount string like "1.500 GOLOS" into its numeric part, symbol and precision (the
// number of decimal places carried by the string).
func parseAsset(s string) (amount, symbol string, precision int32, err error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 { //nolint:gomnd // chain amounts are "<number> <symbol>"
		return "", "", 0, fmt.Errorf("malformed asset amount %q", s)
	}

	amount, symbol = parts[0], parts[1]

	if i := strings.IndexByte(amount, '.'); i >= 0 {
		precision = int32(len(amount) - i - 1)
	}

	return amount, symbol, precision, nil
}

// formatAsset renders an amount at the given precision with its symbol suffix, the only form the chain accepts.
func formatAsset(amount decimal.Decimal, symbol string, precision int32) string {
	return amount.StringFixed(precision) + " " + symbol
}
