package monero

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// rpcClient speaks JSON-RPC 2.0 to a monero-wallet-rpc daemon. Params are keyword objects and all monetary
// values travel as atomic-unit integers, decoded with UseNumber so they never touch a binary float.
type rpcClient struct {
	url  string
	user string
	pass string
	hc   *http.Client
}

func newRPCClient(host string, port int, user, pass string) *rpcClient {
	return &rpcClient{
		url:  fmt.Sprintf("http://%s:%d/json_rpc", host, port),
		user: user,
		pass: pass,
		hc:   &http.Client{},
	}
}

type rpcRequest struct {
	Version string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
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

// call invokes method and decodes the result into out (which may be nil when the result is irrelevant).
func (c *rpcClient) call(method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Version: "2.0", ID: "coinhandler", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}

	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var r rpcResponse
	if err = dec.Decode(&r); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if r.Error != nil {
		return fmt.Errorf("%s: %w", method, r.Error)
	}

	if out == nil {
		return nil
	}

	dec = json.NewDecoder(bytes.NewReader(r.Result))
	dec.UseNumber()

	if err = dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}

// Wire shapes for the subset of wallet RPCs used here.

type rawTransfer struct {
	TxID               string      `json:"txid"`
	Type               string      `json:"type"`
	Address            string      `json:"address"`
	Amount             json.Number `json:"amount"` // atomic units
	Fee                json.Number `json:"fee"`
	Confirmations      int         `json:"confirmations"`
	SuggestedThreshold int         `json:"suggested_confirmations_threshold"`
	Timestamp          int64       `json:"timestamp"`
	DoubleSpendSeen    bool        `json:"double_spend_seen"`
}

type transfersResult struct {
	In []rawTransfer `json:"in"`
}

type subBalance struct {
	Address string      `json:"address"`
	Balance json.Number `json:"balance"`
}

type balanceResult struct {
	Balance       json.Number  `json:"balance"`
	PerSubaddress []subBalance `json:"per_subaddress"`
}

type accountInfo struct {
	AccountIndex int    `json:"account_index"`
	Label        string `json:"label"`
	Tag          string `json:"tag"`
}

type accountsResult struct {
	SubaddressAccounts []accountInfo `json:"subaddress_accounts"`
}

type addressResult struct {
	Address string `json:"address"`
}

type validateResult struct {
	Valid bool `json:"valid"`
}

type transferResult struct {
	TxHash string      `json:"tx_hash"`
	Fee    json.Number `json:"fee"`
}

type heightResult struct {
	Height int64 `json:"height"`
}

func (c *rpcClient) openWallet(filename, password string) error {
	return c.call("open_wallet", map[string]interface{}{"filename": filename, "password": password}, nil)
}

func (c *rpcClient) store() error {
	return c.call("store", nil, nil)
}

func (c *rpcClient) validateAddress(address string) (bool, error) {
	var v validateResult

	err := c.call("validate_address", map[string]interface{}{"address": address}, &v)

	return v.Valid, err
}

func (c *rpcClient) createAddress(account int) (string, error) {
	var a addressResult

	err := c.call("create_address", map[string]interface{}{"account_index": account}, &a)

	return a.Address, err
}

func (c *rpcClient) getBalance(account int) (balanceResult, error) {
	var b balanceResult

	err := c.call("get_balance", map[string]interface{}{"account_index": account}, &b)

	return b, err
}

func (c *rpcClient) getTransfers(account int) ([]rawTransfer, error) {
	var t transfersResult

	err := c.call("get_transfers", map[string]interface{}{"in": true, "account_index": account}, &t)

	return t.In, err
}

func (c *rpcClient) getAccounts() ([]accountInfo, error) {
	var a accountsResult

	err := c.call("get_accounts", nil, &a)

	return a.SubaddressAccounts, err
}

// transfer sends atomic units to a single destination and returns the broadcast hash plus the network fee.
func (c *rpcClient) transfer(account int, address string, atomic json.Number) (transferResult, error) {
	var t transferResult

	err := c.call("transfer", map[string]interface{}{
		"account_index": account,
		"destinations":  []map[string]interface{}{{"amount": atomic, "address": address}},
		"get_tx_key":    true,
	}, &t)

	return t, err
}

func (c *rpcClient) getHeight() (int64, error) {
	var h heightResult

	err := c.call("get_height", nil, &h)

	return h.Height, err
}
