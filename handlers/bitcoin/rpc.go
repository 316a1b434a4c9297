package bitcoin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// rpcClient speaks bitcoind's JSON-RPC 1.0 over HTTP with basic auth. Responses are decoded with UseNumber so
// monetary values stay in their decimal-safe textual form.
type rpcClient struct {
	url  string
	user string
	pass string
	hc   *http.Client
}

func newRPCClient(host string, port int, user, pass string) *rpcClient {
	return &rpcClient{
		url:  fmt.Sprintf("http://%s:%d", host, port),
		user: user,
		pass: pass,
		hc:   &http.Client{},
	}
}

type rpcRequest struct {
	Version string        `json:"jsonrpc"`
	ID      string        `json:"id"`
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

// call invokes method and decodes the result into out (which may be nil when the result is irrelevant).
func (c *rpcClient) call(method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	body, err := json.Marshal(rpcRequest{Version: "1.0", ID: "coinhandler", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}

	req.SetBasicAuth(c.user, c.pass)
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

type rawTx struct {
	Category      string      `json:"category"`
	Address       string      `json:"address"`
	Amount        json.Number `json:"amount"`
	Confirmations int         `json:"confirmations"`
	Trusted       bool        `json:"trusted"`
	Generated     bool        `json:"generated"`
	TxID          string      `json:"txid"`
	Vout          int         `json:"vout"`
	Time          int64       `json:"time"`
}

type validateResult struct {
	IsValid bool `json:"isvalid"`
}

type txInfo struct {
	Amount        json.Number `json:"amount"`
	Fee           json.Number `json:"fee"`
	Confirmations int         `json:"confirmations"`
}

type chainInfo struct {
	Chain      string      `json:"chain"`
	Blocks     int64       `json:"blocks"`
	Headers    int64       `json:"headers"`
	Difficulty json.Number `json:"difficulty"`
}

func (c *rpcClient) listTransactions(count, from int) ([]rawTx, error) {
	var txs []rawTx

	err := c.call("listtransactions", []interface{}{"*", count, from}, &txs)

	return txs, err
}

func (c *rpcClient) validateAddress(address string) (bool, error) {
	var v validateResult

	err := c.call("validateaddress", []interface{}{address}, &v)

	return v.IsValid, err
}

func (c *rpcClient) getBalance(minConf int) (json.Number, error) {
	var bal json.Number

	err := c.call("getbalance", []interface{}{"*", minConf}, &bal)

	return bal, err
}

func (c *rpcClient) getReceivedByAddress(address string, minConf int) (json.Number, error) {
	var bal json.Number

	err := c.call("getreceivedbyaddress", []interface{}{address, minConf}, &bal)

	return bal, err
}

func (c *rpcClient) getNewAddress() (string, error) {
	var addr string

	err := c.call("getnewaddress", nil, &addr)

	return addr, err
}

func (c *rpcClient) sendToAddress(address, amount string) (string, error) {
	var txid string

	err := c.call("sendtoaddress", []interface{}{address, amount}, &txid)

	return txid, err
}

func (c *rpcClient) getTransaction(txid string) (txInfo, error) {
	var tx txInfo

	err := c.call("gettransaction", []interface{}{txid}, &tx)

	return tx, err
}

func (c *rpcClient) getBlockchainInfo() (chainInfo, error) {
	var ci chainInfo

	err := c.call("getblockchaininfo", nil, &ci)

	return ci, err
}
