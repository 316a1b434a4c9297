package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
)

// Errors returned to client requests.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoAmount   = errors.New("a decimal amount is required")
	ErrNoAddress  = errors.New("a destination address or account is required")
)

// SendReq is the request body for the send endpoint. Amount is a decimal string; AllowIssue lets the request
// fall back to issuing when the balance is short (can_issue coins only).
type SendReq struct {
	Coin       string `json:"coin"`
	Amount     string `json:"amount"`
	Address    string `json:"address"`
	From       string `json:"from,omitempty"`
	Memo       string `json:"memo,omitempty"`
	AllowIssue bool   `json:"allow_issue,omitempty"`
}

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// status maps a handler failure to the http code the client sees.
func status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, handler.ErrTokenNotFound), errors.Is(err, handler.ErrHandlerNotFound),
		errors.Is(err, handler.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, handler.ErrNotEnoughBalance), errors.Is(err, handler.ErrAmountTooSmall),
		errors.Is(err, handler.ErrIssueNotSupported), errors.Is(err, handler.ErrAuthorityMissing),
		errors.Is(err, handler.ErrNoSourceAccount), errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrNoAmount), errors.Is(err, ErrNoAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// reply writes the deferred response envelope and logs the request outcome.
func reply(rw http.ResponseWriter, r *http.Request, body interface{}, err error) {
	var res Response

	rw.Header().Set("Content-Type", "application/json;charset=utf8")

	if err != nil {
		res.Error = fmt.Sprintf("%s", err)
		rw.WriteHeader(status(err))
	} else {
		rw.WriteHeader(http.StatusOK)

		tmp, _ := json.Marshal(body)
		res.Body = string(tmp)
	}

	logger.L.Infof("httpreq from %v %s err:%v", r.RemoteAddr, r.RequestURI, err)

	_ = json.NewEncoder(rw).Encode(&res)
}

// homeHandler just replies a welcome message to the client.
func (w *Wallet) homeHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, "Hello, this is your multi-coin wallet!", nil)
}

// coinInfo describes one registered coin in the coins listing.
type coinInfo struct {
	Symbol     string `json:"symbol"`
	HasLoader  bool   `json:"has_loader"`
	HasManager bool   `json:"has_manager"`
}

// coinsHandler replies the coins available to the wallet.
func (w *Wallet) coinsHandler(rw http.ResponseWriter, r *http.Request) {
	seen := map[string]*coinInfo{}

	for sym := range w.reg.GetManagers() {
		seen[sym] = &coinInfo{Symbol: sym, HasManager: true}
	}

	for sym := range w.reg.GetLoaders() {
		if ci, ok := seen[sym]; ok {
			ci.HasLoader = true
		} else {
			seen[sym] = &coinInfo{Symbol: sym, HasLoader: true}
		}
	}

	pl := make([]coinInfo, 0, len(seen))
	for _, ci := range seen {
		pl = append(pl, *ci)
	}

	reply(rw, r, pl, nil)
}

// healthRow is one manager's diagnostic state.
type healthRow struct {
	Symbol string         `json:"symbol"`
	OK     bool           `json:"ok"`
	Detail handler.Health `json:"detail"`
}

// healthHandler replies a diagnostic snapshot of every managed coin.
func (w *Wallet) healthHandler(rw http.ResponseWriter, r *http.Request) {
	var pl []healthRow

	for sym, ms := range w.reg.GetManagers() {
		for _, m := range ms {
			pl = append(pl, healthRow{Symbol: sym, OK: m.HealthTest(), Detail: m.Health()})
		}
	}

	reply(rw, r, pl, nil)
}

// balanceHandler replies the balance of the coin's own wallet, or of the address/account given in the query.
// For account-based coins a memo query narrows the balance to deposits carrying that memo.
func (w *Wallet) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	m, err := w.reg.GetManager(symbol)
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	q := r.URL.Query()

	bal, err := m.Balance(q.Get("address"), q.Get("memo"), q.Get("memo_case") == "sensitive")
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	reply(rw, r, map[string]string{"coin": symbol, "balance": bal.String()}, nil)
}

// depositHandler replies the deposit destination for the coin: an address for address-based coins, an account
// identifier for account-based ones.
func (w *Wallet) depositHandler(rw http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	m, err := w.reg.GetManager(symbol)
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	kind, dest, err := m.GetDeposit()
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	reply(rw, r, map[string]string{"coin": symbol, "kind": kind, "destination": dest}, nil)
}

// depositsHandler replies the recent deposits detected for the coin. Query parameters: count bounds the wallet
// history walked, batch the page size.
func (w *Wallet) depositsHandler(rw http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	l, err := w.reg.GetLoader(symbol)
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	batch, _ := strconv.Atoi(r.URL.Query().Get("batch"))

	if batch <= 0 {
		batch = 50
	}

	if err = l.Load(count); err != nil {
		reply(rw, r, nil, err)

		return
	}

	st := l.ListTxs(batch)
	defer st.Close()

	pl := []coin.Deposit{}
	for st.Next() {
		pl = append(pl, st.Deposit())
	}

	if err = st.Err(); err != nil {
		reply(rw, r, nil, err)

		return
	}

	reply(rw, r, pl, nil)
}

// sendHandler sends (or, when allowed, issues) funds and replies the broadcast result.
func (w *Wallet) sendHandler(rw http.ResponseWriter, r *http.Request) {
	var req SendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(rw, r, nil, fmt.Errorf("%w: %v", ErrBadRequest, err))

		return
	}

	if req.Address == "" {
		reply(rw, r, nil, ErrNoAddress)

		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		reply(rw, r, nil, ErrNoAmount)

		return
	}

	m, err := w.reg.GetManager(req.Coin)
	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	var res *handler.SendResult
	if req.AllowIssue {
		res, err = handler.SendOrIssue(m, amount, req.Address, req.From, req.Memo)
	} else {
		res, err = m.Send(amount, req.Address, req.From, req.Memo)
	}

	if err != nil {
		reply(rw, r, nil, err)

		return
	}

	if w.mb != nil {
		if err := w.mb.SendResult(req.Coin, *res); err != nil {
			logger.L.Errorf("[%s] could not publish send result %s: %v", req.Coin, res.TxID, err)
		}
	}

	reply(rw, r, res, nil)
}

// reloadHandler rebuilds the handler index, picking up configuration changes.
func (w *Wallet) reloadHandler(rw http.ResponseWriter, r *http.Request) {
	w.reg.Reload()
	reply(rw, r, "reloaded", nil)
}
