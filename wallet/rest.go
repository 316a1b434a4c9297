package wallet

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openxch/coinhandler/lib/logger"
)

const timeout = 15

// Init sets up and starts the http/https server to service the RESTful API for a wallet service. If sslPort,
// sslCert and sslKey are informed, it will start an https (TLS) server on the specified port.
func (w *Wallet) Init(port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	// API definition
	r := mux.NewRouter()
	r.HandleFunc("/", w.homeHandler)
	r.HandleFunc("/coins", w.coinsHandler).Methods("GET")               // list registered coins
	r.HandleFunc("/health", w.healthHandler).Methods("GET")             // handler health snapshot
	r.HandleFunc("/balance/{symbol}", w.balanceHandler).Methods("GET")  // coin or address balance
	r.HandleFunc("/deposit/{symbol}", w.depositHandler).Methods("GET")  // deposit destination
	r.HandleFunc("/deposits/{symbol}", w.depositsHandler).Methods("GET") // recent detected deposits
	r.HandleFunc("/send", w.sendHandler).Methods("POST")                // send or issue funds
	r.HandleFunc("/reload", w.reloadHandler).Methods("POST")            // rebuild the handler index

	// setup shutdown channel
	w.sc = make(chan struct{})

	// start http server
	if port != "" {
		w.s = &http.Server{
			Handler: r,
			Addr:    ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = w.s.ListenAndServe()
		}()

		logger.L.Infof("listening to API http requests on :%s", port)
	}

	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		w.ss = &http.Server{
			Handler:      r,
			Addr:         ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = w.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		logger.L.Infof("listening to API https requests on :%s", sslPort)
	}

	// wait for servers to be shutdown
	<-w.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}
