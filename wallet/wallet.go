// Package wallet implements the wallet microservice.
//
// This microservice implements a RESTful API for clients to query balances, deposit destinations, deposit
// history and send or issue funds across every coin registered in the handler registry.
package wallet

import (
	"context"
	"sync"

	"github.com/openxch/coinhandler/lib/keystore"
	"github.com/openxch/coinhandler/lib/keystore/db"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/notify"
	"github.com/openxch/coinhandler/lib/registry"

	"net/http"
)

// Wallet contains the data necessary to deliver the service.
type Wallet struct {
	dbtype string
	ks     keystore.Store
	reg    *registry.Registry
	mb     notify.Broker
	s      *http.Server  // http server
	ss     *http.Server  // https server
	sc     chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Wallet service.
func New(dbtype string, ks keystore.Store, reg *registry.Registry, mb notify.Broker) *Wallet {
	return &Wallet{
		dbtype: dbtype,
		ks:     ks,
		reg:    reg,
		mb:     mb,
	}
}

// Stop shuts down the http servers implementing the RESTful API and closes gracefully the connections to the
// message broker and the key store.
func (w *Wallet) Stop() {
	if w.s != nil {
		if err := w.s.Shutdown(context.Background()); err != nil {
			logger.L.Errorf("error in http server shutdown: %v", err)
		}
	}

	if w.ss != nil {
		if err := w.ss.Shutdown(context.Background()); err != nil {
			logger.L.Errorf("error in https server shutdown: %v", err)
		}
	}

	close(w.sc) // indicate shutdowns have finished

	if w.mb != nil {
		if err := w.mb.Close(); err != nil {
			logger.L.Errorf("error closing message broker: %v", err)
		}
	}

	if w.ks != nil {
		err := db.Close(w.dbtype, w.ks)
		logger.L.Infof("disconnecting %v key store, err: %v", w.dbtype, err)
	}
}

// ManageDeposits starts go routines consuming the broker queues for deposit events published by the watcher
// service. For each coin with a loader, a deposit channel and an error channel are read.
func (w *Wallet) ManageDeposits() error {
	if w.mb == nil {
		return nil
	}

	for symbol := range w.reg.GetLoaders() {
		mut := new(sync.Mutex)
		mut.Lock()

		depCh, errCh, err := w.mb.GetDeposits(symbol, mut)
		if err != nil {
			return err
		}

		go func(symbol string) {
			logger.L.Infof("[%s] start listening to deposit events", symbol)

			for d := range depCh {
				logger.L.Infof("[%s] received deposit %s of %s", symbol, d.TxID, d.Amount)
				mut.Unlock()
			}

			logger.L.Infof("[%s] stop listening to deposit events", symbol)
		}(symbol)

		go func(symbol string) {
			for e := range errCh {
				logger.L.Errorf("[%s] deposit event error: %v", symbol, e)
			}
		}(symbol)
	}

	return nil
}
