// Package watcher implements the deposit watcher microservice.
//
// The watcher periodically drives every Loader registered in the handler registry, remembers which deposits it
// has already seen and publishes the newly detected ones to the message broker for downstream crediting.
package watcher

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/notify"
	"github.com/openxch/coinhandler/lib/registry"
)

//nolint:gochecknoglobals // prometheus collectors are registered once per process
var (
	scansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_scans_total",
		Help: "Number of completed scan rounds over all loaders.",
	})
	depositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_deposits_total",
		Help: "Number of new deposits detected, per coin.",
	}, []string{"coin"})
	scanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_scan_errors_total",
		Help: "Number of failed loader scans, per coin.",
	}, []string{"coin"})
)

// Watcher drives loaders on a fixed interval.
type Watcher struct {
	reg      *registry.Registry
	mb       notify.Broker
	interval time.Duration
	txCount  int
	batch    int

	seen map[string]map[string]bool // coin symbol -> txids already published
	stop chan struct{}
	done chan struct{}
}

// New returns a Watcher scanning every interval. txCount bounds the history walked per coin and batch the page
// size per backend fetch.
func New(reg *registry.Registry, mb notify.Broker, interval time.Duration, txCount, batch int) *Watcher {
	return &Watcher{
		reg:      reg,
		mb:       mb,
		interval: interval,
		txCount:  txCount,
		batch:    batch,
		seen:     map[string]map[string]bool{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start scans immediately and then on every interval tick until Stop is called. It blocks; run it in its own
// goroutine.
func (w *Watcher) Start() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Scan()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.Scan()
		}
	}
}

// Stop ends the scan loop and waits for the current round to finish.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

// Scan drives every registered loader once, publishing deposits not seen in earlier rounds. A failing loader is
// logged and skipped; it never stops the other coins from being scanned.
func (w *Watcher) Scan() {
	for symbol, loaders := range w.reg.GetLoaders() {
		var fresh []coin.Deposit

		for _, l := range loaders {
			if err := l.Load(w.txCount); err != nil {
				logger.L.Errorf("[%s] loader failed to load: %v", symbol, err)
				scanErrorsTotal.WithLabelValues(symbol).Inc()

				continue
			}

			deposits, err := w.collect(l.ListTxs(w.batch), symbol)
			if err != nil {
				logger.L.Errorf("[%s] deposit scan failed: %v", symbol, err)
				scanErrorsTotal.WithLabelValues(symbol).Inc()

				continue
			}

			fresh = append(fresh, deposits...)
		}

		if len(fresh) == 0 {
			continue
		}

		depositsTotal.WithLabelValues(symbol).Add(float64(len(fresh)))
		logger.L.Infof("[%s] detected %d new deposits", symbol, len(fresh))

		if w.mb != nil {
			if err := w.mb.SendDeposits(symbol, fresh); err != nil {
				logger.L.Errorf("[%s] could not publish deposits: %v", symbol, err)
			}
		}
	}

	scansTotal.Inc()
}

// collect drains the stream, keeping only deposits not seen before. Seen tracking keys on txid and output index
// so multi-output transactions are counted once per output.
func (w *Watcher) collect(st *handler.Stream, symbol string) ([]coin.Deposit, error) {
	defer st.Close()

	known := w.seen[symbol]
	if known == nil {
		known = map[string]bool{}
		w.seen[symbol] = known
	}

	var fresh []coin.Deposit

	for st.Next() {
		d := st.Deposit()

		key := d.TxID + "#" + strconv.Itoa(d.Vout)
		if known[key] {
			continue
		}

		known[key] = true
		fresh = append(fresh, d)
	}

	return fresh, st.Err()
}
