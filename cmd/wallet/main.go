// Package main: wallet service.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openxch/coinhandler/handlers"
	"github.com/openxch/coinhandler/lib/config"
	"github.com/openxch/coinhandler/lib/keystore"
	"github.com/openxch/coinhandler/lib/keystore/db"
	"github.com/openxch/coinhandler/lib/notify"
	"github.com/openxch/coinhandler/lib/notify/amqp"
	"github.com/openxch/coinhandler/wallet"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to key store
	ks, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		panic(err)
	}

	keystore.SetStore(ks)
	log.Printf("Connected to %s key store", conf.DBType)

	// load all coin handlers
	reg := handlers.Init(conf.Handlers, conf.Settings, conf.Seed)

	log.Print("Coin handlers loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb notify.Broker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(); err != nil {
			panic(err)
		}
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// create wallet service
	w := wallet.New(conf.DBType, ks, reg, mb)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		w.Stop()
		close(finish)
	}()

	// manage deposit events published by the watcher
	if err := w.ManageDeposits(); err != nil {
		log.Printf("Error setting up broker readers for deposits:%e", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Wallet: %s\n", w.Init(conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}
