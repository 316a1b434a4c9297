// Package main: deposit watcher service.
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
	"github.com/openxch/coinhandler/watcher"
)

const (
	defaultTxCount = 100
	defaultBatch   = 50
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

		defer func() {
			errClose := mb.Close()
			log.Printf("Closing messageBroker: %e", errClose)
		}()
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// create watcher service
	w := watcher.New(reg, mb, time.Duration(conf.Interval)*time.Second, defaultTxCount, defaultBatch)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		w.Stop()

		if errClose := db.Close(conf.DBType, ks); errClose != nil {
			log.Printf("Error closing key store: %e", errClose)
		}
	}()

	// scan loaders until stopped
	w.Start()
	log.Print("Watcher: stopped")
}
