// Package amqp implements the deposit broker interface for AMQP compliant brokers (ie RabbitMQ).
package amqp

import (
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/logger"
	"github.com/openxch/coinhandler/lib/notify"
)

// exchange carries all deposit events, routed by "<symbol>.deposit.<txid>"; txExchange carries the outcomes of
// send and issue operations, routed by "<symbol>.sent.<txid>".
const (
	exchange   = "dep"
	txExchange = "tx"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New connects to an amqp broker.
func New(uri string) (notify.Broker, error) {
	r := &Amqp{}

	var err error
	if r.conn, err = amqp.Dial(uri); err != nil {
		return r, err
	}

	logger.L.Infof("connected to message broker %s", uri)

	return r, nil
}

// Setup declares the deposit and send-result exchanges.
func (r *Amqp) Setup() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if err = channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	return channel.ExchangeDeclare(txExchange, "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the broker.
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			logger.L.Warnf("error closing amqp channel: %v", err)
		}

		r.ch = nil
	}

	return r.conn.Close()
}

func (r *Amqp) channel() (*amqp.Channel, error) {
	if r.ch == nil {
		ch, err := r.conn.Channel()
		if err != nil {
			return nil, err
		}

		r.ch = ch
	}

	return r.ch, nil
}

// SendDeposits publishes one event per deposit to the deposit exchange.
func (r *Amqp) SendDeposits(symbol string, deposits []coin.Deposit) error {
	for _, d := range deposits {
		jsonDoc, err := json.Marshal(d)
		if err != nil {
			return err
		}

		ch, err := r.channel()
		if err != nil {
			return err
		}

		pub := amqp.Publishing{
			Headers:     amqp.Table{"x-deposit-name": symbol + "." + d.TxID},
			Body:        jsonDoc,
			ContentType: "application/json",
		}

		if err = ch.Publish(exchange, symbol+".deposit."+d.TxID, false, false, pub); err != nil {
			logger.L.Errorf("[%s] error publishing deposit %s: %v", symbol, d.TxID, err)

			return err
		}
	}

	return nil
}

// SendResult publishes the outcome of a send or issue operation to the tx exchange.
func (r *Amqp) SendResult(symbol string, res handler.SendResult) error {
	jsonDoc, err := json.Marshal(res)
	if err != nil {
		return err
	}

	ch, err := r.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		Headers:     amqp.Table{"x-tx-name": symbol + "." + res.TxID},
		Body:        jsonDoc,
		ContentType: "application/json",
	}

	if err = ch.Publish(txExchange, symbol+".sent."+res.TxID, false, false, pub); err != nil {
		logger.L.Errorf("[%s] error publishing send result %s: %v", symbol, res.TxID, err)

		return err
	}

	return nil
}

// GetDeposits consumes deposit events for the symbol, pushing them to the returned channel. Each message is
// acknowledged only once the consumer releases the mutex.
func (r *Amqp) GetDeposits(symbol string, mut *sync.Mutex) (<-chan coin.Deposit, <-chan error, error) {
	ch, err := r.channel()
	if err != nil {
		return nil, nil, err
	}

	queue := exchange + symbol

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}

	if err = ch.QueueBind(queue, symbol+".*.*", exchange, false, nil); err != nil {
		return nil, nil, err
	}

	msgs, err := ch.Consume(queue, "deposits-"+symbol, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}

	deps := make(chan coin.Deposit)
	errs := make(chan error)

	go func() {
		for m := range msgs {
			var d coin.Deposit
			if err := json.Unmarshal(m.Body, &d); err != nil {
				errs <- err

				continue
			}

			deps <- d
			mut.Lock() // wait for the consumer to finish processing the deposit
			_ = m.Ack(false)
		}
	}()

	return deps, errs, nil
}
