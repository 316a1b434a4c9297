// Package notify defines the interface for publishing detected deposits to different message brokers.
package notify

import (
	"sync"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
)

// Broker publishes deposit events for downstream consumers (crediting services, accounting, alerting).
type Broker interface {
	// Setup declares the broker-side resources (exchanges, topics). Called once after connecting.
	Setup() error
	Close() error

	// SendDeposits publishes deposit events for the given coin symbol.
	SendDeposits(symbol string, deposits []coin.Deposit) error

	// SendResult publishes the outcome of a broadcast send or issue operation.
	SendResult(symbol string, res handler.SendResult) error

	// GetDeposits consumes deposit events for the given coin symbol, pushing them to the returned channel.
	// The mutex ensures each consumed message is only acknowledged once the consumer has fully dealt with
	// it: the consumer receives a deposit, the broker waits on the lock, the consumer unlocks when done.
	GetDeposits(symbol string, mut *sync.Mutex) (<-chan coin.Deposit, <-chan error, error)
}
