// Package coinhandler and its sub-packages implement a uniform layer for receiving and sending value across
// heterogeneous cryptocurrency backends, both address-based (Bitcoin-family) and account-based (Golos/Steem-family).
/*
coinhandler is organised around a handler registry. A handler is a backend-specific module that provides up to two
roles for a family of networks:

1) a Loader that enumerates incoming deposits for one or more coins, normalising backend-native transaction records
 into a uniform Deposit representation with a configurable confirmation/trust policy (package lib/handler).

2) a Manager that validates addresses, reports balances and sends or issues funds for a single coin
 (package lib/handler).

Architecture

The registry (package lib/registry) is an explicit catalog mapping handler names to their enabled state, covered
coins and construction arguments. On Reload it instantiates one Loader and one Manager per covered coin and indexes
the instances by coin symbol, swapping the whole index atomically so callers never observe a half-built registry.
Configuration is resolved through a layered settings resolver (package lib/settings) that reconciles environment
overrides, a global per-symbol settings map, per-coin fields and JSON extras, and handler defaults.

Account-based backends locate signing material through a pluggable key store (package lib/keystore) with in-memory,
MongoDB and PostgreSQL implementations sharing identical filter semantics.

Concrete handlers live under package handlers: a bitcoind-family handler speaking JSON-RPC over HTTP, a Golos/Steem
account-based handler, and an ethereum manager backed by ethcli and an HD wallet.

Two services are built on top of the core. The wallet service (package wallet) exposes a RESTful API for balances,
deposit destinations and sends. The watcher service (package watcher) periodically drives every registered Loader and
publishes newly seen deposits to a message broker (package lib/notify, AMQP implementation provided). Both can be
monitored via a Prometheus API by setting the flag "-m" at startup.

The services can be started running cmd/wallet/main.go and cmd/watcher/main.go with a JSON config file
(package lib/config), overridable through CH_ prefixed environment variables.
*/
package coinhandler
