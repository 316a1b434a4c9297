// Package db implements the opening and graceful closing of key store database connections.
package db

import (
	"github.com/openxch/coinhandler/lib/keystore"
	"github.com/openxch/coinhandler/lib/keystore/mongo"
	"github.com/openxch/coinhandler/lib/keystore/postgres"
)

const (
	MEMORY   string = "memory"
	MONGODB  string = "mongodb"
	POSTGRES string = "postgresql"
)

// New returns a new key store connection according to the options (database type).
func New(options, connection string) (keystore.Store, error) {
	switch options {
	case MONGODB:
		return mongo.New(connection)
	case POSTGRES:
		return postgres.New(connection)
	}

	return keystore.NewMemory(), nil
}

// Close gracefully closes the key store connection.
func Close(options string, ks keystore.Store) error {
	switch options {
	case MONGODB:
		return ks.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return ks.(*postgres.Postgres).ClosePostgres()
	}

	return nil
}
