// Package postgres implements the key store interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/keystore"
)

// Postgres implements a key store backed by a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS keypairs (
	id SERIAL PRIMARY KEY,
	network TEXT NOT NULL,
	private_key TEXT NOT NULL,
	public_key TEXT NOT NULL DEFAULT '',
	account TEXT NOT NULL DEFAULT '',
	key_type TEXT NOT NULL DEFAULT '',
	balance NUMERIC NOT NULL DEFAULT 0,
	used BOOLEAN NOT NULL DEFAULT FALSE
)`

// New returns a postgres key store connected to the specified database in 'connection', creating the keypairs
// table when missing.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cannot prepare keypairs table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close the database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// where translates a filter into a SQL condition. Kept in sync with Filter.Matches.
func where(f keystore.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ID != 0 {
		add("id = $%d", f.ID)
	}

	if f.Network != "" {
		add("network = $%d", f.Network)
	}

	if f.PrivateKey != "" {
		add("private_key = $%d", f.PrivateKey)
	}

	if f.PublicKey != "" {
		add("public_key = $%d", f.PublicKey)
	}

	if f.Account != "" {
		add("account = $%d", f.Account)
	}

	if f.KeyType != "" {
		add("key_type = $%d", f.KeyType)
	}

	if len(f.KeyTypeIn) > 0 {
		ph := make([]string, len(f.KeyTypeIn))
		for i, kt := range f.KeyTypeIn {
			args = append(args, kt)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}

		conds = append(conds, "key_type IN ("+strings.Join(ph, ", ")+")")
	}

	if f.Used != nil {
		add("used = $%d", *f.Used)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

const selectCols = "SELECT id, network, private_key, public_key, account, key_type, balance::text, used FROM keypairs"

func scanPair(row interface{ Scan(...interface{}) error }) (coin.KeyPair, error) {
	var (
		kp  coin.KeyPair
		bal string
	)

	err := row.Scan(&kp.ID, &kp.Network, &kp.PrivateKey, &kp.PublicKey, &kp.Account, &kp.KeyType, &bal, &kp.Used)
	if err != nil {
		return coin.KeyPair{}, err
	}

	if kp.Balance, err = coin.ParseAmount(bal); err != nil {
		return coin.KeyPair{}, fmt.Errorf("key pair %d has bad balance %q: %w", kp.ID, bal, err)
	}

	return kp, nil
}

// Get returns the first matching key pair or (nil, nil).
func (p *Postgres) Get(f keystore.Filter) (*coin.KeyPair, error) {
	cond, args := where(f)

	kp, err := scanPair(p.db.QueryRow(selectCols+cond+" ORDER BY id LIMIT 1", args...))
	if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns the sentinel unwrapped
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not read key pair from db: %w", err)
	}

	return &kp, nil
}

// Find returns all matching key pairs ordered by ID.
func (p *Postgres) Find(f keystore.Filter) ([]coin.KeyPair, error) {
	cond, args := where(f)

	rows, err := p.db.Query(selectCols+cond+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("could not query key pairs: %w", err)
	}
	defer rows.Close()

	var out []coin.KeyPair

	for rows.Next() {
		kp, err := scanPair(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, kp)
	}

	return out, rows.Err()
}

// Set updates the pair with the same ID in place, or inserts it letting the id sequence assign the next value.
func (p *Postgres) Set(kp coin.KeyPair) (int, error) {
	if kp.ID != 0 {
		res, err := p.db.Exec(
			`UPDATE keypairs SET network=$2, private_key=$3, public_key=$4, account=$5, key_type=$6,
				balance=$7, used=$8 WHERE id=$1`,
			kp.ID, kp.Network, kp.PrivateKey, kp.PublicKey, kp.Account, kp.KeyType, kp.Balance.String(), kp.Used)
		if err != nil {
			return 0, fmt.Errorf("could not update key pair %d: %w", kp.ID, err)
		}

		if n, _ := res.RowsAffected(); n == 1 {
			return kp.ID, nil
		}

		_, err = p.db.Exec(
			`INSERT INTO keypairs (id, network, private_key, public_key, account, key_type, balance, used)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			kp.ID, kp.Network, kp.PrivateKey, kp.PublicKey, kp.Account, kp.KeyType, kp.Balance.String(), kp.Used)
		if err != nil {
			return 0, fmt.Errorf("could not insert key pair %d: %w", kp.ID, err)
		}

		return kp.ID, nil
	}

	var id int

	err := p.db.QueryRow(
		`INSERT INTO keypairs (network, private_key, public_key, account, key_type, balance, used)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		kp.Network, kp.PrivateKey, kp.PublicKey, kp.Account, kp.KeyType, kp.Balance.String(), kp.Used).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("could not insert key pair in db: %w", err)
	}

	return id, nil
}
