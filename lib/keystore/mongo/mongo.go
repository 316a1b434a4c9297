// Package mongo implements the key store interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/keystore"
)

// Mongo implements a key store backed by a MongoDB database. Pairs live in the "keypairs" collection of the
// "keys" database, carrying their own sequential "id" field.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo key store connected to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	if err = c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close the database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

func (m *Mongo) col() *mgo.Collection {
	return m.c.Database("keys").Collection("keypairs")
}

// toBSON translates a filter into its native query. Kept in sync with Filter.Matches.
func toBSON(f keystore.Filter) bson.M {
	q := bson.M{}

	if f.ID != 0 {
		q["id"] = f.ID
	}

	if f.Network != "" {
		q["network"] = f.Network
	}

	if f.PrivateKey != "" {
		q["private_key"] = f.PrivateKey
	}

	if f.PublicKey != "" {
		q["public_key"] = f.PublicKey
	}

	if f.Account != "" {
		q["account"] = f.Account
	}

	if f.KeyType != "" {
		q["key_type"] = f.KeyType
	}

	if len(f.KeyTypeIn) > 0 {
		q["key_type"] = bson.M{"$in": f.KeyTypeIn}
	}

	if f.Used != nil {
		q["used"] = *f.Used
	}

	return q
}

// mongoPair carries the decimal balance as a string, which mongo stores losslessly.
type mongoPair struct {
	ID         int    `bson:"id"`
	Network    string `bson:"network"`
	PrivateKey string `bson:"private_key"`
	PublicKey  string `bson:"public_key,omitempty"`
	Account    string `bson:"account,omitempty"`
	KeyType    string `bson:"key_type,omitempty"`
	Balance    string `bson:"balance"`
	Used       bool   `bson:"used"`
}

func toPair(kp coin.KeyPair) mongoPair {
	return mongoPair{
		ID:         kp.ID,
		Network:    kp.Network,
		PrivateKey: kp.PrivateKey,
		PublicKey:  kp.PublicKey,
		Account:    kp.Account,
		KeyType:    kp.KeyType,
		Balance:    kp.Balance.String(),
		Used:       kp.Used,
	}
}

// KeyPair converts a mongoPair to the shared coin.KeyPair type.
func (p mongoPair) KeyPair() (coin.KeyPair, error) {
	bal, err := coin.ParseAmount(p.Balance)
	if err != nil {
		return coin.KeyPair{}, fmt.Errorf("key pair %d has bad balance %q: %w", p.ID, p.Balance, err)
	}

	return coin.KeyPair{
		ID:         p.ID,
		Network:    p.Network,
		PrivateKey: p.PrivateKey,
		PublicKey:  p.PublicKey,
		Account:    p.Account,
		KeyType:    p.KeyType,
		Balance:    bal,
		Used:       p.Used,
	}, nil
}

// Get returns the first matching key pair or (nil, nil).
func (m *Mongo) Get(f keystore.Filter) (*coin.KeyPair, error) {
	var p mongoPair

	err := m.col().FindOne(context.Background(), toBSON(f), options.FindOne().SetSort(bson.M{"id": 1})).Decode(&p)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not read key pair from db: %w", err)
	}

	kp, err := p.KeyPair()
	if err != nil {
		return nil, err
	}

	return &kp, nil
}

// Find returns all matching key pairs ordered by ID.
func (m *Mongo) Find(f keystore.Filter) ([]coin.KeyPair, error) {
	cur, err := m.col().Find(context.Background(), toBSON(f), options.Find().SetSort(bson.M{"id": 1}))
	if err != nil {
		return nil, fmt.Errorf("could not query key pairs: %w", err)
	}
	defer cur.Close(context.Background())

	var out []coin.KeyPair

	for cur.Next(context.Background()) {
		var p mongoPair
		if err = cur.Decode(&p); err != nil {
			return nil, fmt.Errorf("could not decode key pair: %w", err)
		}

		kp, err := p.KeyPair()
		if err != nil {
			return nil, err
		}

		out = append(out, kp)
	}

	return out, cur.Err()
}

// Set updates the pair with the same ID in place, or inserts it with the next sequential ID.
func (m *Mongo) Set(kp coin.KeyPair) (int, error) {
	ctx := context.Background()

	if kp.ID != 0 {
		res, err := m.col().ReplaceOne(ctx, bson.M{"id": kp.ID}, toPair(kp))
		if err != nil {
			return 0, fmt.Errorf("could not update key pair %d: %w", kp.ID, err)
		}

		if res.MatchedCount == 1 {
			return kp.ID, nil
		}
	}

	if kp.ID == 0 {
		next, err := m.nextID(ctx)
		if err != nil {
			return 0, err
		}

		kp.ID = next
	}

	if _, err := m.col().InsertOne(ctx, toPair(kp)); err != nil {
		return 0, fmt.Errorf("could not insert key pair in db: %w", err)
	}

	return kp.ID, nil
}

func (m *Mongo) nextID(ctx context.Context) (int, error) {
	var p mongoPair

	err := m.col().FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.M{"id": -1})).Decode(&p)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return 1, nil
	}

	if err != nil {
		return 0, fmt.Errorf("could not determine next key pair id: %w", err)
	}

	return p.ID + 1, nil
}
