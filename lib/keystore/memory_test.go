package keystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/keystore"
)

func testPairs() []coin.KeyPair {
	return []coin.KeyPair{
		{Network: "golos", Account: "someguy123", KeyType: "active", PrivateKey: "5Jq1"},
		{Network: "golos", Account: "someguy123", KeyType: "memo", PrivateKey: "5Jq2"},
		{Network: "steem", Account: "otherguy", KeyType: "active", PrivateKey: "5Jq3", Used: true},
	}
}

func TestMemoryGet(t *testing.T) {
	ks := keystore.NewMemory(testPairs()...)

	kp, err := ks.Get(keystore.Filter{Network: "golos", Account: "someguy123", KeyTypeIn: []string{"active", "owner"}})
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.Equal(t, "5Jq1", kp.PrivateKey)
	assert.Equal(t, 1, kp.ID)

	// No match is not an error.
	kp, err = ks.Get(keystore.Filter{Network: "golos", Account: "nobody"})
	require.NoError(t, err)
	assert.Nil(t, kp)
}

func TestMemoryFind(t *testing.T) {
	ks := keystore.NewMemory(testPairs()...)

	used := false
	got, err := ks.Find(keystore.Filter{Used: &used})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ks.Find(keystore.Filter{Network: "steem"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Used)
}

func TestMemorySet(t *testing.T) {
	ks := keystore.NewMemory(testPairs()...)

	// Insert assigns the next sequential ID.
	id, err := ks.Set(coin.KeyPair{Network: "golos", Account: "newguy", KeyType: "active"})
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	// Set with a known ID updates in place.
	_, err = ks.Set(coin.KeyPair{ID: 1, Network: "golos", Account: "someguy123", KeyType: "active", Used: true})
	require.NoError(t, err)

	kp, err := ks.Get(keystore.Filter{ID: 1})
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.True(t, kp.Used)

	got, err := ks.Find(keystore.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestMemorySetNoIDCollision(t *testing.T) {
	ks := keystore.NewMemory()

	// An insert arriving with its own ID is kept as given.
	id, err := ks.Set(coin.KeyPair{ID: 5, Network: "golos", Account: "someguy123", KeyType: "active"})
	require.NoError(t, err)
	assert.Equal(t, 5, id)

	// Auto-assignment continues past it instead of colliding.
	id, err = ks.Set(coin.KeyPair{Network: "golos", Account: "newguy", KeyType: "active"})
	require.NoError(t, err)
	assert.Equal(t, 6, id)

	got, err := ks.Find(keystore.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestProcessStore(t *testing.T) {
	keystore.SetStore(nil)

	_, err := keystore.GetStore()
	assert.ErrorIs(t, err, keystore.ErrNoStore)

	ks := keystore.NewMemory()
	keystore.SetStore(ks)

	got, err := keystore.GetStore()
	require.NoError(t, err)
	assert.Equal(t, keystore.Store(ks), got)
}
