package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/config"
	"github.com/openxch/coinhandler/lib/settings"
)

func TestInitIgnoresUnknownModules(t *testing.T) {
	reg := Init([]config.HandlerConfig{
		{Name: "nosuchcoin", Coins: []config.CoinConfig{{Symbol: "XXX"}}},
		{Name: "bitcoind", Coins: []config.CoinConfig{{Symbol: "BTC"}}},
	}, nil, "")

	c, err := reg.Coin("BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", c.Symbol)

	_, err = reg.Coin("XXX")
	assert.Error(t, err)
}

func TestInitDisabledHandlerBuildsNothing(t *testing.T) {
	reg := Init([]config.HandlerConfig{
		{Name: "bitcoind", Disabled: true, Coins: []config.CoinConfig{{Symbol: "BTC"}}},
	}, nil, "")

	assert.False(t, reg.HasLoader("BTC"))
	assert.False(t, reg.HasManager("BTC"))
}

func TestInitSeedReachesEthereumSettings(t *testing.T) {
	global := settings.Map{}
	reg := Init([]config.HandlerConfig{
		{Name: "ethereum", Disabled: true, Coins: []config.CoinConfig{{Symbol: "ETH"}}},
	}, global, "00aabb")

	assert.Equal(t, "00aabb", global[settings.Key("ETH")]["seed"])

	c, err := reg.Coin("ETH")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", c.CoinType)

	// An explicit per-coin seed wins over the service-level one.
	global2 := settings.Map{"ETH": {"seed": "c0ffee"}}
	Init([]config.HandlerConfig{
		{Name: "ethereum", Disabled: true, Coins: []config.CoinConfig{{Symbol: "ETH"}}},
	}, global2, "00aabb")

	assert.Equal(t, "c0ffee", global2["ETH"]["seed"])
}
