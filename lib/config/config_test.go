package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/config"
)

func TestDefaults(t *testing.T) {
	conf, err := config.ExtractConfiguration("")
	require.NoError(t, err)

	assert.Equal(t, config.DBTypeDefault, conf.DBType)
	assert.Equal(t, config.PortDefault, conf.Port)
	assert.Equal(t, config.MbConnDefault, conf.MbConn)
	assert.Equal(t, config.IntervalDefault, conf.Interval)
	require.Len(t, conf.Handlers, 1)
	assert.Equal(t, "bitcoind", conf.Handlers[0].Name)
}

func TestFromFile(t *testing.T) {
	raw := `{
		"dbtype": "postgresql",
		"dbconn": "postgres://coins@localhost/keys",
		"port": "4040",
		"interval": 15,
		"handlers": [
			{"name": "golos", "coins": [{"symbol": "GOLOS", "our_account": "exchange"}]},
			{"name": "bitcoind", "disabled": true, "coins": [{"symbol": "BTC"}]}
		],
		"settings": {"GOLOS": {"host": "10.1.1.1"}}
	}`

	fn := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(fn, []byte(raw), 0o600))

	conf, err := config.ExtractConfiguration(fn)
	require.NoError(t, err)

	assert.Equal(t, "postgresql", conf.DBType)
	assert.Equal(t, "4040", conf.Port)
	assert.Equal(t, 15, conf.Interval)

	require.Len(t, conf.Handlers, 2)
	assert.True(t, conf.Handlers[1].Disabled)

	c := conf.Handlers[0].Coins[0].Coin()
	assert.Equal(t, "GOLOS", c.Symbol)
	assert.Equal(t, "GOLOS", c.SymbolID) // defaulted
	assert.Equal(t, "exchange", c.OurAccount)

	assert.Equal(t, "10.1.1.1", conf.Settings["GOLOS"]["host"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CH_DBTYPE", "mongodb")
	t.Setenv("CH_MBCONN", "amqp://broker:5672")
	t.Setenv("CH_HANDLERS", `[{"name":"ethereum","coins":[{"symbol":"ETH"}]}]`)

	conf, err := config.ExtractConfiguration("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb", conf.DBType)
	assert.Equal(t, "amqp://broker:5672", conf.MbConn)
	require.Len(t, conf.Handlers, 1)
	assert.Equal(t, "ethereum", conf.Handlers[0].Name)

	t.Setenv("CH_HANDLERS", `not json`)

	_, err = config.ExtractConfiguration("")
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := config.ExtractConfiguration("/does/not/exist.json")
	assert.Error(t, err)
}
