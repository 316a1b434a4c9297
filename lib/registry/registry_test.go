package registry_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

type fakeLoader struct {
	coins []coin.Coin
}

func (f *fakeLoader) Load(txCount int) error { return nil }

func (f *fakeLoader) ListTxs(batch int) *handler.Stream {
	return handler.NewStream(batch, func(int) ([]coin.Deposit, bool, error) { return nil, false, nil }, nil)
}

type fakeManager struct {
	coin coin.Coin
}

func (f *fakeManager) AddressValid(string) bool { return true }

func (f *fakeManager) GetDeposit() (string, string, error) { return "address", "x", nil }

func (f *fakeManager) Balance(string, string, bool) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeManager) Send(amount decimal.Decimal, address, from, memo string) (*handler.SendResult, error) {
	return &handler.SendResult{TxID: "t", Coin: f.coin.Symbol, Amount: amount, SendType: "send"}, nil
}

func (f *fakeManager) Issue(amount decimal.Decimal, address, memo string) (*handler.SendResult, error) {
	return nil, handler.ErrIssueNotSupported
}

func (f *fakeManager) Health() handler.Health { return handler.Health{Name: "fake"} }

func (f *fakeManager) HealthTest() bool { return true }

// fakeModule counts factory and hook invocations.
type fakeModule struct {
	loaders  int
	managers int
	reloads  int
	fail     bool
}

func (f *fakeModule) module(coins ...coin.Coin) registry.Module {
	return registry.Module{
		NewLoader: func(cs []coin.Coin, _ settings.Map, _ handler.Kwargs) (handler.Loader, error) {
			if f.fail {
				return nil, errors.New("backend unreachable")
			}

			f.loaders++

			return &fakeLoader{coins: cs}, nil
		},
		NewManager: func(c coin.Coin, _ settings.Map, _ handler.Kwargs) (handler.Manager, error) {
			if f.fail {
				return nil, errors.New("backend unreachable")
			}

			f.managers++

			return &fakeManager{coin: c}, nil
		},
		Reload: func() { f.reloads++ },
		Coins:  coins,
	}
}

func TestReloadAndLookup(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	r.Reload()

	assert.True(t, r.HasLoader("TESTCOIN"))
	assert.True(t, r.HasManager("TESTCOIN"))

	l, err := r.GetLoader("TESTCOIN")
	require.NoError(t, err)
	assert.NotNil(t, l)

	m, err := r.GetManager("TESTCOIN")
	require.NoError(t, err)
	assert.NotNil(t, m)

	// Unindexed symbols fail lookup but never the Has accessors.
	_, err = r.GetManager("NOPE")
	assert.ErrorIs(t, err, handler.ErrTokenNotFound)
	assert.False(t, r.HasManager("NOPE"))
}

func TestEnableDisable(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	r.Reload()
	require.True(t, r.HasLoader("TESTCOIN"))

	require.NoError(t, r.DisableHandler("fake"))
	r.Reload()
	assert.False(t, r.HasLoader("TESTCOIN"))
	assert.False(t, r.HasManager("TESTCOIN"))

	require.NoError(t, r.EnableHandler("fake"))
	r.Reload()
	assert.True(t, r.HasLoader("TESTCOIN"))
	assert.True(t, r.HasManager("TESTCOIN"))

	assert.ErrorIs(t, r.EnableHandler("unknown"), handler.ErrHandlerNotFound)
}

func TestAddHandlerCoinIdempotent(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())

	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	r.Reload()
	assert.Equal(t, 1, mod.managers)
}

func TestLoaderBuiltPerCoin(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("CAT")))
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("DOG")))

	r.Reload()
	assert.Equal(t, 2, mod.loaders)

	// Each loader covers exactly the coin it is indexed under, never its handler siblings.
	for _, sym := range []string{"CAT", "DOG"} {
		l, err := r.GetLoader(sym)
		require.NoError(t, err)

		fl, ok := l.(*fakeLoader)
		require.True(t, ok)
		require.Len(t, fl.coins, 1)
		assert.Equal(t, sym, fl.coins[0].Symbol)
	}
}

func TestGetLoadersCopies(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	ls := r.GetLoaders()
	delete(ls, "TESTCOIN")

	ms := r.GetManagers()
	ms["TESTCOIN"] = nil

	// Mutating the returned maps leaves the published index intact.
	assert.True(t, r.HasLoader("TESTCOIN"))
	assert.True(t, r.HasManager("TESTCOIN"))
	assert.Len(t, r.GetManagers()["TESTCOIN"], 1)
}

func TestAddHandlerSymbol(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module(coin.New("CAT")))

	require.NoError(t, r.AddHandlerSymbol("fake", "CAT"))
	assert.ErrorIs(t, r.AddHandlerSymbol("fake", "DOG"), handler.ErrTokenNotFound)

	r.Reload()
	assert.True(t, r.HasManager("CAT"))
}

func TestConfigureCoin(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module(coin.New("CAT")))

	r.ConfigureCoin("CAT", map[string]interface{}{"host": "10.0.0.9"})
	r.ConfigureCoin("CAT", map[string]interface{}{"port": 1234})

	// Disjoint key sets accumulate.
	s := r.Settings()["CAT"]
	assert.Equal(t, "10.0.0.9", s["host"])
	assert.Equal(t, 1234, s["port"])

	// Overlapping keys keep the latest value.
	r.ConfigureCoin("CAT", map[string]interface{}{"host": "10.0.0.10"})
	assert.Equal(t, "10.0.0.10", r.Settings()["CAT"]["host"])

	// Matching fields on the catalog coin are updated too.
	c, err := r.Coin("CAT")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10", c.Host)
	assert.Equal(t, 1234, c.Port)
}

func TestAutoFirstReload(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	// No explicit Reload: the first lookup triggers it.
	assert.True(t, r.HasManager("TESTCOIN"))
	assert.Equal(t, 1, mod.managers)
}

func TestReloadHookOnlyOnReReload(t *testing.T) {
	r := registry.New()
	mod := &fakeModule{}
	r.Register("fake", mod.module())
	require.NoError(t, r.AddHandlerCoin("fake", coin.New("TESTCOIN")))

	r.Reload()
	assert.Equal(t, 0, mod.reloads)

	r.Reload()
	assert.Equal(t, 1, mod.reloads)
}

func TestPartialFailureIsolation(t *testing.T) {
	r := registry.New()

	bad := &fakeModule{fail: true}
	r.Register("bad", bad.module())
	require.NoError(t, r.AddHandlerCoin("bad", coin.New("BADCOIN")))

	good := &fakeModule{}
	r.Register("good", good.module())
	require.NoError(t, r.AddHandlerCoin("good", coin.New("TESTCOIN")))

	r.Reload()

	// The failing handler is skipped wholesale, the good one still loads.
	assert.False(t, r.HasManager("BADCOIN"))
	assert.True(t, r.HasManager("TESTCOIN"))
}
