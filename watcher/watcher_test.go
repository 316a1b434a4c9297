package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
	"github.com/openxch/coinhandler/lib/registry"
	"github.com/openxch/coinhandler/lib/settings"
)

type stubLoader struct {
	mu       sync.Mutex
	deposits []coin.Deposit
}

func (s *stubLoader) Load(int) error { return nil }

func (s *stubLoader) ListTxs(batch int) *handler.Stream {
	s.mu.Lock()
	page := append([]coin.Deposit(nil), s.deposits...)
	s.mu.Unlock()

	sent := false

	return handler.NewStream(batch, func(int) ([]coin.Deposit, bool, error) {
		if sent {
			return nil, false, nil
		}

		sent = true

		return page, false, nil
	}, nil)
}

func (s *stubLoader) add(d coin.Deposit) {
	s.mu.Lock()
	s.deposits = append(s.deposits, d)
	s.mu.Unlock()
}

// stubBroker records published deposits.
type stubBroker struct {
	mu        sync.Mutex
	published map[string][]coin.Deposit
}

func (b *stubBroker) Setup() error { return nil }

func (b *stubBroker) Close() error { return nil }

func (b *stubBroker) SendDeposits(symbol string, ds []coin.Deposit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.published == nil {
		b.published = map[string][]coin.Deposit{}
	}

	b.published[symbol] = append(b.published[symbol], ds...)

	return nil
}

func (b *stubBroker) SendResult(string, handler.SendResult) error { return nil }

func (b *stubBroker) GetDeposits(string, *sync.Mutex) (<-chan coin.Deposit, <-chan error, error) {
	return nil, nil, nil
}

func testRegistry(t *testing.T, l *stubLoader) *registry.Registry {
	t.Helper()

	reg := registry.New()
	reg.Register("stub", registry.Module{
		NewLoader: func([]coin.Coin, settings.Map, handler.Kwargs) (handler.Loader, error) { return l, nil },
	})
	require.NoError(t, reg.AddHandlerCoin("stub", coin.New("TST")))

	return reg
}

func TestScanPublishesOnlyNewDeposits(t *testing.T) {
	l := &stubLoader{}
	l.add(coin.Deposit{Coin: "TST", TxID: "a", Vout: 0})
	l.add(coin.Deposit{Coin: "TST", TxID: "a", Vout: 1})

	mb := &stubBroker{}
	w := New(testRegistry(t, l), mb, time.Minute, 100, 50)

	w.Scan()
	require.Len(t, mb.published["TST"], 2)

	// A second round with unchanged history publishes nothing new.
	w.Scan()
	assert.Len(t, mb.published["TST"], 2)

	// Only the fresh deposit of the third round goes out.
	l.add(coin.Deposit{Coin: "TST", TxID: "b", Vout: 0})
	w.Scan()
	require.Len(t, mb.published["TST"], 3)
	assert.Equal(t, "b", mb.published["TST"][2].TxID)
}

func TestScanKeepsSiblingCoinsApart(t *testing.T) {
	// One handler covering two coins, the way a golos module covers GOLOS and GBG. The loader enumerates
	// whatever coins it is built with, so each deposit must surface only under its own symbol.
	byCoin := map[string][]coin.Deposit{
		"CAT": {{Coin: "CAT", TxID: "cat-1"}},
		"DOG": {{Coin: "DOG", TxID: "dog-1"}},
	}

	reg := registry.New()
	reg.Register("stub", registry.Module{
		NewLoader: func(cs []coin.Coin, _ settings.Map, _ handler.Kwargs) (handler.Loader, error) {
			l := &stubLoader{}
			for _, c := range cs {
				l.deposits = append(l.deposits, byCoin[c.Symbol]...)
			}

			return l, nil
		},
	})
	require.NoError(t, reg.AddHandlerCoin("stub", coin.New("CAT")))
	require.NoError(t, reg.AddHandlerCoin("stub", coin.New("DOG")))

	mb := &stubBroker{}
	w := New(reg, mb, time.Minute, 100, 50)

	w.Scan()

	require.Len(t, mb.published["CAT"], 1)
	assert.Equal(t, "cat-1", mb.published["CAT"][0].TxID)
	require.Len(t, mb.published["DOG"], 1)
	assert.Equal(t, "dog-1", mb.published["DOG"][0].TxID)
}

func TestStartStop(t *testing.T) {
	l := &stubLoader{}
	l.add(coin.Deposit{Coin: "TST", TxID: "a"})

	mb := &stubBroker{}
	w := New(testRegistry(t, l), mb, time.Hour, 100, 50)

	go w.Start()

	// The initial scan runs before the first tick.
	require.Eventually(t, func() bool {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		return len(mb.published["TST"]) == 1
	}, time.Second, 10*time.Millisecond)

	w.Stop()
}
