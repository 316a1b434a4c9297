package handler_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/coin"
	"github.com/openxch/coinhandler/lib/handler"
)

func TestStreamBatches(t *testing.T) {
	var (
		calls    int
		released int
	)

	all := []coin.Deposit{{TxID: "a"}, {TxID: "b"}, {TxID: "c"}, {TxID: "d"}, {TxID: "e"}}

	fetch := func(batch int) ([]coin.Deposit, bool, error) {
		calls++

		if len(all) == 0 {
			return nil, false, nil
		}

		if batch > len(all) {
			batch = len(all)
		}

		out := all[:batch]
		all = all[batch:]

		return out, len(all) > 0, nil
	}

	st := handler.NewStream(2, fetch, func() { released++ })
	defer st.Close()

	var got []string
	for st.Next() {
		got = append(got, st.Deposit().TxID)
	}

	require.NoError(t, st.Err())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, 3, calls)
	// Exhaustion releases the session exactly once, the deferred Close is a no-op.
	assert.Equal(t, 1, released)
}

func TestStreamAbandon(t *testing.T) {
	released := 0

	fetch := func(batch int) ([]coin.Deposit, bool, error) {
		return []coin.Deposit{{TxID: "a"}, {TxID: "b"}}, true, nil
	}

	st := handler.NewStream(2, fetch, func() { released++ })

	require.True(t, st.Next())
	st.Close()
	st.Close()

	assert.False(t, st.Next())
	assert.Equal(t, 1, released)
}

func TestStreamError(t *testing.T) {
	released := 0
	boom := errors.New("backend down")

	st := handler.NewStream(2, func(int) ([]coin.Deposit, bool, error) { return nil, true, boom },
		func() { released++ })

	assert.False(t, st.Next())
	assert.ErrorIs(t, st.Err(), boom)
	assert.Equal(t, 1, released)
}
