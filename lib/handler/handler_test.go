package handler_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxch/coinhandler/lib/handler"
)

func TestToPrecision(t *testing.T) {
	got, err := handler.ToPrecision(decimal.RequireFromString("0.12345"), 3)
	require.NoError(t, err)
	assert.Equal(t, "0.123", got.String())

	// Rounding is always down, never up.
	got, err = handler.ToPrecision(decimal.RequireFromString("0.9999"), 3)
	require.NoError(t, err)
	assert.Equal(t, "0.999", got.String())

	// Below one unit of precision.
	_, err = handler.ToPrecision(decimal.RequireFromString("0.0004"), 3)
	assert.ErrorIs(t, err, handler.ErrAmountTooSmall)

	_, err = handler.ToPrecision(decimal.Zero, 8)
	assert.ErrorIs(t, err, handler.ErrAmountTooSmall)
}

// fakeManager drives SendOrIssue without a backend.
type fakeManager struct {
	handler.Manager

	sendErr error
	issued  bool
}

func (f *fakeManager) Send(amount decimal.Decimal, address, from, memo string) (*handler.SendResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	return &handler.SendResult{TxID: "sent", SendType: "send", Amount: amount}, nil
}

func (f *fakeManager) Issue(amount decimal.Decimal, address, memo string) (*handler.SendResult, error) {
	f.issued = true

	return &handler.SendResult{TxID: "issued", SendType: "issue", Amount: amount}, nil
}

func TestSendOrIssue(t *testing.T) {
	one := decimal.NewFromInt(1)

	// Plain success never issues.
	m := &fakeManager{}
	res, err := handler.SendOrIssue(m, one, "bob", "", "")
	require.NoError(t, err)
	assert.Equal(t, "send", res.SendType)
	assert.False(t, m.issued)

	// Insufficient balance falls back to issuing.
	m = &fakeManager{sendErr: handler.ErrNotEnoughBalance}
	res, err = handler.SendOrIssue(m, one, "bob", "", "")
	require.NoError(t, err)
	assert.Equal(t, "issue", res.SendType)
	assert.True(t, m.issued)

	// Any other failure propagates unchanged.
	boom := errors.New("node unreachable")
	m = &fakeManager{sendErr: boom}
	_, err = handler.SendOrIssue(m, one, "bob", "", "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.issued)
}
