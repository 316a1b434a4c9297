package ethereum

// Only the address validation logic is tested here; the remaining methods are direct calls into the ethcli
// package against a live node.

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressValid(t *testing.T) {
	m := &Manager{}

	assert.True(t, m.AddressValid("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4"))

	assert.False(t, m.AddressValid(""))
	assert.False(t, m.AddressValid("357dd3856d856197c1a000bbAb4aBCB97Dfc92c4"))
	assert.False(t, m.AddressValid("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92"))
	assert.False(t, m.AddressValid("0x357dd3856d856197c1a000bbAb4aBCB97Dfc92zz"))
}
