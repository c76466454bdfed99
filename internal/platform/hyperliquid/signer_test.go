package hyperliquid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSignerDerivesAddress(t *testing.T) {
	// Well-known address for private key 0x...01.
	s, err := NewSigner("0x0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", s.Address().Hex())

	_, err = NewSigner("not-a-key")
	require.Error(t, err)
}

func TestSignActionShape(t *testing.T) {
	s, err := NewSigner("0x0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)

	var connectionID [32]byte
	connectionID[31] = 0x7f

	sig, err := s.SignAction(connectionID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig.R, "0x"))
	assert.Len(t, sig.R, 66)
	assert.Len(t, sig.S, 66)
	assert.Contains(t, []byte{27, 28}, sig.V)

	// Signing is deterministic for the same action hash.
	again, err := s.SignAction(connectionID)
	require.NoError(t, err)
	assert.Equal(t, sig, again)
}

func TestActionHashIsNonceSensitive(t *testing.T) {
	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset: 4, IsBuy: true, Price: "3000.5", Size: "1.5",
			Type: orderTypeWire{Limit: &limitWire{Tif: "Ioc"}},
		}},
		Grouping: "na",
	}

	h1, err := actionHash(action, 1700000000000)
	require.NoError(t, err)
	h2, err := actionHash(action, 1700000000001)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
