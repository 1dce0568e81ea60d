package compiler

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMemoizes(t *testing.T) {
	c := NewCache()
	code := []byte{byte(PUSH1), 1, byte(STOP)}
	hash := common.Hash{0x01}

	p1, err := c.Get(hash, code)
	require.NoError(t, err)
	p2, err := c.Get(hash, code)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestCacheZeroHashBypass(t *testing.T) {
	c := NewCache()
	code := []byte{byte(PUSH1), 1, byte(STOP)}

	p1, err := c.Get(common.Hash{}, code)
	require.NoError(t, err)
	p2, err := c.Get(common.Hash{}, code)
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
}

func TestCacheTranslationFailure(t *testing.T) {
	c := NewCache()
	_, err := c.Get(common.Hash{0x02}, []byte{byte(PUSH32)})
	require.ErrorIs(t, err, ErrInvalidBytecode)
}
