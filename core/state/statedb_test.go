package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0xaa00000000000000000000000000000000000001")
	addrB = common.HexToAddress("0xbb00000000000000000000000000000000000002")
)

func TestSnapshotRevertBalance(t *testing.T) {
	s := New()
	s.AddBalance(addrA, uint256.NewInt(100))

	snap := s.Snapshot()
	s.SubBalance(addrA, uint256.NewInt(30))
	s.AddBalance(addrB, uint256.NewInt(30))
	require.Equal(t, uint64(70), s.GetBalance(addrA).Uint64())

	s.RevertToSnapshot(snap)
	assert.Equal(t, uint64(100), s.GetBalance(addrA).Uint64())
	assert.True(t, s.GetBalance(addrB).IsZero())
	assert.False(t, s.Exist(addrB), "account created after snapshot must vanish")
}

func TestSnapshotRevertStorage(t *testing.T) {
	s := New()
	key := common.Hash{0x01}
	s.SetState(addrA, key, common.Hash{0xaa})

	snap := s.Snapshot()
	s.SetState(addrA, key, common.Hash{0xbb})
	s.RevertToSnapshot(snap)

	assert.Equal(t, common.Hash{0xaa}, s.GetState(addrA, key))
}

func TestCommittedState(t *testing.T) {
	s := New()
	key := common.Hash{0x01}
	s.SetStorage(addrA, key, common.Hash{0xaa})

	s.SetState(addrA, key, common.Hash{0xbb})
	assert.Equal(t, common.Hash{0xbb}, s.GetState(addrA, key))
	assert.Equal(t, common.Hash{0xaa}, s.GetCommittedState(addrA, key),
		"committed view must not see in-transaction writes")
}

func TestNestedSnapshots(t *testing.T) {
	s := New()
	s.SetNonce(addrA, 1)

	outer := s.Snapshot()
	s.SetNonce(addrA, 2)
	inner := s.Snapshot()
	s.SetNonce(addrA, 3)

	s.RevertToSnapshot(inner)
	require.Equal(t, uint64(2), s.GetNonce(addrA))
	s.RevertToSnapshot(outer)
	require.Equal(t, uint64(1), s.GetNonce(addrA))
}

func TestRevertLogs(t *testing.T) {
	s := New()
	s.AddLog(&types.Log{Address: addrA})

	snap := s.Snapshot()
	s.AddLog(&types.Log{Address: addrB})
	require.Len(t, s.Logs(), 2)

	s.RevertToSnapshot(snap)
	require.Len(t, s.Logs(), 1)
	assert.Equal(t, addrA, s.Logs()[0].Address)
}

func TestRevertRefund(t *testing.T) {
	s := New()
	s.AddRefund(4800)
	snap := s.Snapshot()
	s.AddRefund(4800)
	s.SubRefund(2400)
	s.RevertToSnapshot(snap)
	assert.Equal(t, uint64(4800), s.GetRefund())
}

func TestRevertAccessList(t *testing.T) {
	s := New()
	slot := common.Hash{0x07}

	snap := s.Snapshot()
	s.AddAddressToAccessList(addrA)
	s.AddSlotToAccessList(addrA, slot)

	require.True(t, s.AddressInAccessList(addrA))
	_, slotOk := s.SlotInAccessList(addrA, slot)
	require.True(t, slotOk)

	s.RevertToSnapshot(snap)
	assert.False(t, s.AddressInAccessList(addrA))
	addrOk, slotOk := s.SlotInAccessList(addrA, slot)
	assert.False(t, addrOk)
	assert.False(t, slotOk)
}

func TestSelfDestruct(t *testing.T) {
	s := New()
	s.AddBalance(addrA, uint256.NewInt(42))

	snap := s.Snapshot()
	s.SelfDestruct(addrA)
	require.True(t, s.HasSelfDestructed(addrA))
	require.True(t, s.GetBalance(addrA).IsZero())
	require.True(t, s.Exist(addrA), "self-destructed account persists until transaction end")

	s.RevertToSnapshot(snap)
	require.False(t, s.HasSelfDestructed(addrA))
	require.Equal(t, uint64(42), s.GetBalance(addrA).Uint64())

	s.SelfDestruct(addrA)
	s.Finalise()
	assert.False(t, s.Exist(addrA))
}

func TestCodeHash(t *testing.T) {
	s := New()
	assert.Equal(t, common.Hash{}, s.GetCodeHash(addrA), "nonexistent account has zero hash")

	s.CreateAccount(addrA)
	assert.Equal(t, types.EmptyCodeHash, s.GetCodeHash(addrA))

	code := []byte{0x60, 0x00}
	s.SetCode(addrA, code)
	assert.Equal(t, code, s.GetCode(addrA))
	assert.Equal(t, 2, s.GetCodeSize(addrA))
	assert.NotEqual(t, types.EmptyCodeHash, s.GetCodeHash(addrA))
}

func TestEmpty(t *testing.T) {
	s := New()
	assert.True(t, s.Empty(addrA))

	s.CreateAccount(addrA)
	assert.True(t, s.Empty(addrA))

	s.SetNonce(addrA, 1)
	assert.False(t, s.Empty(addrA))
}

func TestFinaliseResetsTransactionState(t *testing.T) {
	s := New()
	key := common.Hash{0x01}
	s.SetState(addrA, key, common.Hash{0xaa})
	s.AddRefund(100)
	s.AddAddressToAccessList(addrA)

	s.Finalise()

	assert.Equal(t, common.Hash{0xaa}, s.GetCommittedState(addrA, key),
		"finalise promotes dirty storage to committed")
	assert.Zero(t, s.GetRefund())
	assert.False(t, s.AddressInAccessList(addrA))
}
