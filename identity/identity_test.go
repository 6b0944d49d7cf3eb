package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonicpow/go-minerid/minerid"
	"github.com/tonicpow/go-minerid/minerid/minertest"
)

func findMinerID(t *testing.T, m *minertest.Miner, height int32, dynamic bool) *minerid.MinerID {
	t.Helper()
	out, err := m.Output(height, dynamic)
	require.NoError(t, err)
	tx, err := minertest.Coinbase(height, out)
	require.NoError(t, err)
	id, ok := minerid.NewScanner().Find(tx, height)
	require.True(t, ok)
	return id
}

func TestRegistryRecord(t *testing.T) {
	r := NewRegistry()
	miner := minertest.NewMiner("pool")

	r.Record(101, findMinerID(t, miner, 101, false))
	r.Record(100, findMinerID(t, miner, 100, false))
	r.Record(105, findMinerID(t, miner, 105, true))

	id, ok := r.Get(miner.ID())
	require.True(t, ok)
	assert.Equal(t, int32(100), id.FirstSeen)
	assert.Equal(t, int32(105), id.LastSeen)
	assert.Equal(t, 3, id.Blocks)
	assert.Equal(t, minerid.PubKeyHex(miner.DynamicKey), id.DynamicMinerID)
	assert.True(t, id.Rotated())
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistryRecordTwice(t *testing.T) {
	r := NewRegistry()
	miner := minertest.NewMiner("pool")
	id := findMinerID(t, miner, 100, false)

	r.Record(100, id)
	r.Record(100, id)
	r.Record(101, findMinerID(t, miner, 101, false))

	got, ok := r.Get(miner.ID())
	require.True(t, ok)
	assert.Equal(t, 2, got.Blocks)
	assert.Equal(t, int32(100), got.FirstSeen)
	assert.Equal(t, int32(101), got.LastSeen)
}

func TestRegistryRotation(t *testing.T) {
	first := minertest.NewMiner("pool")
	second := first.Rotate("pool-2")
	third := second.Rotate("pool-3")

	t.Run("in order", func(t *testing.T) {
		r := NewRegistry()
		r.Record(10, findMinerID(t, first, 10, false))
		r.Record(20, findMinerID(t, second, 20, false))
		r.Record(30, findMinerID(t, third, 30, false))

		for _, key := range []string{first.ID(), second.ID(), third.ID()} {
			state, ok := r.Lookup(key)
			require.True(t, ok)
			assert.Equal(t, third.ID(), state.CurrentMinerID)
			require.Len(t, state.History, 3)
			assert.Equal(t, first.ID(), state.History[0].MinerID)
			assert.Equal(t, second.ID(), state.History[1].MinerID)
		}
	})

	t.Run("out of order", func(t *testing.T) {
		r := NewRegistry()
		r.Record(30, findMinerID(t, third, 30, false))
		r.Record(10, findMinerID(t, first, 10, false))
		r.Record(20, findMinerID(t, second, 20, false))

		state, ok := r.Lookup(first.ID())
		require.True(t, ok)
		assert.Equal(t, third.ID(), state.CurrentMinerID)
		assert.Len(t, state.History, 3)

		all := r.All()
		require.Len(t, all, 3)
		assert.Equal(t, first.ID(), all[0].MinerID)
		assert.Equal(t, third.ID(), all[2].MinerID)
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := NewRegistry().Lookup(first.ID())
		assert.False(t, ok)
	})
}

func TestRegistryConcurrentRecord(t *testing.T) {
	r := NewRegistry()
	miner := minertest.NewMiner("pool")
	ids := make([]*minerid.MinerID, 8)
	for i := range ids {
		ids[i] = findMinerID(t, miner, int32(200+i), false)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(h int32, id *minerid.MinerID) {
			defer wg.Done()
			r.Record(h, id)
		}(int32(200+i), id)
	}
	wg.Wait()

	id, ok := r.Get(miner.ID())
	require.True(t, ok)
	assert.Equal(t, 8, id.Blocks)
	assert.Equal(t, int32(200), id.FirstSeen)
	assert.Equal(t, int32(207), id.LastSeen)
}
