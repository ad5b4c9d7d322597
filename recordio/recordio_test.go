package recordio

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, n int) (recPath, idxPath string) {
	t.Helper()
	dir := t.TempDir()
	recPath = filepath.Join(dir, "data.rec")
	idxPath = filepath.Join(dir, "data.idx")

	w, err := NewWriter(recPath, idxPath)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		rec := Record{
			ID:    uint64(i),
			Label: int64(i % 7),
			Image: []byte(fmt.Sprintf("image-payload-%d", i)),
		}
		require.NoError(t, w.Append(&rec))
	}
	require.Equal(t, n, w.Count())
	require.NoError(t, w.Close())
	return recPath, idxPath
}

func TestRecordMarshalRoundTrip(t *testing.T) {
	in := Record{ID: 42, Label: -3, Image: []byte{0xff, 0xd8, 0x00}}
	var out Record
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, in, out)
}

func TestReaderRoundTrip(t *testing.T) {
	recPath, idxPath := writeFixture(t, 10)

	r, err := NewReader(ReaderConfig{RecPath: recPath, IdxPath: idxPath})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 10, r.EpochSize())
	assert.Equal(t, 10, r.ShardSize())

	var rec Record
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Next(&rec))
		assert.Equal(t, uint64(i), rec.ID)
		assert.Equal(t, int64(i%7), rec.Label)
		assert.Equal(t, []byte(fmt.Sprintf("image-payload-%d", i)), rec.Image)
	}
	assert.Equal(t, io.EOF, r.Next(&rec))

	r.Reset()
	require.NoError(t, r.Next(&rec))
	assert.Equal(t, uint64(0), rec.ID)
}

func TestReaderShardsPartitionDataset(t *testing.T) {
	const n, numShards = 11, 4
	recPath, idxPath := writeFixture(t, n)

	seen := make(map[uint64]int)
	total := 0
	for shard := 0; shard < numShards; shard++ {
		r, err := NewReader(ReaderConfig{
			RecPath:   recPath,
			IdxPath:   idxPath,
			ShardID:   shard,
			NumShards: numShards,
		})
		require.NoError(t, err)
		assert.Equal(t, n, r.EpochSize(), "epoch size reports the full set")

		var rec Record
		for {
			err := r.Next(&rec)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			seen[rec.ID]++
			total++
		}
		r.Close()
	}

	assert.Equal(t, n, total, "shards cover the dataset exactly once")
	for id, count := range seen {
		assert.Equal(t, 1, count, "record %d read by exactly one shard", id)
	}
}

func TestReaderShuffleIsSeededAndReshuffles(t *testing.T) {
	recPath, idxPath := writeFixture(t, 32)

	order := func(seed int64, epochs int) [][]uint64 {
		r, err := NewReader(ReaderConfig{
			RecPath: recPath, IdxPath: idxPath,
			Shuffle: true, Seed: seed,
		})
		require.NoError(t, err)
		defer r.Close()
		var all [][]uint64
		for e := 0; e < epochs; e++ {
			var ids []uint64
			var rec Record
			for {
				if err := r.Next(&rec); err == io.EOF {
					break
				} else {
					require.NoError(t, err)
				}
				ids = append(ids, rec.ID)
			}
			all = append(all, ids)
			r.Reset()
		}
		return all
	}

	a := order(7, 2)
	b := order(7, 2)
	assert.Equal(t, a, b, "same seed, same order")
	assert.NotEqual(t, a[0], a[1], "reset reshuffles")

	c := order(8, 1)
	assert.NotEqual(t, a[0], c[0], "different seed, different order")
}

func TestReaderRejectsBadShard(t *testing.T) {
	recPath, idxPath := writeFixture(t, 4)
	_, err := NewReader(ReaderConfig{
		RecPath: recPath, IdxPath: idxPath,
		ShardID: 3, NumShards: 2,
	})
	assert.Error(t, err)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	in := Record{ID: 1, Label: 2, Image: []byte("x")}
	buf := in.Marshal()
	// Append an unknown varint field (field 9).
	buf = append(buf, 0x48, 0x07)
	var out Record
	require.NoError(t, out.Unmarshal(buf))
	assert.Equal(t, in, out)
}
