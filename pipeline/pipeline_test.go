package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/go-vision/recordio"
)

// writeImageFixture packs n tiny JPEGs into a rec/idx pair.
func writeImageFixture(t *testing.T, n, w, h int) (recPath, idxPath string) {
	t.Helper()
	dir := t.TempDir()
	recPath = filepath.Join(dir, "data.rec")
	idxPath = filepath.Join(dir, "data.idx")

	wr, err := recordio.NewWriter(recPath, idxPath)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{R: uint8(40 * i), G: 128, B: uint8(255 - 40*i), A: 255})
			}
		}
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, img, nil))
		rec := recordio.Record{ID: uint64(i), Label: int64(i % 3), Image: buf.Bytes()}
		require.NoError(t, wr.Append(&rec))
	}
	require.NoError(t, wr.Close())
	return recPath, idxPath
}

func testAug() AugmentConfig {
	return AugmentConfig{
		CropShape:    [2]int{8, 8},
		OutputLayout: NCHW,
	}
}

func TestTrainPipelineProducesFullBatches(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 10, 16, 16)

	p, err := NewTrain(
		Config{BatchSize: 4, NumThreads: 2, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		testAug(), zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 10, p.EpochSize())
	assert.Equal(t, []int{4, 3, 8, 8}, p.OutputShape())
	assert.Equal(t, DefaultReaderName, p.ReaderName())

	// Train pipelines wrap around, so every batch is full.
	for i := 0; i < 5; i++ {
		b, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, 0, b.Pad)
		assert.Equal(t, 4, b.Size())
		assert.Len(t, b.Data, 4*3*8*8)
		assert.Len(t, b.Labels, 4)
		for _, l := range b.Labels {
			assert.Contains(t, []float32{0, 1, 2}, l)
		}
	}
}

func TestPipelineRepeatsDecodeError(t *testing.T) {
	dir := t.TempDir()
	recPath := filepath.Join(dir, "data.rec")
	idxPath := filepath.Join(dir, "data.idx")
	wr, err := recordio.NewWriter(recPath, idxPath)
	require.NoError(t, err)
	rec := recordio.Record{ID: 0, Label: 0, Image: []byte("not an image")}
	require.NoError(t, wr.Append(&rec))
	require.NoError(t, wr.Close())

	p, err := NewVal(
		Config{BatchSize: 1, NumThreads: 1, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		testAug(), zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Next()
	require.Error(t, err)

	// The producer has stopped; the error must latch instead of leaving
	// the next call waiting on an empty prefetch queue forever.
	next := make(chan error, 1)
	go func() {
		_, err := p.Next()
		next <- err
	}()
	select {
	case err2 := <-next:
		assert.Equal(t, err.Error(), err2.Error())
	case <-time.After(3 * time.Second):
		t.Fatal("second Next call blocked after a decode error")
	}

	// Reset clears the terminal state and reaches the bad record again.
	require.NoError(t, p.Reset())
	_, err = p.Next()
	assert.Error(t, err)
}

func TestValPipelineShortFinalBatch(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 10, 16, 16)

	p, err := NewVal(
		Config{BatchSize: 4, NumThreads: 2, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		testAug(), zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	sizes := []int{}
	for {
		b, err := p.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, b.Size())
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)

	// Exhausted until reset.
	_, err = p.Next()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, p.Reset())
	b, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, 4, b.Size())
}

func TestValPipelineIsDeterministic(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 6, 16, 16)

	run := func(opts ...ValOption) []float32 {
		p, err := NewVal(
			Config{BatchSize: 3, NumThreads: 2, DeviceID: 0},
			ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
			testAug(), zerolog.Nop(), opts...)
		require.NoError(t, err)
		defer p.Close()
		var all []float32
		for {
			b, err := p.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			all = append(all, b.Data...)
		}
		return all
	}

	plain := run()
	cached := run(WithSampleCache(16))
	assert.Equal(t, plain, cached, "cache does not change results")

	// Second epoch through the cache matches too.
	p, err := NewVal(
		Config{BatchSize: 3, NumThreads: 2, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		testAug(), zerolog.Nop(), WithSampleCache(16))
	require.NoError(t, err)
	defer p.Close()
	var first, second []float32
	for {
		b, err := p.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		first = append(first, b.Data...)
	}
	require.NoError(t, p.Reset())
	for {
		b, err := p.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		second = append(second, b.Data...)
	}
	assert.Equal(t, first, second)
}

func TestTrainPipelineFloat16(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 4, 16, 16)

	aug := testAug()
	aug.DType = Float16
	p, err := NewTrain(
		Config{BatchSize: 2, NumThreads: 1, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		aug, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	b, err := p.Next()
	require.NoError(t, err)
	require.Len(t, b.Data16, len(b.Data))
	assert.Equal(t, Float16, b.DType)
	assert.Equal(t, Float16Bits(b.Data[0]), b.Data16[0])
}

func TestTrainPipelineShardedReadersDisjoint(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 8, 16, 16)

	labels := func(shard int) map[float32]int {
		p, err := NewVal(
			Config{BatchSize: 4, NumThreads: 1, DeviceID: shard},
			ReaderConfig{RecPath: recPath, IdxPath: idxPath, ShardID: shard, NumShards: 2},
			testAug(), zerolog.Nop())
		require.NoError(t, err)
		defer p.Close()
		counts := map[float32]int{}
		total := 0
		for {
			b, err := p.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			for i := 0; i < b.Size(); i++ {
				counts[b.Labels[i]]++
				total++
			}
		}
		assert.Equal(t, 4, total, "each shard holds half the records")
		return counts
	}
	labels(0)
	labels(1)
}

func TestPipelinePadOutputShape(t *testing.T) {
	recPath, idxPath := writeImageFixture(t, 2, 16, 16)

	aug := testAug()
	aug.PadOutput = true
	aug.OutputLayout = NHWC
	p, err := NewVal(
		Config{BatchSize: 2, NumThreads: 1, DeviceID: 0},
		ReaderConfig{RecPath: recPath, IdxPath: idxPath, NumShards: 1},
		aug, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []int{2, 8, 8, 4}, p.OutputShape())
	b, err := p.Next()
	require.NoError(t, err)
	assert.Len(t, b.Data, 2*8*8*4)
}
