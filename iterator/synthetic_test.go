package iterator

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/go-vision/pipeline"
)

func TestSyntheticBatchBudget(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 10,
		DataShape:  []int{10, 3, 4, 4},
		EpochSize:  100,
		Devices:    []int{0},
	})
	require.NoError(t, err)

	// ceil(100 / (10*1)) = 10 successful calls, the 11th signals the end.
	for i := 0; i < 10; i++ {
		batches, err := s.Next()
		require.NoError(t, err, "call %d", i+1)
		require.Len(t, batches, 1)
		assert.Equal(t, 10, batches[0].Size())
	}
	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSyntheticUnevenBudget(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 10,
		DataShape:  []int{10, 3, 2, 2},
		EpochSize:  95,
		Devices:    []int{0},
	})
	require.NoError(t, err)

	n := 0
	for {
		if _, err := s.Next(); err == io.EOF {
			break
		}
		n++
	}
	assert.Equal(t, 10, n, "ceil(95/10) batches")
}

func TestSyntheticMultiDevice(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 5,
		DataShape:  []int{4, 3, 2, 2},
		EpochSize:  32,
		Devices:    []int{0, 1},
	})
	require.NoError(t, err)

	batches, err := s.Next()
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 0, batches[0].Device)
	assert.Equal(t, 1, batches[1].Device)
	assert.Equal(t, batches[0].Data, batches[1].Data, "devices share the pre-generated batch")

	// 32 samples at 8 per call: 4 calls.
	n := 1
	for {
		if _, err := s.Next(); err == io.EOF {
			break
		}
		n++
	}
	assert.Equal(t, 4, n)
}

func TestSyntheticResetReproducesFirstBatch(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 10,
		DataShape:  []int{2, 3, 2, 2},
		EpochSize:  4,
		Devices:    []int{0},
		Seed:       5,
	})
	require.NoError(t, err)

	first, err := s.Next()
	require.NoError(t, err)
	firstData := append([]float32(nil), first[0].Data...)
	firstLabels := append([]float32(nil), first[0].Labels...)

	for {
		if _, err := s.Next(); err == io.EOF {
			break
		}
	}
	require.NoError(t, s.Reset())

	again, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, firstData, again[0].Data)
	assert.Equal(t, firstLabels, again[0].Labels)
	assert.Equal(t, first[0].Shape, again[0].Shape)
}

func TestSyntheticDescriptors(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 10,
		DataShape:  []int{8, 3, 4, 4},
		EpochSize:  64,
		DType:      pipeline.Float16,
		Devices:    []int{0, 1},
		Layout:     pipeline.NCHW,
	})
	require.NoError(t, err)

	data := s.ProvideData()
	require.Len(t, data, 1)
	assert.Equal(t, DataName, data[0].Name)
	assert.Equal(t, []int{16, 3, 4, 4}, data[0].Shape, "batch dimension spans devices")
	assert.Equal(t, pipeline.Float16, data[0].DType)

	label := s.ProvideLabel()
	require.Len(t, label, 1)
	assert.Equal(t, LabelName, label[0].Name)
	assert.Equal(t, []int{16}, label[0].Shape)
	assert.Equal(t, pipeline.Float32, label[0].DType)

	batches, err := s.Next()
	require.NoError(t, err)
	assert.NotEmpty(t, batches[0].Data16, "float16 rendering is pre-generated")
}

func TestSyntheticLabelRange(t *testing.T) {
	s, err := NewSynthetic(SyntheticConfig{
		NumClasses: 3,
		DataShape:  []int{16, 3, 2, 2},
		EpochSize:  16,
		Devices:    []int{0},
	})
	require.NoError(t, err)
	batches, err := s.Next()
	require.NoError(t, err)
	for _, l := range batches[0].Labels {
		assert.GreaterOrEqual(t, l, float32(0))
		assert.Less(t, l, float32(3))
	}
}
