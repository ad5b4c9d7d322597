package iterator

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/tsawler/go-vision/pipeline"
)

// Synthetic yields the same pre-generated random batch per device until an
// epoch-size budget of samples is spent. It stands in for a real dataset
// when none is configured, so training loops exercise everything but the
// disk.
type Synthetic struct {
	batchSize int
	epochSize int
	cur       int
	batches   []*pipeline.Batch
	dataShape []int
	dtype     pipeline.DType
	layout    pipeline.Layout
}

// SyntheticConfig describes the fake dataset.
type SyntheticConfig struct {
	NumClasses int
	// DataShape is the per-device data shape, batch dimension first.
	DataShape []int
	EpochSize int
	DType     pipeline.DType
	Devices   []int
	Layout    pipeline.Layout
	Seed      int64
}

// NewSynthetic generates one batch of uniform [-1, 1) data and random class
// labels per device. Every Next call returns the same tensors.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if len(cfg.DataShape) < 2 {
		return nil, fmt.Errorf("iterator: synthetic data shape needs a batch dimension, got %v", cfg.DataShape)
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("iterator: synthetic iterator needs at least one device")
	}
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = 1000
	}
	batchSize := cfg.DataShape[0]
	n := batchSize
	for _, d := range cfg.DataShape[1:] {
		n *= d
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rng.Float64()*2 - 1)
	}
	labels := make([]float32, batchSize)
	for i := range labels {
		labels[i] = float32(rng.Intn(cfg.NumClasses))
	}

	s := &Synthetic{
		batchSize: batchSize,
		epochSize: cfg.EpochSize,
		dataShape: cfg.DataShape,
		dtype:     cfg.DType,
		layout:    cfg.Layout,
	}
	for _, dev := range cfg.Devices {
		b := &pipeline.Batch{
			Device: dev,
			Data:   data,
			Labels: labels,
			Shape:  cfg.DataShape,
			Layout: cfg.Layout,
			DType:  cfg.DType,
		}
		if cfg.DType == pipeline.Float16 {
			b.Data16 = pipeline.Float16Slice(data)
		}
		s.batches = append(s.batches, b)
	}
	return s, nil
}

// Next returns the pre-generated batches until the sample budget is spent,
// then io.EOF.
func (s *Synthetic) Next() ([]*pipeline.Batch, error) {
	if s.cur >= s.epochSize {
		return nil, io.EOF
	}
	s.cur += s.batchSize * len(s.batches)
	return s.batches, nil
}

// Reset returns the iterator to the start of the budget; the following Next
// reproduces the first batch unchanged.
func (s *Synthetic) Reset() error {
	s.cur = 0
	return nil
}

func (s *Synthetic) ProvideData() []DataDesc {
	shape := append([]int(nil), s.dataShape...)
	shape[0] *= len(s.batches)
	return []DataDesc{{Name: DataName, Shape: shape, DType: s.dtype, Layout: s.layout}}
}

func (s *Synthetic) ProvideLabel() []DataDesc {
	return []DataDesc{{
		Name:  LabelName,
		Shape: []int{s.batchSize * len(s.batches)},
		DType: pipeline.Float32,
	}}
}
