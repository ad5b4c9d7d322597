package iterator

import (
	"fmt"
	"io"

	"github.com/tsawler/go-vision/pipeline"
)

// ClassificationIterator drives one pipeline per device and stops after a
// declared number of samples per epoch.
type ClassificationIterator struct {
	pipes    []Pipeline
	size     int // samples per epoch for this worker, across devices
	consumed int
}

// ClassificationConfig sizes a classification iterator.
type ClassificationConfig struct {
	// Size is the per-worker epoch size across all devices. Ignored when
	// ReaderName is set.
	Size int
	// ReaderName, when non-empty, resolves the epoch size from the
	// pipelines' own shard sizes instead of Size.
	ReaderName string
}

// NewClassification wraps the per-device pipelines. All pipelines must
// share batch size, shape and dtype.
func NewClassification(pipes []Pipeline, cfg ClassificationConfig) (*ClassificationIterator, error) {
	if len(pipes) == 0 {
		return nil, fmt.Errorf("iterator: no pipelines")
	}
	size := cfg.Size
	if cfg.ReaderName != "" || size <= 0 {
		// The pipelines only ever serve their own shards, so the resolved
		// epoch covers this worker's slice of the dataset, not the full set.
		size = 0
		for _, p := range pipes {
			size += p.ShardSize()
		}
	}
	return &ClassificationIterator{pipes: pipes, size: size}, nil
}

// Next gathers one batch from every device pipeline. It returns io.EOF once
// the declared epoch size has been consumed, or when a non-wrapping
// pipeline runs out mid-epoch.
func (it *ClassificationIterator) Next() ([]*pipeline.Batch, error) {
	if it.consumed >= it.size {
		return nil, io.EOF
	}
	batches := make([]*pipeline.Batch, 0, len(it.pipes))
	for _, p := range it.pipes {
		b, err := p.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	for _, b := range batches {
		it.consumed += b.Size()
	}
	return batches, nil
}

// Reset rewinds every pipeline and restarts the sample count.
func (it *ClassificationIterator) Reset() error {
	for _, p := range it.pipes {
		if err := p.Reset(); err != nil {
			return err
		}
	}
	it.consumed = 0
	return nil
}

// Size is the declared per-worker epoch size.
func (it *ClassificationIterator) Size() int { return it.size }

// ProvideData declares the combined data tensor across devices.
func (it *ClassificationIterator) ProvideData() []DataDesc {
	p := it.pipes[0]
	shape := append([]int(nil), p.OutputShape()...)
	shape[0] *= len(it.pipes)
	return []DataDesc{{Name: DataName, Shape: shape, DType: p.DType(), Layout: p.Layout()}}
}

// ProvideLabel declares the combined label tensor across devices.
func (it *ClassificationIterator) ProvideLabel() []DataDesc {
	p := it.pipes[0]
	return []DataDesc{{
		Name:  LabelName,
		Shape: []int{p.BatchSize() * len(it.pipes)},
		DType: pipeline.Float32,
	}}
}
