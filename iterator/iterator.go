// Package iterator adapts built pipelines to the batch-iteration protocol a
// training loop consumes: declared data/label descriptors, one batch per
// device per step, io.EOF at epoch end, and Reset for the next epoch.
package iterator

import (
	"github.com/tsawler/go-vision/pipeline"
)

// Conventional descriptor names expected by classification training loops.
const (
	DataName  = "data"
	LabelName = "softmax_label"
)

// DataDesc declares the shape, element type and layout of one provided
// tensor. The shape's batch dimension covers all devices together.
type DataDesc struct {
	Name   string
	Shape  []int
	DType  pipeline.DType
	Layout pipeline.Layout
}

// Iterator is the protocol both real and synthetic iterators satisfy.
type Iterator interface {
	// Next yields one batch per device, or io.EOF at epoch end.
	Next() ([]*pipeline.Batch, error)
	Reset() error
	ProvideData() []DataDesc
	ProvideLabel() []DataDesc
}

// Pipeline is the slice of a built pipeline the iterator needs.
type Pipeline interface {
	Next() (*pipeline.Batch, error)
	Reset() error
	EpochSize() int
	ShardSize() int
	Device() int
	BatchSize() int
	OutputShape() []int
	LabelShape() []int
	DType() pipeline.DType
	Layout() pipeline.Layout
	ReaderName() string
}
