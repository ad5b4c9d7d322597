package pipeline

// Batch is one pipeline's worth of processed images and their labels.
type Batch struct {
	// Device is the GPU index the owning pipeline was built for.
	Device int
	// Data holds BatchSize images in the pipeline's output layout.
	Data []float32
	// Data16 is the half-precision rendering of Data, set when the
	// pipeline dtype is Float16.
	Data16 []uint16
	// Labels holds one class label per image.
	Labels []float32
	// Shape is the per-device data shape, batch dimension first.
	Shape  []int
	Layout Layout
	DType  DType
	// Pad counts trailing samples that only exist to fill the batch.
	Pad int
}

// Size is the number of real samples in the batch.
func (b *Batch) Size() int {
	if len(b.Shape) == 0 {
		return 0
	}
	return b.Shape[0] - b.Pad
}
