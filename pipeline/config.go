package pipeline

// Default per-channel pixel statistics, the ImageNet mean and standard
// deviation scaled to the 0..255 pixel range. Constructors fall back to
// these when a config leaves Mean/Std empty; nothing reads them ambiently.
var (
	DefaultMeanPixel = []float32{255 * 0.485, 255 * 0.456, 255 * 0.406}
	DefaultStdPixel  = []float32{255 * 0.229, 255 * 0.224, 255 * 0.225}
)

// DefaultReaderName is the name pipelines report their reader under when
// the caller does not pick one.
const DefaultReaderName = "Reader"

// seedBase offsets the per-device pipeline seed: seed = seedBase + deviceID.
const seedBase = 12

// Config carries the execution knobs shared by all pipelines.
type Config struct {
	BatchSize     int
	NumThreads    int // decode workers, default 3
	DeviceID      int
	PrefetchDepth int   // prepared batches ahead of consumption, default 3
	Seed          int64 // 0 means seedBase + DeviceID
	FillLastBatch bool  // wrap around instead of emitting a short final batch
}

func (c *Config) applyDefaults() {
	if c.NumThreads <= 0 {
		c.NumThreads = 3
	}
	if c.PrefetchDepth <= 0 {
		c.PrefetchDepth = 3
	}
	if c.Seed == 0 {
		c.Seed = seedBase + int64(c.DeviceID)
	}
}

// ReaderConfig tells a pipeline where its shard of the dataset lives.
type ReaderConfig struct {
	RecPath       string
	IdxPath       string
	ShardID       int
	NumShards     int
	RandomShuffle bool
	ReaderName    string
}

func (r *ReaderConfig) applyDefaults() {
	if r.ReaderName == "" {
		r.ReaderName = DefaultReaderName
	}
}

// RandomCropConfig bounds the sampled decode crop window.
type RandomCropConfig struct {
	AspectRatio [2]float64 // width/height bounds
	Area        [2]float64 // crop area as a fraction of the source image
	Attempts    int
}

// DefaultRandomCrop mirrors the conventional inception-style crop sampling.
func DefaultRandomCrop() RandomCropConfig {
	return RandomCropConfig{
		AspectRatio: [2]float64{0.75, 1.33},
		Area:        [2]float64{0.08, 1.0},
		Attempts:    10,
	}
}

func (c *RandomCropConfig) applyDefaults() {
	d := DefaultRandomCrop()
	if c.AspectRatio == [2]float64{} {
		c.AspectRatio = d.AspectRatio
	}
	if c.Area == [2]float64{} {
		c.Area = d.Area
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
}

// AugmentConfig describes the decode / resize / crop-mirror-normalize chain.
type AugmentConfig struct {
	// MemoryPadding pre-sizes decode scratch buffers, in bytes.
	MemoryPadding int
	// CropShape is the output (width, height) every image ends up at.
	CropShape [2]int
	// OutputLayout orders the emitted tensor.
	OutputLayout Layout
	// PadOutput emits a zeroed fourth channel.
	PadOutput bool
	DType     DType
	// RandomCrop enables crop-window sampling at decode time.
	RandomCrop *RandomCropConfig
	// RandomResize applies a random resized crop instead of a plain resize.
	RandomResize bool
	// ResizeShorter, when positive, scales the shorter edge to this length
	// before the crop. Validation pipelines use it; zero disables.
	ResizeShorter int

	Mean []float32
	Std  []float32
}

func (a *AugmentConfig) applyDefaults() {
	if len(a.Mean) == 0 {
		a.Mean = DefaultMeanPixel
	}
	if len(a.Std) == 0 {
		a.Std = DefaultStdPixel
	}
	if a.RandomCrop != nil {
		a.RandomCrop.applyDefaults()
	}
}

// channels is the emitted channel count.
func (a *AugmentConfig) channels() int {
	if a.PadOutput {
		return 4
	}
	return 3
}
