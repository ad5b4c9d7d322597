package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/go-vision/distributed"
)

// Config is the full argument surface of the assembly function. The zero
// value plus a training record path is a working single-process setup.
type Config struct {
	// Dataset locations. Explicit paths win; otherwise DataDir plus the
	// train.rec/train.idx and val.rec/val.idx convention applies.
	DataDir      string `yaml:"data_dir"`
	DataTrain    string `yaml:"data_train"`
	DataTrainIdx string `yaml:"data_train_idx"`
	DataVal      string `yaml:"data_val"`
	DataValIdx   string `yaml:"data_val_idx"`

	// BatchSize is the global batch size, divided evenly across workers
	// and their devices.
	BatchSize int `yaml:"batch_size"`
	// ImageShape is "channels,height,width", e.g. "3,224,224".
	ImageShape string `yaml:"image_shape"`
	// InputLayout is the layout the model consumes, NCHW or NHWC; it is
	// the pipelines' output layout.
	InputLayout string `yaml:"input_layout"`
	DType       string `yaml:"dtype"`

	Threads           int `yaml:"data_threads"`
	ValidationThreads int `yaml:"data_validation_threads"`
	PrefetchQueue     int `yaml:"prefetch_queue"`
	// MemoryPadding is the decoder scratch padding in MB.
	MemoryPadding int `yaml:"decoder_memory_padding"`

	// GPUs is a comma separated device list. Empty means: local rank when
	// a coordinator backend is set, CUDA_VISIBLE_DEVICES when present,
	// else the NumGPUs range.
	GPUs    string `yaml:"gpus"`
	NumGPUs int    `yaml:"num_gpus"`

	Synthetic bool `yaml:"synthetic"`
	// NumExamples bounds the training examples per epoch; -1 means the
	// full training set.
	NumExamples int `yaml:"num_examples"`
	NumClasses  int `yaml:"num_classes"`

	ReaderName     string `yaml:"reader_name"`
	SeparateVal    bool   `yaml:"separ_val"`
	SkipValidation bool   `yaml:"no_val"`
	// ValResize scales the validation shorter edge before the crop; zero
	// disables the resize.
	ValResize int `yaml:"data_val_resize"`

	// Backend selects the worker coordinator: "" or "local" for
	// single-process, "env" for launcher environment discovery, "store"
	// to read the layout from the key-value store.
	Backend string `yaml:"backend"`

	// MeanPixel and StdPixel override the default per-channel statistics.
	// Accepts "r,g,b" strings so they can come straight off a flag.
	MeanPixel string `yaml:"mean_pixel"`
	StdPixel  string `yaml:"std_pixel"`

	// RandomCrop toggles crop-window sampling at decode time; when off, a
	// random resized crop is used instead.
	RandomCrop      bool      `yaml:"random_crop"`
	CropAspectRatio []float64 `yaml:"crop_aspect_ratio"`
	CropArea        []float64 `yaml:"crop_area"`
	CropAttempts    int       `yaml:"crop_attempts"`

	// Injected collaborators, never serialized.
	Logger      zerolog.Logger          `yaml:"-"`
	Coordinator distributed.Coordinator `yaml:"-"`
	Store       *distributed.Store      `yaml:"-"`
}

// DefaultConfig mirrors the default argument group.
func DefaultConfig() Config {
	return Config{
		BatchSize:     128,
		ImageShape:    "3,224,224",
		InputLayout:   "NCHW",
		DType:         "float32",
		Threads:       3,
		PrefetchQueue: 3,
		MemoryPadding: 16,
		NumGPUs:       1,
		NumExamples:   -1,
		NumClasses:    1000,
		RandomCrop:    true,
		Logger:        zerolog.Nop(),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("loader: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("loader: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseShape parses a comma separated integer shape such as "3,224,224".
// Empty segments are skipped, so stray commas are harmless.
func ParseShape(s string) ([]int, error) {
	var shape []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("loader: bad shape %q: %w", s, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("loader: non-positive dimension %d in shape %q", n, s)
		}
		shape = append(shape, n)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("loader: empty shape %q", s)
	}
	return shape, nil
}

// parseFloats parses "a,b,c" into float32 values; empty input yields nil so
// downstream defaults apply.
func parseFloats(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 32)
		if err != nil {
			return nil, fmt.Errorf("loader: bad float list %q: %w", s, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func (c *Config) trainPaths() (rec, idx string) {
	rec, idx = c.DataTrain, c.DataTrainIdx
	if rec == "" {
		rec = c.DataDir + "/train.rec"
	}
	if idx == "" {
		idx = c.DataDir + "/train.idx"
	}
	return rec, idx
}

func (c *Config) valPaths() (rec, idx string) {
	rec, idx = c.DataVal, c.DataValIdx
	if rec == "" {
		rec = c.DataDir + "/val.rec"
	}
	if idx == "" {
		idx = c.DataDir + "/val.idx"
	}
	return rec, idx
}

// hasValidation reports whether a validation iterator should be built: an
// explicit validation path is configured, or DataDir holds a val.rec, and
// validation is not skipped.
func (c *Config) hasValidation() bool {
	if c.SkipValidation {
		return false
	}
	if c.DataVal != "" {
		return true
	}
	if c.DataDir == "" {
		return false
	}
	rec, _ := c.valPaths()
	_, err := os.Stat(rec)
	return err == nil
}
