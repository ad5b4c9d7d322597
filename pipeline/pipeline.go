package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-vision/recordio"
)

// processFn turns one decoded record into a processed sample written to dst.
// Each decode worker owns its Decoder; rng is seeded per sample in read
// order so results do not depend on worker scheduling.
type processFn func(dec *Decoder, rec *recordio.Record, rng *rand.Rand, dst []float32) error

type result struct {
	batch *Batch
	err   error
}

// base is the executor shared by the train and validation pipelines: a
// shard-aware reader feeding a pool of decode workers, with finished
// batches staged in a prefetch queue.
type base struct {
	cfg    Config
	rd     ReaderConfig
	aug    AugmentConfig
	reader *recordio.Reader
	cmn    CropMirrorNormalize
	logger zerolog.Logger

	process processFn
	rng     *rand.Rand // per-sample seed source, read order

	prefetch chan result
	cancel   context.CancelFunc
	done     chan struct{}
	err      error // terminal state, sticky until Reset
}

func newBase(cfg Config, rd ReaderConfig, aug AugmentConfig, shuffle bool, logger zerolog.Logger) (*base, error) {
	cfg.applyDefaults()
	rd.applyDefaults()
	aug.applyDefaults()
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("pipeline: batch size must be positive, got %d", cfg.BatchSize)
	}
	if aug.CropShape[0] <= 0 || aug.CropShape[1] <= 0 {
		return nil, fmt.Errorf("pipeline: invalid crop shape %v", aug.CropShape)
	}

	reader, err := recordio.NewReader(recordio.ReaderConfig{
		RecPath:   rd.RecPath,
		IdxPath:   rd.IdxPath,
		ShardID:   rd.ShardID,
		NumShards: rd.NumShards,
		Shuffle:   shuffle,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	p := &base{
		cfg:    cfg,
		rd:     rd,
		aug:    aug,
		reader: reader,
		cmn: CropMirrorNormalize{
			Crop:      aug.CropShape,
			Mean:      aug.Mean,
			Std:       aug.Std,
			Layout:    aug.OutputLayout,
			PadOutput: aug.PadOutput,
		},
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	logger.Debug().
		Int("device", cfg.DeviceID).
		Int("shard", rd.ShardID).
		Int("num_shards", rd.NumShards).
		Int("epoch_size", reader.EpochSize()).
		Msg("pipeline reader opened")
	return p, nil
}

// EpochSize reports the full dataset size, across all shards, under the
// pipeline's reader name.
func (p *base) EpochSize() int { return p.reader.EpochSize() }

// ShardSize reports how many records this pipeline's shard holds.
func (p *base) ShardSize() int { return p.reader.ShardSize() }

func (p *base) Device() int        { return p.cfg.DeviceID }
func (p *base) BatchSize() int     { return p.cfg.BatchSize }
func (p *base) DType() DType       { return p.aug.DType }
func (p *base) Layout() Layout     { return p.aug.OutputLayout }
func (p *base) ReaderName() string { return p.rd.ReaderName }

// OutputShape is the per-device data shape, batch dimension first.
func (p *base) OutputShape() []int {
	img := p.aug.OutputLayout.ImageShape(p.aug.channels(), p.aug.CropShape[1], p.aug.CropShape[0])
	return append([]int{p.cfg.BatchSize}, img...)
}

// LabelShape is the per-device label shape.
func (p *base) LabelShape() []int { return []int{p.cfg.BatchSize} }

// Next returns the next prefetched batch, or io.EOF once the shard is
// exhausted (never, for wrapping train pipelines). Any error ends the
// epoch: the producer has stopped, so the error is latched and repeated
// until Reset.
func (p *base) Next() (*Batch, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.prefetch == nil {
		p.start()
	}
	res := <-p.prefetch
	if res.err != nil {
		p.err = res.err
		return nil, res.err
	}
	return res.batch, nil
}

// Reset stops prefetching, rewinds the reader and clears the terminal
// state. The next Next call starts a fresh epoch.
func (p *base) Reset() error {
	p.stop()
	p.reader.Reset()
	p.err = nil
	return nil
}

// Close releases the prefetch workers and the underlying files.
func (p *base) Close() error {
	p.stop()
	return p.reader.Close()
}

func (p *base) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.prefetch = make(chan result, p.cfg.PrefetchDepth)
	p.done = make(chan struct{})
	go p.produce(ctx)
}

func (p *base) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.prefetch = nil
}

func (p *base) produce(ctx context.Context) {
	defer close(p.done)
	for {
		b, err := p.buildBatch()
		select {
		case p.prefetch <- result{batch: b, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// buildBatch reads one batch worth of records and processes them with the
// worker pool. A wrapping pipeline restarts the reader mid-batch; otherwise
// the final batch may come back short, with Pad set.
func (p *base) buildBatch() (*Batch, error) {
	n := p.cfg.BatchSize
	records := make([]recordio.Record, 0, n)
	seeds := make([]int64, 0, n)
	for len(records) < n {
		var rec recordio.Record
		err := p.reader.Next(&rec)
		if err == io.EOF {
			if p.cfg.FillLastBatch && p.reader.ShardSize() > 0 {
				p.reader.Reset()
				continue
			}
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		seeds = append(seeds, p.rng.Int63())
	}
	if len(records) == 0 {
		return nil, io.EOF
	}

	sampleLen := p.cmn.OutputLen()
	batch := &Batch{
		Device: p.cfg.DeviceID,
		Data:   make([]float32, n*sampleLen),
		Labels: make([]float32, n),
		Shape:  p.OutputShape(),
		Layout: p.aug.OutputLayout,
		DType:  p.aug.DType,
		Pad:    n - len(records),
	}

	if err := p.processAll(records, seeds, batch, sampleLen); err != nil {
		return nil, err
	}
	if p.aug.DType == Float16 {
		batch.Data16 = Float16Slice(batch.Data)
	}
	return batch, nil
}

func (p *base) processAll(records []recordio.Record, seeds []int64, batch *Batch, sampleLen int) error {
	workers := p.cfg.NumThreads
	if workers > len(records) {
		workers = len(records)
	}
	jobs := make(chan int, len(records))
	errs := make([]error, len(records))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec := NewDecoder(p.aug.MemoryPadding)
			for i := range jobs {
				rec := &records[i]
				rng := rand.New(rand.NewSource(seeds[i]))
				dst := batch.Data[i*sampleLen : (i+1)*sampleLen]
				if err := p.process(dec, rec, rng, dst); err != nil {
					errs[i] = err
					continue
				}
				batch.Labels[i] = float32(rec.Label)
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("pipeline: record %d: %w", records[i].ID, err)
		}
	}
	return nil
}
