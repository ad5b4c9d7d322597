package pipeline

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-vision/recordio"
)

// ValPipeline runs the evaluation graph: deterministic decode, optional
// shorter-edge resize, center crop and normalize. No mirror, no shuffle,
// and the final batch of the epoch may come back short.
type ValPipeline struct {
	*base
	cache *sampleCache
}

// ValOption tweaks a validation pipeline.
type ValOption func(*ValPipeline)

// WithSampleCache caches up to maxSize processed samples by record id.
// Evaluation is deterministic, so repeated epochs skip decoding entirely
// for cached records.
func WithSampleCache(maxSize int) ValOption {
	return func(p *ValPipeline) {
		if maxSize > 0 {
			p.cache = newSampleCache(maxSize)
		}
	}
}

// NewVal builds a validation pipeline over one shard.
func NewVal(cfg Config, rd ReaderConfig, aug AugmentConfig, logger zerolog.Logger, opts ...ValOption) (*ValPipeline, error) {
	cfg.FillLastBatch = false
	rd.RandomShuffle = false
	aug.RandomCrop = nil
	b, err := newBase(cfg, rd, aug, false, logger)
	if err != nil {
		return nil, err
	}
	p := &ValPipeline{base: b}
	for _, opt := range opts {
		opt(p)
	}
	b.process = p.processRecord
	return p, nil
}

func (p *ValPipeline) processRecord(dec *Decoder, rec *recordio.Record, _ *rand.Rand, dst []float32) error {
	if p.cache != nil {
		if data, ok := p.cache.get(rec.ID); ok {
			copy(dst, data)
			return nil
		}
	}

	img, err := dec.Decode(rec.Image)
	if err != nil {
		return err
	}
	if p.aug.ResizeShorter > 0 {
		img = ResizeShorter(img, p.aug.ResizeShorter)
	}
	cw, ch := p.aug.CropShape[0], p.aug.CropShape[1]
	if img.Rect.Dx() < cw || img.Rect.Dy() < ch {
		// Source smaller than the crop: scale up to cover it.
		shorter := cw
		if ch > cw {
			shorter = ch
		}
		img = ResizeShorter(img, shorter)
	}
	if err := p.cmn.Run(img, false, dst); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.put(rec.ID, dst)
	}
	return nil
}

// CacheStats describes the sample cache, for diagnostics.
func (p *ValPipeline) CacheStats() string {
	if p.cache == nil {
		return "cache: disabled"
	}
	return p.cache.stats()
}
