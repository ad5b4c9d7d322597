package pipeline

import (
	"image"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-vision/recordio"
)

// TrainPipeline runs the training graph: shard read, randomized decode,
// resize, crop-mirror-normalize with a coin-flip horizontal mirror.
type TrainPipeline struct {
	*base
	coin CoinFlip
}

// NewTrain builds a training pipeline over one shard. Records are always
// shuffled and the final batch of an epoch wraps around to stay full.
func NewTrain(cfg Config, rd ReaderConfig, aug AugmentConfig, logger zerolog.Logger) (*TrainPipeline, error) {
	cfg.FillLastBatch = true
	rd.RandomShuffle = true
	b, err := newBase(cfg, rd, aug, true, logger)
	if err != nil {
		return nil, err
	}
	p := &TrainPipeline{base: b, coin: CoinFlip{Probability: 0.5}}
	b.process = p.processRecord
	return p, nil
}

func (p *TrainPipeline) processRecord(dec *Decoder, rec *recordio.Record, rng *rand.Rand, dst []float32) error {
	cw, ch := p.aug.CropShape[0], p.aug.CropShape[1]

	var img *image.RGBA
	var err error
	switch {
	case p.aug.RandomCrop != nil:
		img, err = dec.DecodeCrop(rec.Image, p.aug.RandomCrop, rng)
		if err != nil {
			return err
		}
		img = ResizeBilinear(img, cw, ch)
	case p.aug.RandomResize:
		img, err = dec.Decode(rec.Image)
		if err != nil {
			return err
		}
		crop := DefaultRandomCrop()
		img = RandomResizedCrop(img, cw, ch, &crop, rng)
	default:
		img, err = dec.Decode(rec.Image)
		if err != nil {
			return err
		}
		img = ResizeBilinear(img, cw, ch)
	}

	return p.cmn.Run(img, p.coin.Flip(rng), dst)
}
