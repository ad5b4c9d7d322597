package loader

import (
	"fmt"

	"github.com/tsawler/go-vision/device"
	"github.com/tsawler/go-vision/distributed"
	"github.com/tsawler/go-vision/iterator"
	"github.com/tsawler/go-vision/pipeline"
)

// Build assembles the training and validation iterators for cfg. The
// validation iterator is nil when no validation set is configured, when
// validation is skipped, and always in synthetic mode.
func Build(cfg Config) (train, val iterator.Iterator, err error) {
	logger := cfg.Logger

	targetShape, err := ParseShape(cfg.ImageShape)
	if err != nil {
		return nil, nil, err
	}
	if len(targetShape) != 3 {
		return nil, nil, fmt.Errorf("loader: image shape must be channels,height,width, got %q", cfg.ImageShape)
	}

	layout, err := pipeline.ParseLayout(cfg.InputLayout)
	if err != nil {
		return nil, nil, err
	}
	dtype, err := pipeline.ParseDType(cfg.DType)
	if err != nil {
		return nil, nil, err
	}

	coord, err := resolveCoordinator(&cfg)
	if err != nil {
		return nil, nil, err
	}
	gpus, err := resolveGPUs(&cfg, coord)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Synthetic {
		logger.Info().Msg("using synthetic data")
		return buildSynthetic(&cfg, targetShape, layout, dtype, gpus)
	}
	logger.Info().Int("num_gpus", len(gpus)).Msg("using record pipelines")

	rank := coord.Rank()
	nWrk := coord.NumWorkers()
	numShards := distributed.NumShards(nWrk, len(gpus))

	readerName := cfg.ReaderName
	if readerName == "" {
		readerName = pipeline.DefaultReaderName
	}

	batchSize := cfg.BatchSize / nWrk / len(gpus)
	if batchSize <= 0 {
		return nil, nil, fmt.Errorf("loader: global batch size %d too small for %d workers x %d GPUs",
			cfg.BatchSize, nWrk, len(gpus))
	}

	// crop is (width, height): the target shape is (C, H, W).
	crop := [2]int{targetShape[2], targetShape[1]}
	padOutput := targetShape[0] == 4
	memoryPadding := cfg.MemoryPadding * 1024 * 1024

	mean, err := parseFloats(cfg.MeanPixel)
	if err != nil {
		return nil, nil, err
	}
	std, err := parseFloats(cfg.StdPixel)
	if err != nil {
		return nil, nil, err
	}

	aug := pipeline.AugmentConfig{
		MemoryPadding: memoryPadding,
		CropShape:     crop,
		OutputLayout:  layout,
		PadOutput:     padOutput,
		DType:         dtype,
		Mean:          mean,
		Std:           std,
	}
	if cfg.RandomCrop {
		rc := pipeline.RandomCropConfig{Attempts: cfg.CropAttempts}
		if len(cfg.CropAspectRatio) == 2 {
			rc.AspectRatio = [2]float64{cfg.CropAspectRatio[0], cfg.CropAspectRatio[1]}
		}
		if len(cfg.CropArea) == 2 {
			rc.Area = [2]float64{cfg.CropArea[0], cfg.CropArea[1]}
		}
		aug.RandomCrop = &rc
	} else {
		aug.RandomResize = true
	}

	recPath, idxPath := cfg.trainPaths()
	trainPipes := make([]iterator.Pipeline, 0, len(gpus))
	for i, gpu := range gpus {
		p, err := pipeline.NewTrain(
			pipeline.Config{
				BatchSize:     batchSize,
				NumThreads:    cfg.Threads,
				DeviceID:      gpu,
				PrefetchDepth: cfg.PrefetchQueue,
			},
			pipeline.ReaderConfig{
				RecPath:    recPath,
				IdxPath:    idxPath,
				ShardID:    distributed.ShardID(rank, i, len(gpus)),
				NumShards:  numShards,
				ReaderName: readerName,
			},
			aug, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("loader: train pipeline for GPU %d: %w", gpu, err)
		}
		trainPipes = append(trainPipes, p)
	}

	epochSize := trainPipes[0].EpochSize()
	numExamples := cfg.NumExamples
	if numExamples < 0 {
		numExamples = epochSize
	}
	if numExamples < epochSize {
		logger.Warn().
			Int("num_examples", numExamples).
			Int("epoch_size", epochSize).
			Msg("training uses fewer examples than the full training set")
	}

	trainIter, err := iterator.NewClassification(trainPipes, iterator.ClassificationConfig{
		Size:       distributed.SplitSize(numExamples, rank, nWrk),
		ReaderName: cfg.ReaderName,
	})
	if err != nil {
		return nil, nil, err
	}

	if !cfg.hasValidation() {
		return trainIter, nil, nil
	}

	valThreads := cfg.ValidationThreads
	if valThreads <= 0 {
		valThreads = cfg.Threads
	}
	valAug := aug
	valAug.RandomCrop = nil
	valAug.RandomResize = false
	valAug.ResizeShorter = cfg.ValResize

	valRec, valIdx := cfg.valPaths()
	valPipes := make([]iterator.Pipeline, 0, len(gpus))
	for i, gpu := range gpus {
		shardID := distributed.ShardID(rank, i, len(gpus))
		shards := numShards
		if cfg.SeparateVal {
			shardID, shards = distributed.SeparateValShard()
		}
		p, err := pipeline.NewVal(
			pipeline.Config{
				BatchSize:     batchSize,
				NumThreads:    valThreads,
				DeviceID:      gpu,
				PrefetchDepth: cfg.PrefetchQueue,
			},
			pipeline.ReaderConfig{
				RecPath:    valRec,
				IdxPath:    valIdx,
				ShardID:    shardID,
				NumShards:  shards,
				ReaderName: readerName,
			},
			valAug, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("loader: validation pipeline for GPU %d: %w", gpu, err)
		}
		valPipes = append(valPipes, p)
	}

	valSize := valPipes[0].EpochSize()
	if !cfg.SeparateVal {
		valSize = distributed.SplitSize(valSize, rank, nWrk)
	}
	valIter, err := iterator.NewClassification(valPipes, iterator.ClassificationConfig{
		Size:       valSize,
		ReaderName: cfg.ReaderName,
	})
	if err != nil {
		return nil, nil, err
	}
	return trainIter, valIter, nil
}

func buildSynthetic(cfg *Config, targetShape []int, layout pipeline.Layout, dtype pipeline.DType, gpus []int) (iterator.Iterator, iterator.Iterator, error) {
	// The synthetic batch is laid out the way the model will read it.
	img := layout.ImageShape(targetShape[0], targetShape[1], targetShape[2])
	dataShape := append([]int{cfg.BatchSize}, img...)

	epochSize := cfg.NumExamples
	if epochSize < 0 {
		return nil, nil, fmt.Errorf("loader: synthetic mode needs an explicit num_examples budget")
	}
	train, err := iterator.NewSynthetic(iterator.SyntheticConfig{
		NumClasses: cfg.NumClasses,
		DataShape:  dataShape,
		EpochSize:  epochSize,
		DType:      dtype,
		Devices:    gpus,
		Layout:     layout,
	})
	if err != nil {
		return nil, nil, err
	}
	return train, nil, nil
}

// resolveCoordinator picks the worker coordinator for the configured
// backend, defaulting to single-process.
func resolveCoordinator(cfg *Config) (distributed.Coordinator, error) {
	if cfg.Coordinator != nil {
		return cfg.Coordinator, nil
	}
	switch cfg.Backend {
	case "", "local":
		return distributed.Single{}, nil
	case "env":
		return distributed.NewEnvCoordinator()
	case "store":
		if cfg.Store == nil {
			return nil, fmt.Errorf("loader: backend %q needs a store", cfg.Backend)
		}
		return distributed.NewStoreCoordinator(cfg.Store), nil
	default:
		return nil, fmt.Errorf("loader: unknown backend %q", cfg.Backend)
	}
}

// resolveGPUs picks the device list: explicit config first, then the local
// rank under a multi-worker backend, then the environment, then the NumGPUs
// range.
func resolveGPUs(cfg *Config, coord distributed.Coordinator) ([]int, error) {
	if cfg.GPUs != "" {
		gpus, err := device.ParseList(cfg.GPUs)
		if err != nil {
			return nil, err
		}
		if len(gpus) > 0 {
			return gpus, nil
		}
	}
	if cfg.Backend == "env" || cfg.Backend == "store" {
		return []int{coord.LocalRank()}, nil
	}
	if ids, ok, err := device.VisibleDevices(); err != nil {
		return nil, err
	} else if ok && len(ids) > 0 {
		return ids, nil
	}
	n := cfg.NumGPUs
	if n <= 0 {
		n = 1
	}
	return device.Range(n), nil
}
