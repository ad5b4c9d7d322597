package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-vision/loader"
)

// benchArgs is the task-specific option group; the shared pipeline options
// are merged in from the defaults, with these taking precedence on
// conflicts.
func benchArgs() []loader.ArgSpec {
	return []loader.ArgSpec{
		{Name: "data-train", Default: "", Usage: "training record file"},
		{Name: "data-train-idx", Default: "", Usage: "training index file"},
		{Name: "data-dir", Default: "", Usage: "dataset directory (train.rec/train.idx convention)"},
		{Name: "batch-size", Default: 128, Usage: "global batch size"},
		{Name: "image-shape", Default: "3,224,224", Usage: "target image shape as channels,height,width"},
		{Name: "input-layout", Default: "NCHW", Usage: "model input layout, NCHW or NHWC"},
		{Name: "dtype", Default: "float32", Usage: "output dtype, float32 or float16"},
		{Name: "gpus", Default: "", Usage: "comma separated device list"},
		{Name: "batches", Default: 50, Usage: "number of batches to run"},
		{Name: "config", Default: "", Usage: "YAML config file, overridden by explicit flags"},
	}
}

func newBenchCmd(logger func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive a training pipeline and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			cfg, err := configFromFlags(cmd, log)
			if err != nil {
				return err
			}

			train, _, err := loader.Build(cfg)
			if err != nil {
				return err
			}

			batches, _ := cmd.Flags().GetInt("batches")
			start := time.Now()
			images := 0
			for i := 0; i < batches; i++ {
				out, err := train.Next()
				if err == io.EOF {
					if err := train.Reset(); err != nil {
						return err
					}
					continue
				}
				if err != nil {
					return err
				}
				for _, b := range out {
					images += b.Size()
				}
			}
			elapsed := time.Since(start)
			fmt.Fprintf(cmd.OutOrStdout(), "%d images in %v (%.1f images/sec)\n",
				images, elapsed.Round(time.Millisecond), float64(images)/elapsed.Seconds())
			return nil
		},
	}
	specs := loader.MergeArgs(benchArgs(), loader.DefaultArgs())
	if err := loader.RegisterFlags(cmd.Flags(), specs); err != nil {
		panic(err)
	}
	return cmd
}

// configFromFlags resolves the loader config: YAML file first, explicit
// flags on top.
func configFromFlags(cmd *cobra.Command, log zerolog.Logger) (loader.Config, error) {
	cfg := loader.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := loader.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.Logger = log

	flags := cmd.Flags()
	if flags.Changed("data-train") {
		cfg.DataTrain, _ = flags.GetString("data-train")
	}
	if flags.Changed("data-train-idx") {
		cfg.DataTrainIdx, _ = flags.GetString("data-train-idx")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("image-shape") {
		cfg.ImageShape, _ = flags.GetString("image-shape")
	}
	if flags.Changed("input-layout") {
		cfg.InputLayout, _ = flags.GetString("input-layout")
	}
	if flags.Changed("dtype") {
		cfg.DType, _ = flags.GetString("dtype")
	}
	if flags.Changed("gpus") {
		cfg.GPUs, _ = flags.GetString("gpus")
	}
	if flags.Changed("data-threads") {
		cfg.Threads, _ = flags.GetInt("data-threads")
	}
	if flags.Changed("prefetch-queue") {
		cfg.PrefetchQueue, _ = flags.GetInt("prefetch-queue")
	}
	if flags.Changed("decoder-memory-padding") {
		cfg.MemoryPadding, _ = flags.GetInt("decoder-memory-padding")
	}
	if flags.Changed("num-examples") {
		cfg.NumExamples, _ = flags.GetInt("num-examples")
	}
	if flags.Changed("reader-name") {
		cfg.ReaderName, _ = flags.GetString("reader-name")
	}
	if flags.Changed("separ-val") {
		cfg.SeparateVal, _ = flags.GetBool("separ-val")
	}
	return cfg, nil
}
