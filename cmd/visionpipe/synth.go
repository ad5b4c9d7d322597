package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-vision/loader"
)

func synthArgs() []loader.ArgSpec {
	return []loader.ArgSpec{
		{Name: "batch-size", Default: 128, Usage: "global batch size"},
		{Name: "image-shape", Default: "3,224,224", Usage: "target image shape as channels,height,width"},
		{Name: "input-layout", Default: "NCHW", Usage: "model input layout, NCHW or NHWC"},
		{Name: "dtype", Default: "float32", Usage: "output dtype, float32 or float16"},
		{Name: "gpus", Default: "", Usage: "comma separated device list"},
		{Name: "num-classes", Default: 1000, Usage: "number of classes for the fake labels"},
		{Name: "num-examples", Default: 12800, Usage: "epoch budget in samples"},
	}
}

// newSynthCmd drives the synthetic iterator to measure the consumer-side
// ceiling of the iteration protocol.
func newSynthCmd(logger func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Drive the synthetic iterator through one epoch",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()

			flags := cmd.Flags()
			cfg := loader.DefaultConfig()
			cfg.Logger = log
			cfg.Synthetic = true
			cfg.BatchSize, _ = flags.GetInt("batch-size")
			cfg.ImageShape, _ = flags.GetString("image-shape")
			cfg.InputLayout, _ = flags.GetString("input-layout")
			cfg.DType, _ = flags.GetString("dtype")
			cfg.GPUs, _ = flags.GetString("gpus")
			cfg.NumClasses, _ = flags.GetInt("num-classes")
			cfg.NumExamples, _ = flags.GetInt("num-examples")

			train, _, err := loader.Build(cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			samples := 0
			batches := 0
			for {
				out, err := train.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				batches++
				for _, b := range out {
					samples += b.Size()
				}
			}
			elapsed := time.Since(start)
			fmt.Fprintf(cmd.OutOrStdout(), "%d batches, %d samples in %v (%.0f samples/sec)\n",
				batches, samples, elapsed.Round(time.Microsecond), float64(samples)/elapsed.Seconds())
			return nil
		},
	}
	specs := loader.MergeArgs(synthArgs(), loader.DefaultArgs())
	if err := loader.RegisterFlags(cmd.Flags(), specs); err != nil {
		panic(err)
	}
	return cmd
}
