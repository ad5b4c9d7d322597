package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-vision/recordio"
)

// newInspectCmd dumps record-file statistics: record count, label
// histogram, payload sizes.
func newInspectCmd(logger func() zerolog.Logger) *cobra.Command {
	var (
		recPath string
		idxPath string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a record/index pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recordio.NewReader(recordio.ReaderConfig{
				RecPath: recPath,
				IdxPath: idxPath,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			labels := make(map[int64]int)
			var totalBytes int64
			var rec recordio.Record
			for {
				err := r.Next(&rec)
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				labels[rec.Label]++
				totalBytes += int64(len(rec.Image))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "records:      %d\n", r.EpochSize())
			fmt.Fprintf(cmd.OutOrStdout(), "classes:      %d\n", len(labels))
			fmt.Fprintf(cmd.OutOrStdout(), "image bytes:  %d\n", totalBytes)
			if r.EpochSize() > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "avg per rec:  %d\n", totalBytes/int64(r.EpochSize()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recPath, "rec", "data.rec", "record file")
	cmd.Flags().StringVar(&idxPath, "idx", "data.idx", "index file")
	return cmd
}
