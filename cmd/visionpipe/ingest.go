package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-vision/dataset"
	"github.com/tsawler/go-vision/recordio"
)

// newIngestCmd packs a class-per-subdirectory image tree into a record file
// and its index.
func newIngestCmd(logger func() zerolog.Logger) *cobra.Command {
	var (
		root    string
		recPath string
		idxPath string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pack an image folder into a record/index pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()

			ds, err := dataset.NewImageFolder(root, nil)
			if err != nil {
				return err
			}
			log.Info().
				Int("images", ds.Len()).
				Int("classes", ds.NumClasses()).
				Str("root", root).
				Msg("scanned image folder")

			w, err := recordio.NewWriter(recPath, idxPath)
			if err != nil {
				return err
			}
			defer w.Close()

			for i := 0; i < ds.Len(); i++ {
				path, label, err := ds.Item(i)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				rec := recordio.Record{ID: uint64(i), Label: int64(label), Image: data}
				if err := w.Append(&rec); err != nil {
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}
			log.Info().Int("records", w.Count()).Str("rec", recPath).Str("idx", idxPath).Msg("ingest complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "image folder root (class per subdirectory)")
	cmd.Flags().StringVar(&recPath, "rec", "data.rec", "output record file")
	cmd.Flags().StringVar(&idxPath, "idx", "data.idx", "output index file")
	cmd.MarkFlagRequired("root")
	return cmd
}
