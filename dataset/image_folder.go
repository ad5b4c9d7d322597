// Package dataset scans class-per-subdirectory image trees, the layout the
// ingest tool packs into record files.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageFolder is a dataset rooted at a directory whose subdirectories are
// classes.
type ImageFolder struct {
	imagePaths []string
	labels     []int
	classNames []string
	classToIdx map[string]int
}

// NewImageFolder walks root and collects every image, labelling it by its
// class subdirectory. Class indices follow sorted class-name order so two
// scans of the same tree agree.
func NewImageFolder(root string, extensions []string) (*ImageFolder, error) {
	if len(extensions) == 0 {
		extensions = []string{".jpg", ".jpeg", ".png"}
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", root, err)
	}

	ds := &ImageFolder{classToIdx: make(map[string]int)}
	for _, entry := range dirEntries {
		if !entry.IsDir() {
			continue
		}
		ds.classNames = append(ds.classNames, entry.Name())
	}
	sort.Strings(ds.classNames)
	for i, name := range ds.classNames {
		ds.classToIdx[name] = i
	}

	for _, class := range ds.classNames {
		classDir := filepath.Join(root, class)
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("dataset: read %s: %w", classDir, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := extSet[strings.ToLower(filepath.Ext(f.Name()))]; !ok {
				continue
			}
			ds.imagePaths = append(ds.imagePaths, filepath.Join(classDir, f.Name()))
			ds.labels = append(ds.labels, ds.classToIdx[class])
		}
	}

	if len(ds.imagePaths) == 0 {
		return nil, fmt.Errorf("dataset: no images found in %s", root)
	}
	return ds, nil
}

// Len returns the number of images.
func (d *ImageFolder) Len() int { return len(d.imagePaths) }

// Item returns the image path and class label at index.
func (d *ImageFolder) Item(index int) (string, int, error) {
	if index < 0 || index >= len(d.imagePaths) {
		return "", 0, fmt.Errorf("dataset: index %d out of range [0, %d)", index, len(d.imagePaths))
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of class subdirectories.
func (d *ImageFolder) NumClasses() int { return len(d.classNames) }

// ClassNames returns class names in label order.
func (d *ImageFolder) ClassNames() []string { return d.classNames }
