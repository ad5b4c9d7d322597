package recordio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Writer packs records into a .rec file and tracks byte offsets for the
// companion .idx file. Not safe for concurrent use.
type Writer struct {
	rec     *os.File
	idx     *os.File
	w       *bufio.Writer
	offset  int64
	written int
	closed  bool
}

// NewWriter creates (truncating) the record and index files.
func NewWriter(recPath, idxPath string) (*Writer, error) {
	rec, err := os.Create(recPath)
	if err != nil {
		return nil, fmt.Errorf("recordio: create %s: %w", recPath, err)
	}
	idx, err := os.Create(idxPath)
	if err != nil {
		rec.Close()
		return nil, fmt.Errorf("recordio: create %s: %w", idxPath, err)
	}
	return &Writer{rec: rec, idx: idx, w: bufio.NewWriter(rec)}, nil
}

// Append frames and writes one record, and records its offset in the index.
func (w *Writer) Append(r *Record) error {
	payload := r.Marshal()

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], recordMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:12], payloadChecksum(payload))

	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("recordio: write header: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("recordio: write payload: %w", err)
	}
	if _, err := fmt.Fprintf(w.idx, "%d\t%d\n", r.ID, w.offset); err != nil {
		return fmt.Errorf("recordio: write index entry: %w", err)
	}

	w.offset += int64(len(hdr)) + int64(len(payload))
	w.written++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int { return w.written }

// Close flushes and closes both files. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("recordio: flush: %w", err)
	}
	if err := w.rec.Close(); err != nil {
		return fmt.Errorf("recordio: close rec: %w", err)
	}
	if err := w.idx.Close(); err != nil {
		return fmt.Errorf("recordio: close idx: %w", err)
	}
	return nil
}
