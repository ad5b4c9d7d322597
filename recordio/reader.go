package recordio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// Reader iterates over one shard of a packed record file. Shards are
// contiguous slices of the index so that every record belongs to exactly one
// of the numShards readers.
type Reader struct {
	rec     *os.File
	entries []indexEntry // full index, file order
	shard   []int        // positions into entries owned by this shard
	order   []int        // iteration order over shard, reshuffled per epoch
	pos     int
	shuffle bool
	rng     *rand.Rand

	hdr []byte
	buf []byte
}

// ReaderConfig configures a shard-aware Reader.
type ReaderConfig struct {
	RecPath   string
	IdxPath   string
	ShardID   int
	NumShards int
	Shuffle   bool
	Seed      int64
}

// NewReader opens the record and index files and restricts iteration to the
// configured shard.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 1
	}
	if cfg.ShardID < 0 || cfg.ShardID >= cfg.NumShards {
		return nil, fmt.Errorf("recordio: shard id %d out of range [0, %d)", cfg.ShardID, cfg.NumShards)
	}

	entries, err := readIndex(cfg.IdxPath)
	if err != nil {
		return nil, err
	}
	rec, err := os.Open(cfg.RecPath)
	if err != nil {
		return nil, fmt.Errorf("recordio: open %s: %w", cfg.RecPath, err)
	}

	n := len(entries)
	lo := cfg.ShardID * n / cfg.NumShards
	hi := (cfg.ShardID + 1) * n / cfg.NumShards
	shard := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		shard = append(shard, i)
	}

	r := &Reader{
		rec:     rec,
		entries: entries,
		shard:   shard,
		order:   make([]int, len(shard)),
		shuffle: cfg.Shuffle,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		hdr:     make([]byte, 12),
	}
	r.resetOrder()
	return r, nil
}

// EpochSize reports the number of records in the full dataset, across all
// shards.
func (r *Reader) EpochSize() int { return len(r.entries) }

// ShardSize reports the number of records this reader will yield per epoch.
func (r *Reader) ShardSize() int { return len(r.shard) }

func (r *Reader) resetOrder() {
	copy(r.order, r.shard)
	if r.shuffle {
		r.rng.Shuffle(len(r.order), func(i, j int) {
			r.order[i], r.order[j] = r.order[j], r.order[i]
		})
	}
	r.pos = 0
}

// Next reads the next record of the shard. It returns io.EOF once the shard
// is exhausted; Reset starts a fresh epoch.
func (r *Reader) Next(rec *Record) error {
	if r.pos >= len(r.order) {
		return io.EOF
	}
	entry := r.entries[r.order[r.pos]]
	r.pos++
	return r.readAt(entry.offset, rec)
}

func (r *Reader) readAt(offset int64, rec *Record) error {
	if _, err := r.rec.ReadAt(r.hdr, offset); err != nil {
		return fmt.Errorf("recordio: read header at %d: %w", offset, err)
	}
	magic := binary.LittleEndian.Uint32(r.hdr[0:4])
	if magic != recordMagic {
		return fmt.Errorf("%w: got %#x at offset %d", ErrBadMagic, magic, offset)
	}
	size := binary.LittleEndian.Uint32(r.hdr[4:8])
	sum := binary.LittleEndian.Uint32(r.hdr[8:12])

	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	payload := r.buf[:size]
	if _, err := r.rec.ReadAt(payload, offset+int64(len(r.hdr))); err != nil {
		return fmt.Errorf("recordio: read payload at %d: %w", offset, err)
	}
	if payloadChecksum(payload) != sum {
		return fmt.Errorf("%w: offset %d", ErrBadChecksum, offset)
	}

	if err := rec.Unmarshal(payload); err != nil {
		return err
	}
	// Unmarshal aliases the reusable payload buffer.
	rec.Image = append([]byte(nil), rec.Image...)
	return nil
}

// Reset rewinds the reader to the start of its shard, reshuffling the order
// when shuffling is enabled.
func (r *Reader) Reset() { r.resetOrder() }

// Close closes the underlying record file.
func (r *Reader) Close() error { return r.rec.Close() }
