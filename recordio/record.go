package recordio

import (
	"errors"
	"fmt"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"
)

// Record is a single packed sample: an image payload plus its integer class
// label and a stable id that ties it to the index file.
type Record struct {
	ID    uint64
	Label int64
	Image []byte
}

const (
	// recordMagic marks the start of every framed record in a .rec file.
	recordMagic = uint32(0xced7ed01)

	fieldID    = 1
	fieldLabel = 2
	fieldImage = 3
)

var (
	ErrBadMagic    = errors.New("recordio: bad record magic")
	ErrBadChecksum = errors.New("recordio: payload checksum mismatch")
)

// Marshal encodes the record payload in protobuf wire format.
func (r *Record) Marshal() []byte {
	buf := make([]byte, 0, 16+len(r.Image))
	buf = protowire.AppendTag(buf, fieldID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, r.ID)
	buf = protowire.AppendTag(buf, fieldLabel, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(r.Label))
	buf = protowire.AppendTag(buf, fieldImage, protowire.BytesType)
	buf = protowire.AppendBytes(buf, r.Image)
	return buf
}

// Unmarshal decodes a record payload produced by Marshal. Unknown fields are
// skipped so the format can grow without breaking old readers.
func (r *Record) Unmarshal(buf []byte) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("recordio: decode tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("recordio: decode id: %w", protowire.ParseError(n))
			}
			r.ID = v
			buf = buf[n:]
		case num == fieldLabel && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("recordio: decode label: %w", protowire.ParseError(n))
			}
			r.Label = protowire.DecodeZigZag(v)
			buf = buf[n:]
		case num == fieldImage && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("recordio: decode image: %w", protowire.ParseError(n))
			}
			r.Image = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("recordio: skip field %d: %w", num, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return nil
}

func payloadChecksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}
