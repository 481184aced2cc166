package chunk

import (
	"encoding/binary"
)

// HeaderSize is the fixed, packed, little-endian wire size of a ChunkHeader.
const HeaderSize = 48

// Flag bits packed into ChunkHeader.Flags.
const (
	FlagFirst      byte = 1 << 0
	FlagLast       byte = 1 << 1
	FlagCompressed byte = 1 << 2
	FlagEncrypted  byte = 1 << 3
)

// Header is the exactly-48-byte wire header preceding every chunk payload.
//
//	offset size field
//	0      16   transfer_id
//	16     8    chunk_index
//	24     8    chunk_offset
//	32     4    original_size
//	36     4    compressed_size
//	40     4    checksum
//	44     1    flags
//	45     3    reserved
type Header struct {
	TransferID     TransferID
	ChunkIndex     uint64
	ChunkOffset    uint64
	OriginalSize   uint32
	CompressedSize uint32
	Checksum       uint32
	Flags          byte
}

// First reports whether this chunk carries the first-chunk flag.
func (h Header) First() bool { return h.Flags&FlagFirst != 0 }

// Last reports whether this chunk carries the last-chunk flag.
func (h Header) Last() bool { return h.Flags&FlagLast != 0 }

// Compressed reports whether the payload on the wire is compressed.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Encrypted reports whether the payload on the wire is encrypted.
func (h Header) Encrypted() bool { return h.Flags&FlagEncrypted != 0 }

// Validate checks the invariants from §3 that don't require the payload.
func (h Header) Validate() error {
	if uint64(h.CompressedSize) > 2*uint64(h.OriginalSize)+64 {
		return ErrSizeInvariant
	}
	if h.Flags&FlagCompressed == 0 && h.CompressedSize != h.OriginalSize {
		return ErrSizeMismatch
	}
	return nil
}

// Encode serializes the header to exactly HeaderSize bytes.
func Encode(h Header) []byte {
	buf := make([]byte, HeaderSize)
	tid := h.TransferID.Bytes()
	copy(buf[0:16], tid[:])
	binary.LittleEndian.PutUint64(buf[16:24], h.ChunkIndex)
	binary.LittleEndian.PutUint64(buf[24:32], h.ChunkOffset)
	binary.LittleEndian.PutUint32(buf[32:36], h.OriginalSize)
	binary.LittleEndian.PutUint32(buf[36:40], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[40:44], h.Checksum)
	buf[44] = h.Flags
	// buf[45:48] reserved, already zero
	return buf
}

// Decode parses a 48-byte wire header. It fails with ErrHeaderSize if the
// slice isn't exactly 48 bytes, ErrReservedNonZero if the reserved bytes are
// not zero, and ErrSizeInvariant/ErrSizeMismatch if the size invariants from
// §3 don't hold.
func Decode(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, ErrHeaderSize
	}
	if b[45] != 0 || b[46] != 0 || b[47] != 0 {
		return Header{}, ErrReservedNonZero
	}

	var tid [16]byte
	copy(tid[:], b[0:16])

	h := Header{
		TransferID:     TransferIDFromBytes(tid),
		ChunkIndex:     binary.LittleEndian.Uint64(b[16:24]),
		ChunkOffset:    binary.LittleEndian.Uint64(b[24:32]),
		OriginalSize:   binary.LittleEndian.Uint32(b[32:36]),
		CompressedSize: binary.LittleEndian.Uint32(b[36:40]),
		Checksum:       binary.LittleEndian.Uint32(b[40:44]),
		Flags:          b[44],
	}

	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}
