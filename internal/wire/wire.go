package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version byte = 1

	kindEntry byte = 1
	kindList  byte = 2
)

// Kind tells a stored value apart from a cached "not found".
type Kind byte

const (
	KindValue  Kind = 1
	KindAbsent Kind = 2
)

var (
	ErrCorrupt = errors.New("entcache: corrupt entry")
	magic4     = [...]byte{'E', 'N', 'T', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is the envelope every cached payload travels in.
// Times are unix nanoseconds; Sliding is a duration in nanoseconds (0 = none).
type Entry struct {
	Kind      Kind
	Gen       uint64
	Deadline  int64
	Sliding   int64
	ExpiresAt int64
	Payload   []byte
}

const entryHdr = 4 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 4

// Entry: magic(4) | ver(1) | frame(1=entry) | kind(1) | gen(u64) | deadline(i64) | sliding(i64) | expiresAt(i64) | vlen(u32) | payload
func EncodeEntry(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(entryHdr + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)
	buf.WriteByte(byte(e.Kind))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.Deadline))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.Sliding))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodeEntry rejects anything that is not exactly one well-formed frame.
// The returned payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < entryHdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}
	k := Kind(b[6])
	if k != KindValue && k != KindAbsent {
		return Entry{}, ErrCorrupt
	}

	off := 7
	e := Entry{Kind: k}
	e.Gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	e.Deadline = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.Sliding = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.ExpiresAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	if k == KindAbsent && vlen != 0 {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}

// List:
//
//	magic(4) | ver(1) | frame(1=list) | n(u32 be)
//	vlen(u32 be) | payload(vlen) * n
func EncodeList(items [][]byte) []byte {
	total := 4 + 1 + 1 + 4
	for _, it := range items {
		total += 4 + len(it)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindList)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		binary.BigEndian.PutUint32(u4[:], uint32(len(it)))
		buf.Write(u4[:])
		buf.Write(it)
	}
	return buf.Bytes()
}

func DecodeList(b []byte) ([][]byte, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindList {
		return nil, ErrCorrupt
	}

	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// each item needs at least its 4 byte length prefix
	if n < 0 || n > (len(b)-off)/4 {
		return nil, ErrCorrupt
	}

	items := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}
		items = append(items, b[off:off+vlen])
		off += vlen
	}
	if off != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(b)-off)
	}
	return items, nil
}
