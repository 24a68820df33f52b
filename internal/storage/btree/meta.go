// Package btree implements a copy-on-write B-tree used as the ordered
// key-value core of obtree.
package btree

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
)

// Meta record constants.
const (
	// MetaSize is the encoded size of a Meta record.
	MetaSize = 40

	// MetaVersion is the current meta format version.
	MetaVersion uint32 = 1
)

// MetaMagic identifies an obtree meta record ("OBT\x00").
var MetaMagic = [4]byte{'O', 'B', 'T', 0x00}

// Meta is the durable description of a tree: which node is the root, how
// many tuples the tree holds and where the id counter stands. Backends
// persist it on Flush and hand it back on reopen.
//
// Layout:
//   - Bytes 0-3:   Magic ("OBT\x00")
//   - Bytes 4-7:   Version (uint32)
//   - Bytes 8-11:  Degree (uint32)
//   - Bytes 12-19: Root (NodeID/uint64)
//   - Bytes 20-27: Count (uint64)
//   - Bytes 28-35: NextID (uint64)
//   - Bytes 36-39: Checksum (CRC32 of bytes 0-35)
type Meta struct {
	Degree uint32
	Root   NodeID
	Count  uint64
	NextID uint64
}

// Serialize encodes the meta record into a new MetaSize byte slice.
func (m Meta) Serialize() []byte {
	buf := make([]byte, MetaSize)
	copy(buf[0:4], MetaMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], MetaVersion)
	binary.LittleEndian.PutUint32(buf[8:12], m.Degree)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(m.Root))
	binary.LittleEndian.PutUint64(buf[20:28], m.Count)
	binary.LittleEndian.PutUint64(buf[28:36], m.NextID)
	binary.LittleEndian.PutUint32(buf[36:40], crc32.ChecksumIEEE(buf[:36]))
	return buf
}

// DeserializeMeta decodes a meta record and validates its magic, version
// and checksum.
func DeserializeMeta(buf []byte) (Meta, error) {
	if len(buf) != MetaSize {
		return Meta{}, errors.Wrapf(ErrCorruptMeta, "meta record is %d bytes, want %d", len(buf), MetaSize)
	}
	if [4]byte(buf[0:4]) != MetaMagic {
		return Meta{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != MetaVersion {
		return Meta{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
	if crc32.ChecksumIEEE(buf[:36]) != binary.LittleEndian.Uint32(buf[36:40]) {
		return Meta{}, ErrMetaChecksum
	}

	m := Meta{
		Degree: binary.LittleEndian.Uint32(buf[8:12]),
		Root:   NodeID(binary.LittleEndian.Uint64(buf[12:20])),
		Count:  binary.LittleEndian.Uint64(buf[20:28]),
		NextID: binary.LittleEndian.Uint64(buf[28:36]),
	}
	if m.Root == InvalidNodeID || uint64(m.Root) >= m.NextID {
		return Meta{}, errors.Wrapf(ErrCorruptMeta, "root %s outside id range [1, %d)", m.Root, m.NextID)
	}
	return m, nil
}
