package buffer

import "hash/crc64"

var crc64Table = crc64.MakeTable(crc64.ISO)

// CRC64 is the authoritative content identity of a buffer's
// uncompressed bytes (spec sections 3 and 4.B): two buffers with equal
// CRC64 are treated as identical and deduplicated on save.
func (v View) CRC64() uint64 {
	return crc64.Checksum(v.Bytes(), crc64Table)
}
