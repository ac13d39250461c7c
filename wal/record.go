package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// recordHeaderSize is CRC (4) + id (8) + length (4).
const recordHeaderSize = 16

// encodeRecord frames data as [CRC32][id][len][data], little-endian, with the
// checksum covering id, len and data.
func encodeRecord(id uint64, data []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(data))
	binary.LittleEndian.PutUint64(buf[4:], id)
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(data)))
	copy(buf[recordHeaderSize:], data)
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

// decodeRecord reads one record from r. It returns io.EOF only at a clean
// record boundary; a record cut short returns io.ErrUnexpectedEOF.
func decodeRecord(r io.Reader) (uint64, []byte, int64, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, 0, err
	}
	checksum := binary.LittleEndian.Uint32(header[0:])
	id := binary.LittleEndian.Uint64(header[4:])
	length := binary.LittleEndian.Uint32(header[12:])
	if length > MaxRecordSize {
		return 0, nil, recordHeaderSize, ErrRecordTooLarge
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, recordHeaderSize, err
	}

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(data)
	n := int64(recordHeaderSize) + int64(length)
	if crc.Sum32() != checksum {
		return 0, nil, n, ErrInvalidCRC
	}
	return id, data, n, nil
}
