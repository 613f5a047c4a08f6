package fontconv

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
)

const (
	woffSignature  = 0x774F4646 // "wOFF"
	woffHeaderSize = 44
	woffEntrySize  = 20
)

// ToWOFF converts an SFNT font to WOFF 1.0.
func ToWOFF(data []byte) ([]byte, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	type packed struct {
		table Table
		data  []byte
	}
	tables := make([]packed, len(f.Tables))
	for i, t := range f.Tables {
		comp, err := deflate(t.Data)
		if err != nil {
			return nil, fmt.Errorf("compress %q: %w", t.Tag, err)
		}
		// A table is stored uncompressed when compression does not help.
		if len(comp) >= len(t.Data) {
			comp = t.Data
		}
		tables[i] = packed{table: t, data: comp}
	}

	offset := uint32(woffHeaderSize + woffEntrySize*len(tables))
	dir := make([]byte, 0, woffEntrySize*len(tables))
	var body bytes.Buffer
	for _, p := range tables {
		entry := make([]byte, woffEntrySize)
		copy(entry[0:4], p.table.Tag)
		binary.BigEndian.PutUint32(entry[4:], offset)
		binary.BigEndian.PutUint32(entry[8:], uint32(len(p.data)))
		binary.BigEndian.PutUint32(entry[12:], uint32(len(p.table.Data)))
		binary.BigEndian.PutUint32(entry[16:], p.table.Checksum)
		dir = append(dir, entry...)

		body.Write(p.data)
		padded := pad4(uint32(len(p.data)))
		body.Write(make([]byte, padded-uint32(len(p.data))))
		offset += padded
	}

	header := make([]byte, woffHeaderSize)
	binary.BigEndian.PutUint32(header[0:], woffSignature)
	binary.BigEndian.PutUint32(header[4:], f.Flavor)
	binary.BigEndian.PutUint32(header[8:], offset)
	binary.BigEndian.PutUint16(header[12:], uint16(len(tables)))
	binary.BigEndian.PutUint32(header[16:], f.sfntSize())
	binary.BigEndian.PutUint16(header[20:], 1) // majorVersion
	// minorVersion, metadata and private block stay zero.

	out := make([]byte, 0, offset)
	out = append(out, header...)
	out = append(out, dir...)
	out = append(out, body.Bytes()...)
	return out, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
