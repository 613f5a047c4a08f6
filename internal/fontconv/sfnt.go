// Package fontconv converts TrueType and OpenType fonts into the WOFF and
// WOFF2 web font containers.
//
// Glyph data is never rewritten: both encoders repackage the SFNT tables
// as they are and only compress them (zlib per table for WOFF, one Brotli
// stream for WOFF2).
package fontconv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

const (
	sfntHeaderSize  = 12
	sfntRecordSize  = 16
	flavorTrueType  = 0x00010000
	flavorOpenType  = 0x4F54544F // "OTTO"
	flavorAppleTrue = 0x74727565 // "true"
	tagCollection   = 0x74746366 // "ttcf"
)

var (
	ErrNotSFNT      = errors.New("not a TrueType/OpenType font")
	ErrCollection   = errors.New("font collections are not supported")
	ErrTruncated    = errors.New("truncated font data")
	ErrTableOverlap = errors.New("table extends past end of file")
)

// Table is one SFNT table.
type Table struct {
	Tag      string
	Checksum uint32
	Data     []byte
}

// Font is a parsed SFNT file.
type Font struct {
	Flavor uint32
	Tables []Table // sorted by tag
}

// Parse reads the SFNT table directory.
func Parse(data []byte) (*Font, error) {
	if len(data) < sfntHeaderSize {
		return nil, ErrTruncated
	}
	flavor := binary.BigEndian.Uint32(data)
	switch flavor {
	case flavorTrueType, flavorOpenType, flavorAppleTrue:
	case tagCollection:
		return nil, ErrCollection
	default:
		return nil, fmt.Errorf("%w: flavor 0x%08x", ErrNotSFNT, flavor)
	}

	numTables := int(binary.BigEndian.Uint16(data[4:]))
	if numTables == 0 {
		return nil, fmt.Errorf("%w: no tables", ErrNotSFNT)
	}
	if len(data) < sfntHeaderSize+numTables*sfntRecordSize {
		return nil, ErrTruncated
	}

	f := &Font{Flavor: flavor, Tables: make([]Table, 0, numTables)}
	for i := 0; i < numTables; i++ {
		rec := data[sfntHeaderSize+i*sfntRecordSize:]
		tag := string(rec[0:4])
		checksum := binary.BigEndian.Uint32(rec[4:])
		offset := binary.BigEndian.Uint32(rec[8:])
		length := binary.BigEndian.Uint32(rec[12:])

		end := uint64(offset) + uint64(length)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %q", ErrTableOverlap, tag)
		}
		f.Tables = append(f.Tables, Table{
			Tag:      tag,
			Checksum: checksum,
			Data:     data[offset:end],
		})
	}

	sort.Slice(f.Tables, func(i, j int) bool { return f.Tables[i].Tag < f.Tables[j].Tag })
	return f, nil
}

// sfntSize is the size of the font once decoded back to SFNT.
func (f *Font) sfntSize() uint32 {
	size := uint32(sfntHeaderSize + sfntRecordSize*len(f.Tables))
	for _, t := range f.Tables {
		size += pad4(uint32(len(t.Data)))
	}
	return size
}

func pad4(n uint32) uint32 {
	return (n + 3) &^ 3
}
