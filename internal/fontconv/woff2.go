package fontconv

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/andybalholm/brotli"
)

const (
	woff2Signature  = 0x774F4632 // "wOF2"
	woff2HeaderSize = 48

	// arbitraryTag marks a directory entry followed by an explicit 4-byte tag.
	arbitraryTag = 63

	// nullTransform is the transform version meaning "stored as-is":
	// 3 for glyf and loca, 0 for every other table.
	nullTransformGlyf = 3
)

// knownTags is the WOFF2 table tag index.
var knownTags = []string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

var knownTagIndex = func() map[string]byte {
	m := make(map[string]byte, len(knownTags))
	for i, t := range knownTags {
		m[t] = byte(i)
	}
	return m
}()

// ToWOFF2 converts an SFNT font to WOFF2. Tables are stored with null
// transforms and compressed together in a single Brotli stream.
func ToWOFF2(data []byte) ([]byte, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var dir bytes.Buffer
	var stream bytes.Buffer
	for _, t := range f.Tables {
		writeDirectoryEntry(&dir, t)
		stream.Write(t.Data)
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(stream.Bytes()); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}

	total := uint32(woff2HeaderSize+dir.Len()) + uint32(compressed.Len())
	length := pad4(total)

	header := make([]byte, woff2HeaderSize)
	binary.BigEndian.PutUint32(header[0:], woff2Signature)
	binary.BigEndian.PutUint32(header[4:], f.Flavor)
	binary.BigEndian.PutUint32(header[8:], length)
	binary.BigEndian.PutUint16(header[12:], uint16(len(f.Tables)))
	binary.BigEndian.PutUint32(header[16:], f.sfntSize())
	binary.BigEndian.PutUint32(header[20:], uint32(compressed.Len()))
	binary.BigEndian.PutUint16(header[24:], 1) // majorVersion
	// minorVersion, metadata and private block stay zero.

	out := make([]byte, 0, length)
	out = append(out, header...)
	out = append(out, dir.Bytes()...)
	out = append(out, compressed.Bytes()...)
	out = append(out, make([]byte, length-total)...)
	return out, nil
}

func writeDirectoryEntry(dir *bytes.Buffer, t Table) {
	var version byte
	if t.Tag == "glyf" || t.Tag == "loca" {
		version = nullTransformGlyf
	}

	if idx, ok := knownTagIndex[t.Tag]; ok {
		dir.WriteByte(version<<6 | idx)
	} else {
		dir.WriteByte(version<<6 | arbitraryTag)
		dir.WriteString(t.Tag)
	}
	dir.Write(appendUIntBase128(nil, uint32(len(t.Data))))
}

// appendUIntBase128 encodes v as a big-endian base-128 varint with no
// leading zero bytes.
func appendUIntBase128(dst []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(dst, tmp[i:]...)
}
