package fontconv

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSFNT assembles a minimal TrueType file from tables given in tag order.
func buildSFNT(t *testing.T, tables map[string][]byte, order []string) []byte {
	t.Helper()

	n := len(order)
	header := make([]byte, sfntHeaderSize+n*sfntRecordSize)
	binary.BigEndian.PutUint32(header[0:], flavorTrueType)
	binary.BigEndian.PutUint16(header[4:], uint16(n))

	offset := uint32(len(header))
	var body bytes.Buffer
	for i, tag := range order {
		data := tables[tag]
		rec := header[sfntHeaderSize+i*sfntRecordSize:]
		copy(rec[0:4], tag)
		binary.BigEndian.PutUint32(rec[4:], uint32(i+1))
		binary.BigEndian.PutUint32(rec[8:], offset)
		binary.BigEndian.PutUint32(rec[12:], uint32(len(data)))
		body.Write(data)
		padded := pad4(uint32(len(data)))
		body.Write(make([]byte, padded-uint32(len(data))))
		offset += padded
	}
	return append(header, body.Bytes()...)
}

func sampleFont(t *testing.T) ([]byte, map[string][]byte) {
	tables := map[string][]byte{
		"cmap": bytes.Repeat([]byte("cmap-data-"), 40),
		"glyf": bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6}, 50),
		"head": []byte("head-table-54-bytes-padded......................xyz"),
		"loca": {0, 0, 0, 10, 0, 20},
		"zzzz": []byte("custom"),
	}
	return buildSFNT(t, tables, []string{"cmap", "glyf", "head", "loca", "zzzz"}), tables
}

func TestParse(t *testing.T) {
	data, tables := sampleFont(t)

	f, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(flavorTrueType), f.Flavor)
	require.Len(t, f.Tables, 5)
	for _, tbl := range f.Tables {
		assert.Equal(t, tables[tbl.Tag], tbl.Data, tbl.Tag)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"short", []byte{0, 1}, ErrTruncated},
		{"wrong magic", []byte("GIF89a......"), ErrNotSFNT},
		{"collection", append([]byte("ttcf"), make([]byte, 12)...), ErrCollection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToWOFFRoundTripsTables(t *testing.T) {
	data, tables := sampleFont(t)

	woff, err := ToWOFF(data)
	require.NoError(t, err)

	require.Equal(t, uint32(woffSignature), binary.BigEndian.Uint32(woff[0:]))
	assert.Equal(t, uint32(flavorTrueType), binary.BigEndian.Uint32(woff[4:]))
	assert.Equal(t, uint32(len(woff)), binary.BigEndian.Uint32(woff[8:]))
	numTables := int(binary.BigEndian.Uint16(woff[12:]))
	require.Equal(t, 5, numTables)

	for i := 0; i < numTables; i++ {
		e := woff[woffHeaderSize+i*woffEntrySize:]
		tag := string(e[0:4])
		off := binary.BigEndian.Uint32(e[4:])
		compLen := binary.BigEndian.Uint32(e[8:])
		origLen := binary.BigEndian.Uint32(e[12:])
		assert.Zero(t, off%4, "table %s must be 4-byte aligned", tag)

		raw := woff[off : off+compLen]
		if compLen < origLen {
			zr, err := zlib.NewReader(bytes.NewReader(raw))
			require.NoError(t, err)
			raw, err = io.ReadAll(zr)
			require.NoError(t, err)
		}
		assert.Equal(t, tables[tag], raw, tag)
	}
}

func TestToWOFF2(t *testing.T) {
	data, tables := sampleFont(t)

	out, err := ToWOFF2(data)
	require.NoError(t, err)

	require.Equal(t, uint32(woff2Signature), binary.BigEndian.Uint32(out[0:]))
	assert.Equal(t, uint32(len(out)), binary.BigEndian.Uint32(out[8:]))
	assert.Zero(t, len(out)%4)
	numTables := int(binary.BigEndian.Uint16(out[12:]))
	require.Equal(t, 5, numTables)
	compressedSize := binary.BigEndian.Uint32(out[20:])

	// Walk the directory.
	pos := woff2HeaderSize
	var order []string
	lengths := map[string]uint32{}
	for i := 0; i < numTables; i++ {
		flags := out[pos]
		pos++
		idx := flags & 0x3f
		version := flags >> 6
		tag := ""
		if idx == arbitraryTag {
			tag = string(out[pos : pos+4])
			pos += 4
		} else {
			tag = knownTags[idx]
		}
		if tag == "glyf" || tag == "loca" {
			assert.Equal(t, byte(nullTransformGlyf), version, tag)
		} else {
			assert.Zero(t, version, tag)
		}
		n, size, err := readUIntBase128(out[pos:])
		require.NoError(t, err)
		pos += size
		order = append(order, tag)
		lengths[tag] = n
	}
	assert.Equal(t, []string{"cmap", "glyf", "head", "loca", "zzzz"}, order)

	stream, err := io.ReadAll(brotli.NewReader(bytes.NewReader(out[pos : pos+int(compressedSize)])))
	require.NoError(t, err)
	for _, tag := range order {
		n := lengths[tag]
		assert.Equal(t, tables[tag], stream[:n], tag)
		stream = stream[n:]
	}
	assert.Empty(t, stream)
}

func TestUIntBase128(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16383, 16384, 1 << 28, 0xffffffff} {
		t.Run(fmt.Sprint(v), func(t *testing.T) {
			enc := appendUIntBase128(nil, v)
			assert.NotEqual(t, byte(0x80), enc[0], "no leading zeros")
			got, n, err := readUIntBase128(enc)
			require.NoError(t, err)
			assert.Equal(t, len(enc), n)
			assert.Equal(t, v, got)
		})
	}
}

// readUIntBase128 decodes a value written by appendUIntBase128.
func readUIntBase128(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 5 && i < len(b); i++ {
		c := b[i]
		if i == 0 && c == 0x80 {
			return 0, 0, fmt.Errorf("leading zero in UIntBase128")
		}
		if v&0xfe000000 != 0 {
			return 0, 0, fmt.Errorf("UIntBase128 overflow")
		}
		v = v<<7 | uint32(c&0x7f)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}
