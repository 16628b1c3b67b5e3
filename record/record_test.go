package record

import (
	"bytes"
	"fmt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func writeRecords(t *testing.T, comp Compression, recs ...[]byte) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf, comp)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())
	require.Equal(t, len(recs), w.Count())
	require.EqualValues(t, buf.Len(), w.Bytes())
	return buf.Bytes()
}

func readRecords(t *testing.T, data []byte, comp Compression) [][]byte {
	r := NewReader(bytes.NewReader(data), comp)
	var recs [][]byte
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, append([]byte{}, rec...))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, comp := range []Compression{NoCompression, Snappy} {
		t.Run(comp.String(), func(t *testing.T) {
			recs := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte("abc"), 1000)}
			data := writeRecords(t, comp, recs...)
			got := readRecords(t, data, comp)
			require.Len(t, got, len(recs))
			for i := range recs {
				assert.Equal(t, recs[i], got[i], "record %d", i)
			}
			n, err := Count(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, len(recs), n)
		})
	}
}

func TestFraming(t *testing.T) {
	data := writeRecords(t, NoCompression, []byte("hello"))
	require.Len(t, data, headerSize+5+footerSize)
	assert.Equal(t, []byte{5, 0, 0, 0, 0, 0, 0, 0}, data[:8])
	assert.Equal(t, []byte("hello"), data[headerSize:headerSize+5])
}

func TestCorrupt(t *testing.T) {
	data := writeRecords(t, NoCompression, []byte("hello"), []byte("world"))
	tests := []struct {
		name string
		data []byte
	}{
		{"data", flip(data, headerSize+1)},
		{"header", flip(data, 2)},
		{"footer", flip(data, headerSize+6)},
		{"truncated", data[:len(data)-2]},
		{"short header", data[:headerSize+5+footerSize+3]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(test.data), NoCompression)
			var err error
			for err == nil {
				_, err = r.Next()
			}
			assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, s := range []string{"", "none", "NONE"} {
		c, err := ParseCompression(s)
		require.NoError(t, err)
		assert.Equal(t, NoCompression, c)
	}
	c, err := ParseCompression("snappy")
	require.NoError(t, err)
	assert.Equal(t, Snappy, c)
	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}

func TestExample(t *testing.T) {
	ex := Example{
		"img":   {Bytes: [][]byte{{0xff, 0xd8, 0xff, 0x00}}},
		"label": {Floats: []float32{1, 0, 1, 0.5}},
		"id":    {Ints: []int64{42, -1}},
	}
	got, err := UnmarshalExample(ex.Marshal())
	require.NoError(t, err)
	assert.Equal(t, ex, got)
}

// encoding of {"label": float_list [1, 0]} as produced by the protobuf library
func TestExampleWireFormat(t *testing.T) {
	ex := Example{"label": {Floats: []float32{1, 0}}}
	expect := []byte{
		0x0a, 0x17, // features
		0x0a, 0x15, // feature map entry
		0x0a, 0x05, 'l', 'a', 'b', 'e', 'l',
		0x12, 0x0c, // Feature
		0x12, 0x0a, // float_list
		0x0a, 0x08, 0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, expect, ex.Marshal(), fmt.Sprintf("% x", ex.Marshal()))
}

func TestExampleInvalid(t *testing.T) {
	_, err := UnmarshalExample([]byte{0x0a, 0x10, 0x01})
	assert.Error(t, err)
}

func flip(data []byte, i int) []byte {
	d := append([]byte{}, data...)
	d[i] ^= 0x55
	return d
}
