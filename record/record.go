// Package record reads and writes sequential files of length delimited records using the TFRecord framing.
//
// Each record is stored as
//
//	uint64 length
//	uint32 masked crc32c of length
//	byte   data[length]
//	uint32 masked crc32c of data
//
// with all integers little endian.
package record

import (
	"bufio"
	"encoding/binary"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"hash/crc32"
	"io"
	"strings"
)

const (
	headerSize = 12
	footerSize = 4
	maskDelta  = 0xa282ead8
)

// ErrCorruptRecord is returned when a record fails its checksum or is truncated.
var ErrCorruptRecord = errors.New("corrupt record")

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Compression applied to each record payload
type Compression int

const (
	NoCompression Compression = iota
	Snappy
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// ParseCompression converts a config string to a Compression value, empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoCompression, nil
	case "snappy":
		return Snappy, nil
	}
	return NoCompression, errors.Errorf("invalid compression type %q", s)
}

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, crcTable)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Writer appends records to an underlying stream.
type Writer struct {
	w      *bufio.Writer
	comp   Compression
	header [headerSize]byte
	footer [footerSize]byte
	buf    []byte
	count  int
	bytes  int64
}

// Create a new record writer, Flush must be called once all records are written.
func NewWriter(w io.Writer, comp Compression) *Writer {
	return &Writer{w: bufio.NewWriter(w), comp: comp}
}

// Write a single record
func (w *Writer) Write(data []byte) error {
	if w.comp == Snappy {
		w.buf = snappy.Encode(w.buf[:cap(w.buf)], data)
		data = w.buf
	}
	binary.LittleEndian.PutUint64(w.header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(w.header[8:], maskedCRC(w.header[:8]))
	binary.LittleEndian.PutUint32(w.footer[:], maskedCRC(data))
	if _, err := w.w.Write(w.header[:]); err != nil {
		return errors.Wrap(err, "error writing record header")
	}
	if _, err := w.w.Write(data); err != nil {
		return errors.Wrap(err, "error writing record data")
	}
	if _, err := w.w.Write(w.footer[:]); err != nil {
		return errors.Wrap(err, "error writing record footer")
	}
	w.count++
	w.bytes += int64(headerSize + len(data) + footerSize)
	return nil
}

// Flush any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Count returns the number of records written
func (w *Writer) Count() int { return w.count }

// Bytes returns the number of bytes written including framing
func (w *Writer) Bytes() int64 { return w.bytes }

// Reader reads records sequentially from a stream.
type Reader struct {
	r      *bufio.Reader
	comp   Compression
	header [headerSize]byte
	footer [footerSize]byte
	buf    []byte
	offset int64
}

func NewReader(r io.Reader, comp Compression) *Reader {
	return &Reader{r: bufio.NewReader(r), comp: comp}
}

// Next returns the next record payload. It returns io.EOF at the end of the stream.
// The returned slice is only valid until the following call to Next.
func (r *Reader) Next() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, r.corrupt("truncated header")
	}
	if maskedCRC(r.header[:8]) != binary.LittleEndian.Uint32(r.header[8:]) {
		return nil, r.corrupt("header checksum mismatch")
	}
	size := binary.LittleEndian.Uint64(r.header[:8])
	if size > 1<<32 {
		return nil, r.corrupt("record too large")
	}
	if uint64(cap(r.buf)) < size {
		r.buf = make([]byte, size)
	}
	data := r.buf[:size]
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, r.corrupt("truncated data")
	}
	if _, err := io.ReadFull(r.r, r.footer[:]); err != nil {
		return nil, r.corrupt("truncated footer")
	}
	if maskedCRC(data) != binary.LittleEndian.Uint32(r.footer[:]) {
		return nil, r.corrupt("data checksum mismatch")
	}
	r.offset += int64(headerSize) + int64(size) + footerSize
	if r.comp == Snappy {
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptRecord, "snappy decode at offset %d: %s", r.offset, err)
		}
		return decoded, nil
	}
	return data, nil
}

func (r *Reader) corrupt(msg string) error {
	return errors.Wrapf(ErrCorruptRecord, "%s at offset %d", msg, r.offset)
}

// Count returns the number of records in the stream, reading it to the end.
// Payloads are checksummed but not decompressed.
func Count(r io.Reader) (int, error) {
	rd := NewReader(r, NoCompression)
	n := 0
	for {
		_, err := rd.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
