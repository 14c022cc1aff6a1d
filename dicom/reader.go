package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader wraps an io.Reader with DICOM binary reading operations over a
// monotonic cursor. The byte order can change mid-stream (File Meta is
// always little-endian while the main dataset may be big-endian), and the
// cursor advances only on successful reads.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.3
type Reader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
	position  int64
	// limit is the total number of readable bytes when known, or -1 for
	// unbounded streams (e.g. a deflate stream). Used to bound declared
	// element lengths.
	limit int64
}

// NewReader creates a reader over an unbounded stream.
func NewReader(r io.Reader, byteOrder binary.ByteOrder) *Reader {
	return &Reader{r: r, byteOrder: byteOrder, limit: -1}
}

// NewBytesReader creates a reader over a byte slice with a known bound.
func NewBytesReader(data []byte, byteOrder binary.ByteOrder) *Reader {
	return &Reader{r: &sliceReader{data: data}, byteOrder: byteOrder, limit: int64(len(data))}
}

type sliceReader struct {
	data []byte
	pos  int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// ReadUint16 reads a 16-bit unsigned integer in the current byte order.
// Returns io.EOF at a clean end of stream.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return r.byteOrder.Uint16(buf), nil
}

// ReadUint32 reads a 32-bit unsigned integer in the current byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return r.byteOrder.Uint32(buf), nil
}

// ReadUint64 reads a 64-bit unsigned integer in the current byte order.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return r.byteOrder.Uint64(buf), nil
}

// ReadBytes reads exactly n bytes. Returns io.EOF at a clean end of stream
// and io.ErrUnexpectedEOF on a short read.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	return r.read(n)
}

// ReadString reads exactly n bytes as a string.
func (r *Reader) ReadString(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf, err := r.read(n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *Reader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	if err != nil {
		if err == io.EOF && read == 0 {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	r.position += int64(n)
	return buf, nil
}

// SetByteOrder changes the byte order for subsequent reads. Used when
// switching from File Meta (little-endian) to a big-endian main dataset.
func (r *Reader) SetByteOrder(order binary.ByteOrder) {
	r.byteOrder = order
}

// ByteOrder returns the current byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.byteOrder
}

// Position returns the number of bytes consumed so far.
func (r *Reader) Position() int64 {
	return r.position
}

// Remaining returns the number of unread bytes when the reader is bounded,
// or -1 for unbounded streams.
func (r *Reader) Remaining() int64 {
	if r.limit < 0 {
		return -1
	}
	return r.limit - r.position
}

// WrapReader replaces the underlying stream, e.g. with a deflate
// decompressor. The resulting stream is unbounded.
func (r *Reader) WrapReader(newReader io.Reader) {
	r.r = newReader
	r.limit = -1
}
