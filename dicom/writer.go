package dicom

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates DICOM wire bytes with endian-aware primitives. Length
// prefixes are computed from what was actually written, never guessed; the
// DIMSE command-set encoder and the tests build their payloads through it.
type Writer struct {
	buf       bytes.Buffer
	byteOrder binary.ByteOrder
}

// NewWriter creates a writer producing output in the given byte order.
func NewWriter(byteOrder binary.ByteOrder) *Writer {
	return &Writer{byteOrder: byteOrder}
}

// WriteUint16 appends a 16-bit unsigned integer.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	w.byteOrder.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint32 appends a 32-bit unsigned integer.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	w.byteOrder.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteString appends raw string bytes.
func (w *Writer) WriteString(s string) {
	w.buf.WriteString(s)
}

// WriteZeros appends n zero bytes.
func (w *Writer) WriteZeros(n int) {
	w.buf.Write(make([]byte, n))
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
