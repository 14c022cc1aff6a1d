// Package value provides DICOM element value representations.
//
// Values in DICOM are strings, integers, floats, or opaque bytes, selected
// by the element's VR. Sequence items and encapsulated pixel fragments are
// carried on the element itself, not as values.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pacsforge/dicomnet/dicom/vr"
)

// Value represents a DICOM element value.
type Value interface {
	// VR returns the Value Representation of this value.
	VR() vr.VR

	// Bytes returns the little-endian wire encoding of this value, without
	// the even-length padding applied at element encode time.
	Bytes() []byte

	// String returns a human-readable representation.
	String() string

	// Equals reports whether this value equals another value.
	Equals(other Value) bool
}

// StringValue holds the values of character-string VRs. Multiple values are
// separated by backslash on the wire.
type StringValue struct {
	vr     vr.VR
	values []string
}

// NewStringValue creates a StringValue for a string VR.
func NewStringValue(v vr.VR, values []string) (*StringValue, error) {
	if !v.IsString() {
		return nil, fmt.Errorf("VR %s is not a string type", v)
	}
	return &StringValue{vr: v, values: values}, nil
}

// MustString builds a single-valued StringValue and panics on a non-string
// VR. Use only with VR constants.
func MustString(v vr.VR, s string) *StringValue {
	val, err := NewStringValue(v, []string{s})
	if err != nil {
		panic(err)
	}
	return val
}

func (s *StringValue) VR() vr.VR { return s.vr }

// Strings returns the individual string values.
func (s *StringValue) Strings() []string { return s.values }

// First returns the first value, or "" when empty.
func (s *StringValue) First() string {
	if len(s.values) == 0 {
		return ""
	}
	return s.values[0]
}

func (s *StringValue) String() string {
	return strings.Join(s.values, "\\")
}

func (s *StringValue) Bytes() []byte {
	if len(s.values) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(s.values, "\\"))
}

func (s *StringValue) Equals(other Value) bool {
	o, ok := other.(*StringValue)
	if !ok || s.vr != o.vr || len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// IntValue holds fixed-width integer VR values (SS, US, SL, UL, SV, UV, AT).
type IntValue struct {
	vr     vr.VR
	values []int64
}

// NewIntValue creates an IntValue for an integer VR.
func NewIntValue(v vr.VR, values []int64) (*IntValue, error) {
	if !v.IsInteger() {
		return nil, fmt.Errorf("VR %s is not an integer type", v)
	}
	return &IntValue{vr: v, values: values}, nil
}

// MustUint16 builds a single-valued US IntValue.
func MustUint16(n uint16) *IntValue {
	return &IntValue{vr: vr.UnsignedShort, values: []int64{int64(n)}}
}

func (iv *IntValue) VR() vr.VR { return iv.vr }

// Ints returns the integer values.
func (iv *IntValue) Ints() []int64 { return iv.values }

// First returns the first value, or 0 when empty.
func (iv *IntValue) First() int64 {
	if len(iv.values) == 0 {
		return 0
	}
	return iv.values[0]
}

func (iv *IntValue) String() string {
	parts := make([]string, len(iv.values))
	for i, n := range iv.values {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, "\\")
}

func (iv *IntValue) Bytes() []byte {
	width := iv.vr.FixedWidth()
	buf := make([]byte, 0, width*len(iv.values))
	for _, n := range iv.values {
		switch width {
		case 2:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(n))
		case 4:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(n))
		case 8:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
		}
	}
	return buf
}

func (iv *IntValue) Equals(other Value) bool {
	o, ok := other.(*IntValue)
	if !ok || iv.vr != o.vr || len(iv.values) != len(o.values) {
		return false
	}
	for i := range iv.values {
		if iv.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// FloatValue holds FL and FD values.
type FloatValue struct {
	vr     vr.VR
	values []float64
}

// NewFloatValue creates a FloatValue for a floating-point VR.
func NewFloatValue(v vr.VR, values []float64) (*FloatValue, error) {
	if !v.IsFloat() {
		return nil, fmt.Errorf("VR %s is not a float type", v)
	}
	return &FloatValue{vr: v, values: values}, nil
}

func (f *FloatValue) VR() vr.VR { return f.vr }

// Floats returns the float values.
func (f *FloatValue) Floats() []float64 { return f.values }

func (f *FloatValue) String() string {
	parts := make([]string, len(f.values))
	for i, x := range f.values {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, "\\")
}

func (f *FloatValue) Bytes() []byte {
	var buf []byte
	for _, x := range f.values {
		if f.vr == vr.FloatingPointSingle {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(x)))
		} else {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
		}
	}
	return buf
}

func (f *FloatValue) Equals(other Value) bool {
	o, ok := other.(*FloatValue)
	if !ok || f.vr != o.vr || len(f.values) != len(o.values) {
		return false
	}
	for i := range f.values {
		if f.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// BytesValue holds opaque binary VR values (OB, OW, UN, ...) and is also the
// placeholder value of SQ and encapsulated pixel-data elements.
type BytesValue struct {
	vr   vr.VR
	data []byte
}

// NewBytesValue creates a BytesValue. Any VR is accepted since unknown
// elements decode as raw bytes.
func NewBytesValue(v vr.VR, data []byte) (*BytesValue, error) {
	return &BytesValue{vr: v, data: data}, nil
}

func (b *BytesValue) VR() vr.VR { return b.vr }

// Data returns the raw bytes.
func (b *BytesValue) Data() []byte { return b.data }

func (b *BytesValue) String() string {
	return fmt.Sprintf("%d bytes", len(b.data))
}

func (b *BytesValue) Bytes() []byte { return b.data }

func (b *BytesValue) Equals(other Value) bool {
	o, ok := other.(*BytesValue)
	if !ok || b.vr != o.vr || len(b.data) != len(o.data) {
		return false
	}
	for i := range b.data {
		if b.data[i] != o.data[i] {
			return false
		}
	}
	return true
}
