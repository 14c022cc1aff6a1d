package dicom_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/dicom"
	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/vr"
)

var explicitLETS = &dicom.TransferSyntax{ExplicitVR: true, ByteOrder: binary.LittleEndian}

func parseOne(t *testing.T, ts *dicom.TransferSyntax, data []byte) (*dicom.DataSet, error) {
	t.Helper()
	reader := dicom.NewBytesReader(data, ts.ByteOrder)
	parser := dicom.NewElementParser(reader, ts)
	ds := dicom.NewDataSet()
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ds, nil
			}
			return ds, err
		}
		ds.Add(elem)
	}
}

// item appends an Item introducer with a defined length.
func item(buf *bytes.Buffer, length uint32) {
	binary.Write(buf, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(buf, binary.LittleEndian, uint16(0xE000))
	binary.Write(buf, binary.LittleEndian, length)
}

func delimiter(buf *bytes.Buffer, element uint16) {
	binary.Write(buf, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(buf, binary.LittleEndian, element)
	binary.Write(buf, binary.LittleEndian, uint32(0))
}

// TestSequence_DefinedLength parses a defined-length SQ with two items and
// checks item boundaries survive.
func TestSequence_DefinedLength(t *testing.T) {
	var inner1, inner2 bytes.Buffer
	explicitLE(&inner1, 0x0008, 0x1150, "UI", []byte("1.2.840.10008.5.1.4.1.1.2\x00"))
	explicitLE(&inner2, 0x0008, 0x1150, "UI", []byte("1.2.840.10008.5.1.4.1.1.4\x00"))

	var body bytes.Buffer
	item(&body, uint32(inner1.Len()))
	body.Write(inner1.Bytes())
	item(&body, uint32(inner2.Len()))
	body.Write(inner2.Bytes())

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0008))
	binary.Write(&buf, binary.LittleEndian, uint16(0x1115))
	buf.WriteString("SQ")
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(&buf, binary.LittleEndian, uint32(body.Len()))
	buf.Write(body.Bytes())

	ds, err := parseOne(t, explicitLETS, buf.Bytes())
	require.NoError(t, err)

	elem, err := ds.Get(tag.New(0x0008, 0x1115))
	require.NoError(t, err)
	require.True(t, elem.IsSequence())
	require.Len(t, elem.Items(), 2)

	first := elem.Items()[0].Get(tag.New(0x0008, 0x1150))
	require.NotNil(t, first)
	assert.Equal(t, vr.UniqueIdentifier, first.VR())

	second := elem.Items()[1].Get(tag.New(0x0008, 0x1150))
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value().String(), second.Value().String())
}

// TestSequence_UndefinedLength parses an undefined-length SQ terminated by
// the sequence delimitation item, with an undefined-length item inside.
func TestSequence_UndefinedLength(t *testing.T) {
	var inner bytes.Buffer
	explicitLE(&inner, 0x0010, 0x0020, "LO", []byte("NESTED00"))

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0008))
	binary.Write(&buf, binary.LittleEndian, uint16(0x1115))
	buf.WriteString("SQ")
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	item(&buf, 0xFFFFFFFF)
	buf.Write(inner.Bytes())
	delimiter(&buf, 0xE00D) // item delimitation
	delimiter(&buf, 0xE0DD) // sequence delimitation

	ds, err := parseOne(t, explicitLETS, buf.Bytes())
	require.NoError(t, err)

	elem, err := ds.Get(tag.New(0x0008, 0x1115))
	require.NoError(t, err)
	require.Len(t, elem.Items(), 1)
	nested := elem.Items()[0].Get(tag.New(0x0010, 0x0020))
	require.NotNil(t, nested)
	assert.Equal(t, "NESTED00", nested.Value().String())
}

// TestSequence_NestedRecursion checks a sequence inside a sequence item.
func TestSequence_NestedRecursion(t *testing.T) {
	var leaf bytes.Buffer
	explicitLE(&leaf, 0x0008, 0x1155, "UI", []byte("1.2.3.40"))

	// Inner SQ with one defined-length item.
	var innerSeq bytes.Buffer
	binary.Write(&innerSeq, binary.LittleEndian, uint16(0x0008))
	binary.Write(&innerSeq, binary.LittleEndian, uint16(0x1140))
	innerSeq.WriteString("SQ")
	binary.Write(&innerSeq, binary.LittleEndian, uint16(0))
	binary.Write(&innerSeq, binary.LittleEndian, uint32(8+leaf.Len()))
	item(&innerSeq, uint32(leaf.Len()))
	innerSeq.Write(leaf.Bytes())

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0008))
	binary.Write(&buf, binary.LittleEndian, uint16(0x1115))
	buf.WriteString("SQ")
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(8+innerSeq.Len()))
	item(&buf, uint32(innerSeq.Len()))
	buf.Write(innerSeq.Bytes())

	ds, err := parseOne(t, explicitLETS, buf.Bytes())
	require.NoError(t, err)

	outer, err := ds.Get(tag.New(0x0008, 0x1115))
	require.NoError(t, err)
	require.Len(t, outer.Items(), 1)
	inner := outer.Items()[0].Get(tag.New(0x0008, 0x1140))
	require.NotNil(t, inner)
	require.True(t, inner.IsSequence())
	require.Len(t, inner.Items(), 1)
	assert.NotNil(t, inner.Items()[0].Get(tag.New(0x0008, 0x1155)))
}

// TestSequence_ItemOverrun: items spanning past the declared sequence
// length are malformed.
func TestSequence_ItemOverrun(t *testing.T) {
	var inner bytes.Buffer
	explicitLE(&inner, 0x0010, 0x0020, "LO", []byte("OVERRUN1"))

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0008))
	binary.Write(&buf, binary.LittleEndian, uint16(0x1115))
	buf.WriteString("SQ")
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	// Declared length cuts into the middle of the single item.
	binary.Write(&buf, binary.LittleEndian, uint32(8+uint32(inner.Len())-4))
	item(&buf, uint32(inner.Len()))
	buf.Write(inner.Bytes())

	_, err := parseOne(t, explicitLETS, buf.Bytes())
	require.ErrorIs(t, err, dicom.ErrMalformedElement)
}

// TestUndefinedLength_NonSequence: undefined length is only legal for SQ
// and encapsulated pixel data.
func TestUndefinedLength_NonSequence(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0008))
	binary.Write(&buf, binary.LittleEndian, uint16(0x0000))
	buf.WriteString("UN")
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))

	_, err := parseOne(t, explicitLETS, buf.Bytes())
	require.ErrorIs(t, err, dicom.ErrUnsupportedUndefinedLength)
}

// TestImplicitVR_UnknownTagDecodesAsUN: tags outside the dictionary fall
// back to UN with raw bytes.
func TestImplicitVR_UnknownTagDecodesAsUN(t *testing.T) {
	ts := &dicom.TransferSyntax{ExplicitVR: false, ByteOrder: binary.LittleEndian}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0099))
	binary.Write(&buf, binary.LittleEndian, uint16(0x0001))
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	buf.Write([]byte{0x12, 0x34})

	ds, err := parseOne(t, ts, buf.Bytes())
	require.NoError(t, err)
	elem, err := ds.Get(tag.New(0x0099, 0x0001))
	require.NoError(t, err)
	assert.Equal(t, vr.Unknown, elem.VR())
}

// TestBigEndian_OffsetTableStaysLittleEndian: the BOT is little-endian even
// when the dataset is big-endian.
func TestBigEndian_OffsetTableStaysLittleEndian(t *testing.T) {
	ts := &dicom.TransferSyntax{ExplicitVR: true, ByteOrder: binary.BigEndian}
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(0x7FE0))
	binary.Write(&buf, binary.BigEndian, uint16(0x0010))
	buf.WriteString("OB")
	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint32(0xFFFFFFFF))
	// BOT item: length is dataset byte order, offsets always little-endian.
	binary.Write(&buf, binary.BigEndian, uint16(0xFFFE))
	binary.Write(&buf, binary.BigEndian, uint16(0xE000))
	binary.Write(&buf, binary.BigEndian, uint32(4))
	binary.Write(&buf, binary.LittleEndian, uint32(0x11223344))
	// Delimitation.
	binary.Write(&buf, binary.BigEndian, uint16(0xFFFE))
	binary.Write(&buf, binary.BigEndian, uint16(0xE0DD))
	binary.Write(&buf, binary.BigEndian, uint32(0))

	ds, err := parseOne(t, ts, buf.Bytes())
	require.NoError(t, err)
	elem, err := ds.Get(tag.PixelData)
	require.NoError(t, err)
	require.True(t, elem.IsEncapsulated())
	assert.Equal(t, []uint32{0x11223344}, elem.Fragments().Offsets)
}
