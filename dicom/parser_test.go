package dicom_test

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/dicom"
	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/uid"
)

// explicitLE appends one Explicit VR Little Endian element with a 16-bit
// length.
func explicitLE(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	binary.Write(buf, binary.LittleEndian, group)
	binary.Write(buf, binary.LittleEndian, element)
	buf.WriteString(vr)
	binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	buf.Write(value)
}

// dicomFile wraps meta and main dataset bytes in a Part 10 envelope.
func dicomFile(meta, main []byte) []byte {
	out := make([]byte, 128)
	out = append(out, []byte("DICM")...)
	out = append(out, meta...)
	out = append(out, main...)
	return out
}

func metaWithTransferSyntax(ts string) []byte {
	var buf bytes.Buffer
	value := []byte(ts)
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	explicitLE(&buf, 0x0002, 0x0010, "UI", value)
	return buf.Bytes()
}

// TestReadFile_TooShort: anything under preamble+prefix is truncation.
func TestReadFile_TooShort(t *testing.T) {
	_, err := dicom.ReadFile(make([]byte, 100))
	require.ErrorIs(t, err, dicom.ErrUnexpectedEndOfData)
}

// TestReadFile_BadPrefix: 132 bytes without "DICM" at offset 128.
func TestReadFile_BadPrefix(t *testing.T) {
	data := make([]byte, 132)
	copy(data[128:], "DCMX")
	_, err := dicom.ReadFile(data)
	require.ErrorIs(t, err, dicom.ErrInvalidDicmPrefix)
}

// TestReadFile_MinimalFile: file meta with only the transfer syntax UID and
// an empty main dataset.
func TestReadFile_MinimalFile(t *testing.T) {
	data := dicomFile(metaWithTransferSyntax(uid.ExplicitVRLittleEndian), nil)
	file, err := dicom.ReadFile(data)
	require.NoError(t, err)

	assert.Equal(t, uid.ExplicitVRLittleEndian, file.TransferSyntaxUID())
	assert.Equal(t, 1, file.Meta.Len())
	assert.Equal(t, 0, file.Main.Len())
}

func TestReadFile_DefaultTransferSyntax(t *testing.T) {
	// No (0002,0010): the main dataset defaults to Explicit VR LE.
	var main bytes.Buffer
	explicitLE(&main, 0x0010, 0x0020, "LO", []byte("PATIENT1"))

	file, err := dicom.ReadFile(dicomFile(nil, main.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uid.ExplicitVRLittleEndian, file.TransferSyntaxUID())
	assert.Equal(t, "PATIENT1", file.Main.GetString(tag.New(0x0010, 0x0020)))
}

func TestReadFile_UnsupportedTransferSyntax(t *testing.T) {
	_, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax("1.2.3.999"), nil))
	require.ErrorIs(t, err, dicom.ErrUnsupportedTransferSyntax)
}

func TestReadFile_ExplicitLittleEndian(t *testing.T) {
	var main bytes.Buffer
	explicitLE(&main, 0x0008, 0x0060, "CS", []byte("CT"))
	explicitLE(&main, 0x0010, 0x0010, "PN", []byte("DOE^JOHN"))
	explicitLE(&main, 0x0028, 0x0010, "US", []byte{0x00, 0x02})

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.ExplicitVRLittleEndian), main.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "CT", file.Main.GetString(tag.New(0x0008, 0x0060)))
	assert.Equal(t, "DOE^JOHN", file.Main.GetString(tag.New(0x0010, 0x0010)))
	rows, ok := file.Main.GetUint16(tag.New(0x0028, 0x0010))
	require.True(t, ok)
	assert.Equal(t, uint16(512), rows)
}

func TestReadFile_ImplicitLittleEndian(t *testing.T) {
	var main bytes.Buffer
	// (0010,0020) LO "ID123456" in implicit VR: tag + 32-bit length.
	binary.Write(&main, binary.LittleEndian, uint16(0x0010))
	binary.Write(&main, binary.LittleEndian, uint16(0x0020))
	binary.Write(&main, binary.LittleEndian, uint32(8))
	main.WriteString("ID123456")

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.ImplicitVRLittleEndian), main.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "ID123456", file.Main.GetString(tag.New(0x0010, 0x0020)))
}

func TestReadFile_ExplicitBigEndian(t *testing.T) {
	var main bytes.Buffer
	binary.Write(&main, binary.BigEndian, uint16(0x0028))
	binary.Write(&main, binary.BigEndian, uint16(0x0010))
	main.WriteString("US")
	binary.Write(&main, binary.BigEndian, uint16(2))
	binary.Write(&main, binary.BigEndian, uint16(512))

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.ExplicitVRBigEndian), main.Bytes()))
	require.NoError(t, err)
	rows, ok := file.Main.GetUint16(tag.New(0x0028, 0x0010))
	require.True(t, ok)
	assert.Equal(t, uint16(512), rows)
}

func TestReadFile_Deflated(t *testing.T) {
	var main bytes.Buffer
	explicitLE(&main, 0x0010, 0x0020, "LO", []byte("DEFLATED"))

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(main.Bytes())
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.DeflatedExplicitVRLittle), compressed.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "DEFLATED", file.Main.GetString(tag.New(0x0010, 0x0020)))
}

// TestReadFile_PartialOnMalformed: elements before the malformed one remain
// available alongside the error.
func TestReadFile_PartialOnMalformed(t *testing.T) {
	var main bytes.Buffer
	explicitLE(&main, 0x0008, 0x0060, "CS", []byte("MR"))
	// Element declaring more bytes than remain in the buffer.
	binary.Write(&main, binary.LittleEndian, uint16(0x0010))
	binary.Write(&main, binary.LittleEndian, uint16(0x0010))
	main.WriteString("PN")
	binary.Write(&main, binary.LittleEndian, uint16(0xFF))
	main.WriteString("X")

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.ExplicitVRLittleEndian), main.Bytes()))
	require.Error(t, err)
	require.NotNil(t, file)
	assert.Equal(t, "MR", file.Main.GetString(tag.New(0x0008, 0x0060)))
}

func TestReadFile_EncapsulatedRecognized(t *testing.T) {
	// JPEG Baseline is recognized at the framing level.
	var main bytes.Buffer
	// (7FE0,0010) OB, undefined length, BOT with one offset, one fragment.
	binary.Write(&main, binary.LittleEndian, uint16(0x7FE0))
	binary.Write(&main, binary.LittleEndian, uint16(0x0010))
	main.WriteString("OB")
	binary.Write(&main, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(&main, binary.LittleEndian, uint32(0xFFFFFFFF))
	// Basic Offset Table item: one frame offset.
	binary.Write(&main, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&main, binary.LittleEndian, uint16(0xE000))
	binary.Write(&main, binary.LittleEndian, uint32(4))
	binary.Write(&main, binary.LittleEndian, uint32(0))
	// One compressed fragment.
	binary.Write(&main, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&main, binary.LittleEndian, uint16(0xE000))
	binary.Write(&main, binary.LittleEndian, uint32(4))
	main.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	// Sequence delimitation.
	binary.Write(&main, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&main, binary.LittleEndian, uint16(0xE0DD))
	binary.Write(&main, binary.LittleEndian, uint32(0))

	file, err := dicom.ReadFile(dicomFile(metaWithTransferSyntax(uid.JPEGBaseline8Bit), main.Bytes()))
	require.NoError(t, err)

	elem, err := file.Main.Get(tag.PixelData)
	require.NoError(t, err)
	require.True(t, elem.IsEncapsulated())
	frags := elem.Fragments()
	assert.Equal(t, []uint32{0}, frags.Offsets)
	require.Len(t, frags.Fragments, 1)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, frags.Fragments[0])
}
