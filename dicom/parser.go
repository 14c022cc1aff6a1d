package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/uid"
)

// preambleLength is the unvalidated preamble preceding the "DICM" prefix.
const preambleLength = 128

// dicmPrefix follows the preamble in every Part 10 file.
const dicmPrefix = "DICM"

// File is a parsed DICOM Part 10 file: the File Meta Information (group
// 0002, always Explicit VR Little Endian) and the main dataset encoded per
// the negotiated transfer syntax.
type File struct {
	Meta *DataSet
	Main *DataSet
	// TransferSyntax is the encoding of Main, defaulted to Explicit VR
	// Little Endian when (0002,0010) is absent.
	TransferSyntax *TransferSyntax
}

// TransferSyntaxUID returns the UID governing the main dataset.
func (f *File) TransferSyntaxUID() string {
	return f.TransferSyntax.UID
}

// SOPClassUID returns (0008,0016) from the main dataset.
func (f *File) SOPClassUID() string {
	return f.Main.GetString(tag.New(0x0008, 0x0016))
}

// SOPInstanceUID returns (0008,0018) from the main dataset.
func (f *File) SOPInstanceUID() string {
	return f.Main.GetString(tag.New(0x0008, 0x0018))
}

// ReadFile parses a DICOM Part 10 file from a byte slice.
//
// On a malformed element the elements parsed so far remain valid: the
// partial File is returned together with the error so callers can inspect
// what was recovered. Absent pixel data is not an error.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7
func ReadFile(data []byte) (*File, error) {
	if len(data) < preambleLength+len(dicmPrefix) {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d for preamble and prefix",
			ErrUnexpectedEndOfData, len(data), preambleLength+len(dicmPrefix))
	}
	if string(data[preambleLength:preambleLength+4]) != dicmPrefix {
		return nil, fmt.Errorf("%w: got % X", ErrInvalidDicmPrefix, data[preambleLength:preambleLength+4])
	}

	body := data[preambleLength+4:]

	meta, metaLen, err := readFileMeta(body)
	if err != nil {
		return nil, err
	}

	ts, err := detectTransferSyntax(meta)
	if err != nil {
		return nil, err
	}

	file := &File{Meta: meta, Main: NewDataSet(), TransferSyntax: ts}

	rest := body[metaLen:]
	var reader *Reader
	if ts.Deflated {
		// Deflated datasets use raw DEFLATE (RFC 1951), not zlib framing.
		reader = NewReader(flate.NewReader(bytes.NewReader(rest)), ts.ByteOrder)
	} else {
		reader = NewBytesReader(rest, ts.ByteOrder)
	}

	if err := readDataset(reader, ts, file.Main); err != nil {
		return file, err
	}
	return file, nil
}

// ReadFileFrom reads all of r and parses it as a Part 10 file.
func ReadFileFrom(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ReadFile(data)
}

// ParseFile opens and parses a DICOM file from the filesystem.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return ReadFile(data)
}

// readFileMeta parses the File Meta Information group from the start of
// body, stopping at the first element whose group is not 0x0002. Returns the
// meta dataset and the number of bytes it occupied.
//
// File Meta is always Explicit VR Little Endian regardless of the transfer
// syntax of the main dataset.
func readFileMeta(body []byte) (*DataSet, int, error) {
	metaTS := &TransferSyntax{ExplicitVR: true, ByteOrder: binary.LittleEndian}
	reader := NewBytesReader(body, binary.LittleEndian)
	parser := NewElementParser(reader, metaTS)

	meta := NewDataSet()
	for {
		if reader.Remaining() < 8 {
			break
		}
		// Peek the group of the next element; anything outside group 0002
		// belongs to the main dataset.
		pos := int(reader.Position())
		if binary.LittleEndian.Uint16(body[pos:pos+2]) != tag.MetadataGroup {
			break
		}
		elem, err := parser.ReadElement()
		if err != nil {
			return nil, 0, fmt.Errorf("file meta: %w", unexpectedEOF(err))
		}
		meta.Add(elem)
	}
	return meta, int(reader.Position()), nil
}

// detectTransferSyntax resolves (0002,0010), defaulting to Explicit VR
// Little Endian when the element is absent.
func detectTransferSyntax(meta *DataSet) (*TransferSyntax, error) {
	tsUID := uid.Trim(meta.GetString(tag.TransferSyntaxUID))
	if tsUID == "" {
		return LookupTransferSyntax(uid.ExplicitVRLittleEndian)
	}
	return LookupTransferSyntax(tsUID)
}

// readDataset reads elements into ds until end of input. A malformed element
// truncates parsing; previously parsed elements remain in ds and the error
// is returned.
func readDataset(reader *Reader, ts *TransferSyntax, ds *DataSet) error {
	parser := NewElementParser(reader, ts)
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if err == io.EOF || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ds.Add(elem)
	}
}
