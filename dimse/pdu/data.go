package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DataTF represents a P-DATA-TF PDU carrying one or more Presentation Data
// Values.
type DataTF struct {
	Items []PresentationDataValue
}

// PresentationDataValue is one PDV: a presentation context id, a message
// control header, and an opaque message fragment. The wire length field
// covers the context id, the header, and the fragment.
type PresentationDataValue struct {
	PresentationContextID uint8
	MessageControlHeader  uint8
	Data                  []byte
}

// Message control header flags: bit 0 marks command fragments, bit 1 the
// last fragment of a command or dataset stream.
const (
	MessageControlCommand      uint8 = 0x01
	MessageControlLastFragment uint8 = 0x02
)

// Type returns the PDU type.
func (p *DataTF) Type() byte { return PDUTypeData }

// Encode writes the PDU to the writer.
func (p *DataTF) Encode(w io.Writer) error {
	var buf bytes.Buffer
	for _, item := range p.Items {
		encodePresentationDataValue(&buf, item)
	}
	if err := writePDUHeader(w, PDUTypeData, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads PDVs until the end of the PDU body.
func (p *DataTF) Decode(r io.Reader) error {
	for {
		item, err := decodePresentationDataValue(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		p.Items = append(p.Items, item)
	}
}

func encodePresentationDataValue(buf *bytes.Buffer, pdv PresentationDataValue) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(2+len(pdv.Data)))
	buf.Write(l[:])
	buf.WriteByte(pdv.PresentationContextID)
	buf.WriteByte(pdv.MessageControlHeader)
	buf.Write(pdv.Data)
}

func decodePresentationDataValue(r io.Reader) (PresentationDataValue, error) {
	var pdv PresentationDataValue

	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return pdv, fmt.Errorf("%w: PDV length", ErrTruncatedPDU)
		}
		return pdv, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > MaxPDULength {
		return pdv, fmt.Errorf("%w: PDV length %d exceeds %d", ErrPDUTooLarge, length, MaxPDULength)
	}
	if length < 2 {
		return pdv, fmt.Errorf("%w: PDV length %d, need at least 2", ErrTruncatedPDU, length)
	}

	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return pdv, fmt.Errorf("%w: PDV header", ErrTruncatedPDU)
	}
	pdv.PresentationContextID = header[0]
	pdv.MessageControlHeader = header[1]

	pdv.Data = make([]byte, length-2)
	if _, err := io.ReadFull(r, pdv.Data); err != nil {
		return pdv, fmt.Errorf("%w: PDV fragment wants %d bytes", ErrTruncatedPDU, length-2)
	}
	return pdv, nil
}

// IsCommand reports whether the PDV carries command set bytes.
func (pdv *PresentationDataValue) IsCommand() bool {
	return pdv.MessageControlHeader&MessageControlCommand != 0
}

// IsLastFragment reports whether this is the final fragment of its stream.
func (pdv *PresentationDataValue) IsLastFragment() bool {
	return pdv.MessageControlHeader&MessageControlLastFragment != 0
}
