// Package dimse implements the DICOM Message Service Element (PS3.7):
// command set encoding, status classification, and the fragmentation and
// reassembly of messages into P-DATA-TF PDUs.
package dimse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pacsforge/dicomnet/dicom"
	"github.com/pacsforge/dicomnet/dicom/tag"
)

// Command field values (DICOM Part 7, Section E.1).
const (
	CommandCStoreRQ  uint16 = 0x0001
	CommandCStoreRSP uint16 = 0x8001
	CommandCGetRQ    uint16 = 0x0010
	CommandCGetRSP   uint16 = 0x8010
	CommandCFindRQ   uint16 = 0x0020
	CommandCFindRSP  uint16 = 0x8020
	CommandCMoveRQ   uint16 = 0x0021
	CommandCMoveRSP  uint16 = 0x8021
	CommandCEchoRQ   uint16 = 0x0030
	CommandCEchoRSP  uint16 = 0x8030
	CommandCCancelRQ uint16 = 0x0FFF
)

// Command data set type values (0000,0800).
const (
	DataSetPresent    uint16 = 0x0000
	DataSetNotPresent uint16 = 0x0101
)

// Priority values (0000,0700).
const (
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
	PriorityLow    uint16 = 0x0002
)

// ErrMissingCommandField indicates a command set without (0000,0100).
var ErrMissingCommandField = errors.New("command set missing Command Field")

// CommandSet carries the DIMSE primitive fields of one command
// (group 0000, always Implicit VR Little Endian on the wire).
type CommandSet struct {
	CommandField              uint16
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	RequestedSOPClassUID      string
	RequestedSOPInstanceUID   string
	Priority                  uint16
	CommandDataSetType        uint16
	Status                    uint16
	NumberOfRemainingSubOps   uint16
	NumberOfCompletedSubOps   uint16
	NumberOfFailedSubOps      uint16
	NumberOfWarningSubOps     uint16
	MoveDestination           string
	MoveOriginatorAETitle     string
	MoveOriginatorMessageID   uint16
}

// IsRequest reports whether the command field is a request (bit 15 clear).
func (cs *CommandSet) IsRequest() bool {
	return cs.CommandField&0x8000 == 0
}

// IsResponse reports whether the command field is a response.
func (cs *CommandSet) IsResponse() bool {
	return !cs.IsRequest()
}

// HasDataSet reports whether the command announces an accompanying dataset.
func (cs *CommandSet) HasDataSet() bool {
	return cs.CommandDataSetType != DataSetNotPresent
}

// commandElement is one group-0000 element staged for encoding.
type commandElement struct {
	tag  tag.Tag
	data []byte
}

// Encode serializes the command set as Implicit VR Little Endian group 0000
// elements. The Command Group Length element (0000,0000) comes first in
// layout and its value is the byte length of all elements that follow it.
func (cs *CommandSet) Encode() []byte {
	var elems []commandElement

	addUID := func(t tag.Tag, s string) {
		if s == "" {
			return
		}
		data := []byte(s)
		if len(data)%2 == 1 {
			data = append(data, 0x00)
		}
		elems = append(elems, commandElement{t, data})
	}
	addAE := func(t tag.Tag, s string) {
		if s == "" {
			return
		}
		data := []byte(s)
		if len(data)%2 == 1 {
			data = append(data, ' ')
		}
		elems = append(elems, commandElement{t, data})
	}
	addU16 := func(t tag.Tag, v uint16) {
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, v)
		elems = append(elems, commandElement{t, data})
	}

	addUID(tag.New(0x0000, 0x0002), cs.AffectedSOPClassUID)
	addUID(tag.New(0x0000, 0x0003), cs.RequestedSOPClassUID)
	addU16(tag.New(0x0000, 0x0100), cs.CommandField)
	if cs.MessageID != 0 || cs.IsRequest() {
		addU16(tag.New(0x0000, 0x0110), cs.MessageID)
	}
	if cs.MessageIDBeingRespondedTo != 0 || cs.IsResponse() {
		addU16(tag.New(0x0000, 0x0120), cs.MessageIDBeingRespondedTo)
	}
	addAE(tag.New(0x0000, 0x0600), cs.MoveDestination)
	if cs.IsRequest() && cs.CommandField != CommandCEchoRQ && cs.CommandField != CommandCCancelRQ {
		addU16(tag.New(0x0000, 0x0700), cs.Priority)
	}
	addU16(tag.New(0x0000, 0x0800), cs.CommandDataSetType)
	if cs.IsResponse() {
		addU16(tag.New(0x0000, 0x0900), cs.Status)
	}
	addUID(tag.New(0x0000, 0x1000), cs.AffectedSOPInstanceUID)
	addUID(tag.New(0x0000, 0x1001), cs.RequestedSOPInstanceUID)
	if cs.NumberOfRemainingSubOps != 0 {
		addU16(tag.New(0x0000, 0x1020), cs.NumberOfRemainingSubOps)
	}
	if cs.NumberOfCompletedSubOps != 0 {
		addU16(tag.New(0x0000, 0x1021), cs.NumberOfCompletedSubOps)
	}
	if cs.NumberOfFailedSubOps != 0 {
		addU16(tag.New(0x0000, 0x1022), cs.NumberOfFailedSubOps)
	}
	if cs.NumberOfWarningSubOps != 0 {
		addU16(tag.New(0x0000, 0x1023), cs.NumberOfWarningSubOps)
	}
	addAE(tag.New(0x0000, 0x1030), cs.MoveOriginatorAETitle)
	if cs.MoveOriginatorMessageID != 0 {
		addU16(tag.New(0x0000, 0x1031), cs.MoveOriginatorMessageID)
	}

	sort.Slice(elems, func(i, j int) bool {
		return elems[i].tag.Compare(elems[j].tag) < 0
	})

	groupLength := 0
	for _, e := range elems {
		groupLength += 8 + len(e.data)
	}

	w := dicom.NewWriter(binary.LittleEndian)
	w.WriteUint16(tag.CommandGroupLength.Group)
	w.WriteUint16(tag.CommandGroupLength.Element)
	w.WriteUint32(4)
	w.WriteUint32(uint32(groupLength))
	for _, e := range elems {
		w.WriteUint16(e.tag.Group)
		w.WriteUint16(e.tag.Element)
		w.WriteUint32(uint32(len(e.data)))
		w.WriteBytes(e.data)
	}
	return w.Bytes()
}

// DecodeCommandSet parses Implicit VR Little Endian group 0000 bytes into a
// CommandSet. The group length element is neither required nor checked;
// only a missing CommandField is an error.
func DecodeCommandSet(data []byte) (*CommandSet, error) {
	ts := &dicom.TransferSyntax{ExplicitVR: false, ByteOrder: binary.LittleEndian}
	reader := dicom.NewBytesReader(data, binary.LittleEndian)
	parser := dicom.NewElementParser(reader, ts)

	ds := dicom.NewDataSet()
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if err == io.EOF || errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode command set: %w", err)
		}
		ds.Add(elem)
	}

	cs := &CommandSet{}
	var ok bool
	if cs.CommandField, ok = ds.GetUint16(tag.New(0x0000, 0x0100)); !ok {
		return nil, ErrMissingCommandField
	}
	cs.MessageID, _ = ds.GetUint16(tag.New(0x0000, 0x0110))
	cs.MessageIDBeingRespondedTo, _ = ds.GetUint16(tag.New(0x0000, 0x0120))
	cs.AffectedSOPClassUID = ds.GetString(tag.New(0x0000, 0x0002))
	cs.RequestedSOPClassUID = ds.GetString(tag.New(0x0000, 0x0003))
	cs.AffectedSOPInstanceUID = ds.GetString(tag.New(0x0000, 0x1000))
	cs.RequestedSOPInstanceUID = ds.GetString(tag.New(0x0000, 0x1001))
	cs.Priority, _ = ds.GetUint16(tag.New(0x0000, 0x0700))
	cs.CommandDataSetType, _ = ds.GetUint16(tag.New(0x0000, 0x0800))
	cs.Status, _ = ds.GetUint16(tag.New(0x0000, 0x0900))
	cs.NumberOfRemainingSubOps, _ = ds.GetUint16(tag.New(0x0000, 0x1020))
	cs.NumberOfCompletedSubOps, _ = ds.GetUint16(tag.New(0x0000, 0x1021))
	cs.NumberOfFailedSubOps, _ = ds.GetUint16(tag.New(0x0000, 0x1022))
	cs.NumberOfWarningSubOps, _ = ds.GetUint16(tag.New(0x0000, 0x1023))
	cs.MoveDestination = ds.GetString(tag.New(0x0000, 0x0600))
	cs.MoveOriginatorAETitle = ds.GetString(tag.New(0x0000, 0x1030))
	cs.MoveOriginatorMessageID, _ = ds.GetUint16(tag.New(0x0000, 0x1031))
	return cs, nil
}

// EncodeDataSet serializes a flat dataset (no sequences, no encapsulated
// pixel data) for transmission on a presentation context. DIMSE identifiers
// are built programmatically and stay flat; sequence encoding is not needed
// for the supported services.
func EncodeDataSet(ds *dicom.DataSet, ts *dicom.TransferSyntax) ([]byte, error) {
	w := dicom.NewWriter(ts.ByteOrder)
	for _, elem := range ds.Elements() {
		if elem.IsSequence() || elem.IsEncapsulated() {
			return nil, fmt.Errorf("cannot encode element %s: sequences are not supported in identifiers", elem.Tag())
		}
		data := elem.Value().Bytes()
		if len(data)%2 == 1 {
			data = append(data, elem.VR().PaddingByte())
		}
		w.WriteUint16(elem.Tag().Group)
		w.WriteUint16(elem.Tag().Element)
		if ts.ExplicitVR {
			w.WriteString(elem.VR().String())
			if elem.VR().Uses32BitLength() {
				w.WriteZeros(2)
				w.WriteUint32(uint32(len(data)))
			} else {
				w.WriteUint16(uint16(len(data)))
			}
		} else {
			w.WriteUint32(uint32(len(data)))
		}
		w.WriteBytes(data)
	}
	return w.Bytes(), nil
}

// DecodeDataSet parses dataset bytes received on a presentation context
// using its negotiated transfer syntax.
func DecodeDataSet(data []byte, ts *dicom.TransferSyntax) (*dicom.DataSet, error) {
	reader := dicom.NewBytesReader(data, ts.ByteOrder)
	parser := dicom.NewElementParser(reader, ts)

	ds := dicom.NewDataSet()
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if err == io.EOF || errors.Is(err, io.EOF) {
				return ds, nil
			}
			return ds, err
		}
		ds.Add(elem)
	}
}
