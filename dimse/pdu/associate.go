package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// AssociateRQ represents an A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	ProtocolVersion      uint16
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextRQ
	UserInfo             UserInformation
}

// PresentationContextRQ is a proposed presentation context: an odd id, one
// abstract syntax, and an ordered non-empty transfer syntax list.
type PresentationContextRQ struct {
	ID               uint8
	AbstractSyntax   string
	TransferSyntaxes []string
}

// AssociateAC represents an A-ASSOCIATE-AC PDU.
type AssociateAC struct {
	ProtocolVersion      uint16
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextAC
	UserInfo             UserInformation
}

// PresentationContextAC is a negotiated presentation context result. The
// transfer syntax is meaningful only when Result is acceptance.
type PresentationContextAC struct {
	ID             uint8
	Result         uint8
	TransferSyntax string
}

// Presentation context results (PS3.8 Table 9-18).
const (
	PresentationContextAcceptance                   uint8 = 0
	PresentationContextUserRejection                uint8 = 1
	PresentationContextProviderRejection            uint8 = 2
	PresentationContextAbstractSyntaxNotSupported   uint8 = 3
	PresentationContextTransferSyntaxesNotSupported uint8 = 4
)

// AssociateRJ represents an A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result uint8
	Source uint8
	Reason uint8
}

// Rejection results (PS3.8 Table 9-21).
const (
	AssociateRJResultPermanent uint8 = 1
	AssociateRJResultTransient uint8 = 2
)

// Rejection sources.
const (
	AssociateRJSourceServiceUser                 uint8 = 1
	AssociateRJSourceServiceProviderACSE         uint8 = 2
	AssociateRJSourceServiceProviderPresentation uint8 = 3
)

// UserInformation is the User Information (0x50) container.
type UserInformation struct {
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
	// UserIdentity is the identity negotiation item proposed in an RQ.
	UserIdentity *UserIdentity
	// UserIdentityResponse is the server response carried in an AC.
	UserIdentityResponse *UserIdentityResponse
}

// User identity types (PS3.7 Annex D.3.3.7).
const (
	UserIdentityUsername         uint8 = 1
	UserIdentityUsernamePasscode uint8 = 2
	UserIdentityKerberos         uint8 = 3
	UserIdentitySAML             uint8 = 4
	UserIdentityJWT              uint8 = 5
)

// UserIdentity is the User Identity negotiation sub-item (0x58).
type UserIdentity struct {
	Type                      uint8
	PositiveResponseRequested bool
	PrimaryField              []byte
	SecondaryField            []byte
}

// UserIdentityResponse is the User Identity server response sub-item (0x59).
type UserIdentityResponse struct {
	ServerResponse []byte
}

// Type returns the PDU type.
func (p *AssociateRQ) Type() byte { return PDUTypeAssociateRQ }

// Encode writes the PDU to the writer.
func (p *AssociateRQ) Encode(w io.Writer) error {
	var buf bytes.Buffer
	encodeAssociateHeader(&buf, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle)

	if err := encodeItem(&buf, ItemTypeApplicationContext, []byte(p.ApplicationContext)); err != nil {
		return err
	}
	for _, pc := range p.PresentationContexts {
		if err := encodePresentationContextRQ(&buf, pc); err != nil {
			return err
		}
	}
	if err := encodeUserInformation(&buf, p.UserInfo); err != nil {
		return err
	}

	if err := writePDUHeader(w, PDUTypeAssociateRQ, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads the PDU body from the reader.
func (p *AssociateRQ) Decode(r io.Reader) error {
	var err error
	p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle, err = decodeAssociateHeader(r)
	if err != nil {
		return err
	}

	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch itemType {
		case ItemTypeApplicationContext:
			p.ApplicationContext = string(itemData)
		case ItemTypePresentationContextRQ:
			pc, err := decodePresentationContextRQ(itemData)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case ItemTypeUserInformation:
			ui, err := decodeUserInformation(itemData)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
		// Unknown sub-item types are length-prefixed and skipped.
	}
}

// Type returns the PDU type.
func (p *AssociateAC) Type() byte { return PDUTypeAssociateAC }

// Encode writes the PDU to the writer.
func (p *AssociateAC) Encode(w io.Writer) error {
	var buf bytes.Buffer
	encodeAssociateHeader(&buf, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle)

	if err := encodeItem(&buf, ItemTypeApplicationContext, []byte(p.ApplicationContext)); err != nil {
		return err
	}
	for _, pc := range p.PresentationContexts {
		if err := encodePresentationContextAC(&buf, pc); err != nil {
			return err
		}
	}
	if err := encodeUserInformation(&buf, p.UserInfo); err != nil {
		return err
	}

	if err := writePDUHeader(w, PDUTypeAssociateAC, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads the PDU body from the reader.
func (p *AssociateAC) Decode(r io.Reader) error {
	var err error
	p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle, err = decodeAssociateHeader(r)
	if err != nil {
		return err
	}

	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch itemType {
		case ItemTypeApplicationContext:
			p.ApplicationContext = string(itemData)
		case ItemTypePresentationContextAC:
			pc, err := decodePresentationContextAC(itemData)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case ItemTypeUserInformation:
			ui, err := decodeUserInformation(itemData)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
	}
}

// Type returns the PDU type.
func (p *AssociateRJ) Type() byte { return PDUTypeAssociateRJ }

// Encode writes the 4-byte reject body: reserved, result, source, reason.
func (p *AssociateRJ) Encode(w io.Writer) error {
	if err := writePDUHeader(w, PDUTypeAssociateRJ, 4); err != nil {
		return err
	}
	_, err := w.Write([]byte{0, p.Result, p.Source, p.Reason})
	return err
}

// Decode reads the reject body.
func (p *AssociateRJ) Decode(r io.Reader) error {
	var body [4]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return fmt.Errorf("%w: reject body", ErrTruncatedPDU)
	}
	p.Result = body[1]
	p.Source = body[2]
	p.Reason = body[3]
	return nil
}

// encodeAssociateHeader writes the fixed 68-byte associate header: protocol
// version, reserved, called AE, calling AE, 32 reserved bytes.
func encodeAssociateHeader(buf *bytes.Buffer, version uint16, called, calling [16]byte) {
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], version)
	buf.Write(v[:])
	buf.Write([]byte{0, 0})
	buf.Write(called[:])
	buf.Write(calling[:])
	buf.Write(make([]byte, 32))
}

func decodeAssociateHeader(r io.Reader) (version uint16, called, calling [16]byte, err error) {
	var header [68]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		err = fmt.Errorf("%w: associate header", ErrTruncatedPDU)
		return
	}
	version = binary.BigEndian.Uint16(header[0:2])
	copy(called[:], header[4:20])
	copy(calling[:], header[20:36])
	return
}

func encodePresentationContextRQ(w io.Writer, pc PresentationContextRQ) error {
	var buf bytes.Buffer
	buf.Write([]byte{pc.ID, 0, 0, 0})

	if err := encodeItem(&buf, ItemTypeAbstractSyntax, []byte(pc.AbstractSyntax)); err != nil {
		return err
	}
	for _, ts := range pc.TransferSyntaxes {
		if err := encodeItem(&buf, ItemTypeTransferSyntax, []byte(ts)); err != nil {
			return err
		}
	}
	return encodeItem(w, ItemTypePresentationContextRQ, buf.Bytes())
}

func decodePresentationContextRQ(data []byte) (PresentationContextRQ, error) {
	var pc PresentationContextRQ
	if len(data) < 4 {
		return pc, fmt.Errorf("%w: presentation context header", ErrTruncatedPDU)
	}
	pc.ID = data[0]
	r := bytes.NewReader(data[4:])
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return pc, nil
		}
		if err != nil {
			return pc, err
		}
		switch itemType {
		case ItemTypeAbstractSyntax:
			pc.AbstractSyntax = string(itemData)
		case ItemTypeTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, string(itemData))
		}
	}
}

func encodePresentationContextAC(w io.Writer, pc PresentationContextAC) error {
	var buf bytes.Buffer
	buf.Write([]byte{pc.ID, 0, pc.Result, 0})

	// Transfer syntax carried only for accepted contexts.
	if pc.Result == PresentationContextAcceptance {
		if err := encodeItem(&buf, ItemTypeTransferSyntax, []byte(pc.TransferSyntax)); err != nil {
			return err
		}
	}
	return encodeItem(w, ItemTypePresentationContextAC, buf.Bytes())
}

func decodePresentationContextAC(data []byte) (PresentationContextAC, error) {
	var pc PresentationContextAC
	if len(data) < 4 {
		return pc, fmt.Errorf("%w: presentation context header", ErrTruncatedPDU)
	}
	pc.ID = data[0]
	pc.Result = data[2]
	r := bytes.NewReader(data[4:])
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return pc, nil
		}
		if err != nil {
			return pc, err
		}
		if itemType == ItemTypeTransferSyntax && pc.Result == PresentationContextAcceptance {
			pc.TransferSyntax = string(itemData)
		}
	}
}

func encodeUserInformation(w io.Writer, ui UserInformation) error {
	var buf bytes.Buffer

	if ui.MaxPDULength > 0 {
		var lengthBuf [4]byte
		binary.BigEndian.PutUint32(lengthBuf[:], ui.MaxPDULength)
		if err := encodeItem(&buf, ItemTypeMaxLength, lengthBuf[:]); err != nil {
			return err
		}
	}
	if ui.ImplementationClassUID != "" {
		if err := encodeItem(&buf, ItemTypeImplementationClassUID, []byte(ui.ImplementationClassUID)); err != nil {
			return err
		}
	}
	if ui.ImplementationVersion != "" {
		if err := encodeItem(&buf, ItemTypeImplementationVersion, []byte(ui.ImplementationVersion)); err != nil {
			return err
		}
	}
	if ui.UserIdentity != nil {
		if err := encodeItem(&buf, ItemTypeUserIdentity, encodeUserIdentity(ui.UserIdentity)); err != nil {
			return err
		}
	}
	if ui.UserIdentityResponse != nil {
		if err := encodeItem(&buf, ItemTypeUserIdentityResponse, encodeUserIdentityResponse(ui.UserIdentityResponse)); err != nil {
			return err
		}
	}

	return encodeItem(w, ItemTypeUserInformation, buf.Bytes())
}

func decodeUserInformation(data []byte) (UserInformation, error) {
	var ui UserInformation
	r := bytes.NewReader(data)
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return ui, nil
		}
		if err != nil {
			return ui, err
		}
		switch itemType {
		case ItemTypeMaxLength:
			if len(itemData) != 4 {
				return ui, fmt.Errorf("%w: maximum length sub-item has %d bytes", ErrTruncatedPDU, len(itemData))
			}
			ui.MaxPDULength = binary.BigEndian.Uint32(itemData)
		case ItemTypeImplementationClassUID:
			ui.ImplementationClassUID = string(itemData)
		case ItemTypeImplementationVersion:
			ui.ImplementationVersion = string(itemData)
		case ItemTypeUserIdentity:
			id, err := decodeUserIdentity(itemData)
			if err != nil {
				return ui, err
			}
			ui.UserIdentity = id
		case ItemTypeUserIdentityResponse:
			rsp, err := decodeUserIdentityResponse(itemData)
			if err != nil {
				return ui, err
			}
			ui.UserIdentityResponse = rsp
		}
	}
}

// encodeUserIdentity lays out the 0x58 body: identity type, positive
// response flag, then the u16-length-prefixed primary and secondary fields.
// The secondary field is encoded as zero length when absent.
func encodeUserIdentity(id *UserIdentity) []byte {
	var buf bytes.Buffer
	flag := byte(0)
	if id.PositiveResponseRequested {
		flag = 1
	}
	buf.WriteByte(id.Type)
	buf.WriteByte(flag)
	writeLengthPrefixed(&buf, id.PrimaryField)
	writeLengthPrefixed(&buf, id.SecondaryField)
	return buf.Bytes()
}

func decodeUserIdentity(data []byte) (*UserIdentity, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: user identity sub-item", ErrTruncatedPDU)
	}
	id := &UserIdentity{
		Type:                      data[0],
		PositiveResponseRequested: data[1] != 0,
	}
	rest := data[2:]
	primary, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	secondary, _, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	id.PrimaryField = primary
	id.SecondaryField = secondary
	return id, nil
}

func encodeUserIdentityResponse(rsp *UserIdentityResponse) []byte {
	var buf bytes.Buffer
	writeLengthPrefixed(&buf, rsp.ServerResponse)
	return buf.Bytes()
}

func decodeUserIdentityResponse(data []byte) (*UserIdentityResponse, error) {
	response, _, err := readLengthPrefixed(data)
	if err != nil {
		return nil, err
	}
	return &UserIdentityResponse{ServerResponse: response}, nil
}

func writeLengthPrefixed(buf *bytes.Buffer, field []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(field)))
	buf.Write(l[:])
	buf.Write(field)
}

func readLengthPrefixed(data []byte) (field, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("%w: length-prefixed field", ErrTruncatedPDU)
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+n {
		return nil, nil, fmt.Errorf("%w: field wants %d bytes, %d available", ErrTruncatedPDU, n, len(data)-2)
	}
	if n > 0 {
		field = data[2 : 2+n]
	}
	return field, data[2+n:], nil
}
