package pdu_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/dimse/pdu"
)

func encodePDU(t *testing.T, p pdu.PDU) []byte {
	t.Helper()
	data, err := pdu.Encode(p)
	require.NoError(t, err)
	return data
}

// TestAssociateRQ_RoundTrip covers the negotiated fields end to end.
func TestAssociateRQ_RoundTrip(t *testing.T) {
	original := &pdu.AssociateRQ{
		ProtocolVersion:    0x0001,
		CalledAETitle:      pdu.PadAETitle("PACS_SERVER"),
		CallingAETitle:     pdu.PadAETitle("MY_CLIENT"),
		ApplicationContext: "1.2.840.10008.3.1.1.1",
		PresentationContexts: []pdu.PresentationContextRQ{{
			ID:               1,
			AbstractSyntax:   "1.2.840.10008.5.1.4.1.1.7",
			TransferSyntaxes: []string{"1.2.840.10008.1.2.1"},
		}},
		UserInfo: pdu.UserInformation{
			MaxPDULength:           32768,
			ImplementationClassUID: "1.2.3.4.5.6.7.8.9",
			ImplementationVersion:  "TEST_V1",
		},
	}

	data := encodePDU(t, original)
	assert.Equal(t, pdu.PDUTypeAssociateRQ, data[0])

	decoded, err := pdu.DecodePDU(data)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestAssociateRQ_UserIdentityRoundTrip(t *testing.T) {
	original := &pdu.AssociateRQ{
		ProtocolVersion:    0x0001,
		CalledAETitle:      pdu.PadAETitle("CALLED"),
		CallingAETitle:     pdu.PadAETitle("CALLING"),
		ApplicationContext: "1.2.840.10008.3.1.1.1",
		PresentationContexts: []pdu.PresentationContextRQ{{
			ID:               1,
			AbstractSyntax:   "1.2.840.10008.1.1",
			TransferSyntaxes: []string{"1.2.840.10008.1.2"},
		}},
		UserInfo: pdu.UserInformation{
			MaxPDULength:           16384,
			ImplementationClassUID: "1.2.3.4",
			ImplementationVersion:  "V1",
			UserIdentity: &pdu.UserIdentity{
				Type:                      pdu.UserIdentityUsernamePasscode,
				PositiveResponseRequested: true,
				PrimaryField:              []byte("operator"),
				SecondaryField:            []byte("secret"),
			},
		},
	}

	decoded, err := pdu.DecodePDU(encodePDU(t, original))
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestAssociateAC_RoundTrip(t *testing.T) {
	original := &pdu.AssociateAC{
		ProtocolVersion:    0x0001,
		CalledAETitle:      pdu.PadAETitle("CALLED"),
		CallingAETitle:     pdu.PadAETitle("CALLING"),
		ApplicationContext: "1.2.840.10008.3.1.1.1",
		PresentationContexts: []pdu.PresentationContextAC{
			{ID: 1, Result: pdu.PresentationContextAcceptance, TransferSyntax: "1.2.840.10008.1.2.1"},
			{ID: 3, Result: pdu.PresentationContextAbstractSyntaxNotSupported},
		},
		UserInfo: pdu.UserInformation{
			MaxPDULength:           16384,
			ImplementationClassUID: "1.2.3.4",
			ImplementationVersion:  "V1",
			UserIdentityResponse:   &pdu.UserIdentityResponse{ServerResponse: []byte("token")},
		},
	}

	decoded, err := pdu.DecodePDU(encodePDU(t, original))
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

// TestAssociateRJ_WireLayout pins the exact reject byte layout.
func TestAssociateRJ_WireLayout(t *testing.T) {
	rj := &pdu.AssociateRJ{
		Result: pdu.AssociateRJResultPermanent,
		Source: pdu.AssociateRJSourceServiceUser,
		Reason: 7,
	}
	data := encodePDU(t, rj)
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x01, 0x01, 0x07}, data)

	decoded, err := pdu.DecodePDU(data)
	require.NoError(t, err)
	require.Equal(t, rj, decoded)
}

// TestRelease_WireLayout pins the release handshake bytes.
func TestRelease_WireLayout(t *testing.T) {
	rq := encodePDU(t, &pdu.ReleaseRQ{})
	assert.Equal(t, []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00}, rq)

	rp := encodePDU(t, &pdu.ReleaseRP{})
	assert.Equal(t, []byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00}, rp)
}

func TestAbort_RoundTrip(t *testing.T) {
	original := &pdu.Abort{
		Source: pdu.AbortSourceServiceProvider,
		Reason: pdu.AbortReasonUnexpectedPDU,
	}
	data := encodePDU(t, original)
	assert.Len(t, data, 10)

	decoded, err := pdu.DecodePDU(data)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestDataTF_RoundTrip(t *testing.T) {
	original := &pdu.DataTF{Items: []pdu.PresentationDataValue{
		{PresentationContextID: 1, MessageControlHeader: 0x03, Data: []byte{0xAA, 0xBB}},
		{PresentationContextID: 1, MessageControlHeader: 0x00, Data: []byte{0xCC}},
	}}
	decoded, err := pdu.DecodePDU(encodePDU(t, original))
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

// TestPDULengthIntegrity checks the envelope length against the body for
// one PDU of each type other than A-ASSOCIATE-AC, built through the public
// API.
func TestPDULengthIntegrity(t *testing.T) {
	pdus := []pdu.PDU{
		&pdu.AssociateRQ{
			ProtocolVersion:    1,
			CalledAETitle:      pdu.PadAETitle("A"),
			CallingAETitle:     pdu.PadAETitle("B"),
			ApplicationContext: "1.2.840.10008.3.1.1.1",
			PresentationContexts: []pdu.PresentationContextRQ{{
				ID: 1, AbstractSyntax: "1.2.840.10008.1.1",
				TransferSyntaxes: []string{"1.2.840.10008.1.2"},
			}},
			UserInfo: pdu.UserInformation{MaxPDULength: 16384},
		},
		&pdu.AssociateRJ{Result: 1, Source: 1, Reason: 1},
		&pdu.DataTF{Items: []pdu.PresentationDataValue{{PresentationContextID: 1, MessageControlHeader: 3, Data: []byte("xy")}}},
		&pdu.ReleaseRQ{},
		&pdu.ReleaseRP{},
		&pdu.Abort{Source: 0, Reason: 0},
	}
	for _, p := range pdus {
		data := encodePDU(t, p)
		declared := binary.BigEndian.Uint32(data[2:6])
		assert.Equal(t, len(data)-6, int(declared), "PDU type 0x%02X", p.Type())
	}
}

func TestReadPDU_UnrecognizedType(t *testing.T) {
	_, err := pdu.DecodePDU([]byte{0x09, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, pdu.ErrUnrecognizedPDUType)
}

func TestDecodePDU_Truncated(t *testing.T) {
	data := encodePDU(t, &pdu.ReleaseRQ{})
	_, err := pdu.DecodePDU(data[:8])
	require.ErrorIs(t, err, pdu.ErrTruncatedPDU)

	_, err = pdu.DecodePDU(data[:3])
	require.ErrorIs(t, err, pdu.ErrTruncatedPDU)
}

// TestUnknownSubItemSkipped verifies forward compatibility: an unknown
// length-prefixed sub-item inside a known PDU is ignored.
func TestUnknownSubItemSkipped(t *testing.T) {
	rq := &pdu.AssociateRQ{
		ProtocolVersion:    1,
		CalledAETitle:      pdu.PadAETitle("CALLED"),
		CallingAETitle:     pdu.PadAETitle("CALLING"),
		ApplicationContext: "1.2.840.10008.3.1.1.1",
		UserInfo:           pdu.UserInformation{MaxPDULength: 16384},
	}
	data := encodePDU(t, rq)

	// Splice in a sub-item of unassigned type 0x77 and fix the envelope.
	unknown := []byte{0x77, 0x00, 0x00, 0x02, 0xDE, 0xAD}
	patched := append(append([]byte{}, data...), unknown...)
	binary.BigEndian.PutUint32(patched[2:6], uint32(len(patched)-6))

	decoded, err := pdu.DecodePDU(patched)
	require.NoError(t, err)
	require.Equal(t, rq.ApplicationContext, decoded.(*pdu.AssociateRQ).ApplicationContext)
}

func TestAETitleHelpers(t *testing.T) {
	padded := pdu.PadAETitle("MY_CLIENT")
	assert.Equal(t, "MY_CLIENT       ", string(padded[:]))
	assert.Equal(t, "MY_CLIENT", pdu.TrimAETitle(padded))

	assert.NoError(t, pdu.ValidateAETitle("A"))
	assert.NoError(t, pdu.ValidateAETitle("SIXTEEN_CHARS_AB"))
	assert.ErrorIs(t, pdu.ValidateAETitle(""), pdu.ErrInvalidAETitle)
	assert.ErrorIs(t, pdu.ValidateAETitle("   "), pdu.ErrInvalidAETitle)
	assert.ErrorIs(t, pdu.ValidateAETitle("SEVENTEEN_CHARS_X"), pdu.ErrInvalidAETitle)
	assert.ErrorIs(t, pdu.ValidateAETitle("BAD\x01TITLE"), pdu.ErrInvalidAETitle)
}

func TestReadPDU_FromStream(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, (&pdu.ReleaseRQ{}).Encode(&stream))
	require.NoError(t, (&pdu.ReleaseRP{}).Encode(&stream))

	first, err := pdu.ReadPDU(&stream)
	require.NoError(t, err)
	assert.IsType(t, &pdu.ReleaseRQ{}, first)

	second, err := pdu.ReadPDU(&stream)
	require.NoError(t, err)
	assert.IsType(t, &pdu.ReleaseRP{}, second)
}
