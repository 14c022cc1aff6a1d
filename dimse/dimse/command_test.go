package dimse_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/dimse/dimse"
)

// TestCommandSet_GroupLengthLayout pins the Implicit VR LE layout: the
// Command Group Length element leads and its value spans everything after
// it.
func TestCommandSet_GroupLengthLayout(t *testing.T) {
	cmd := &dimse.CommandSet{
		CommandField:        dimse.CommandCEchoRQ,
		MessageID:           1,
		CommandDataSetType:  dimse.DataSetNotPresent,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
	}
	data := cmd.Encode()
	require.Greater(t, len(data), 12)

	// (0000,0000) UL, length 4.
	assert.Equal(t, uint16(0x0000), binary.LittleEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(0x0000), binary.LittleEndian.Uint16(data[2:4]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[4:8]))

	groupLength := binary.LittleEndian.Uint32(data[8:12])
	assert.Equal(t, len(data)-12, int(groupLength))
}

func TestCommandSet_RoundTrip(t *testing.T) {
	original := &dimse.CommandSet{
		CommandField:           dimse.CommandCStoreRQ,
		MessageID:              42,
		Priority:               dimse.PriorityHigh,
		CommandDataSetType:     dimse.DataSetPresent,
		AffectedSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		AffectedSOPInstanceUID: "1.2.3.4.5.6789",
		MoveOriginatorAETitle:  "ORIGINATOR",
	}
	decoded, err := dimse.DecodeCommandSet(original.Encode())
	require.NoError(t, err)

	assert.Equal(t, original.CommandField, decoded.CommandField)
	assert.Equal(t, original.MessageID, decoded.MessageID)
	assert.Equal(t, original.Priority, decoded.Priority)
	assert.Equal(t, original.CommandDataSetType, decoded.CommandDataSetType)
	assert.Equal(t, original.AffectedSOPClassUID, decoded.AffectedSOPClassUID)
	assert.Equal(t, original.AffectedSOPInstanceUID, decoded.AffectedSOPInstanceUID)
	assert.Equal(t, original.MoveOriginatorAETitle, decoded.MoveOriginatorAETitle)
}

func TestCommandSet_ResponseRoundTrip(t *testing.T) {
	original := &dimse.CommandSet{
		CommandField:              dimse.CommandCMoveRSP,
		MessageIDBeingRespondedTo: 9,
		CommandDataSetType:        dimse.DataSetNotPresent,
		Status:                    dimse.StatusPending,
		NumberOfRemainingSubOps:   3,
		NumberOfCompletedSubOps:   2,
		NumberOfFailedSubOps:      1,
		NumberOfWarningSubOps:     4,
	}
	decoded, err := dimse.DecodeCommandSet(original.Encode())
	require.NoError(t, err)

	assert.Equal(t, original.MessageIDBeingRespondedTo, decoded.MessageIDBeingRespondedTo)
	assert.Equal(t, original.Status, decoded.Status)
	assert.Equal(t, original.NumberOfRemainingSubOps, decoded.NumberOfRemainingSubOps)
	assert.Equal(t, original.NumberOfCompletedSubOps, decoded.NumberOfCompletedSubOps)
	assert.Equal(t, original.NumberOfFailedSubOps, decoded.NumberOfFailedSubOps)
	assert.Equal(t, original.NumberOfWarningSubOps, decoded.NumberOfWarningSubOps)
}

func TestDecodeCommandSet_MissingCommandField(t *testing.T) {
	_, err := dimse.DecodeCommandSet([]byte{
		// (0000,0800) US 2, DataSetNotPresent — no command field.
		0x00, 0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x01, 0x01,
	})
	require.ErrorIs(t, err, dimse.ErrMissingCommandField)
}

// TestClassifyStatus_Table walks the documented ranges.
func TestClassifyStatus_Table(t *testing.T) {
	cases := []struct {
		status uint16
		want   dimse.StatusClass
	}{
		{0x0000, dimse.StatusClassSuccess},
		{0x0001, dimse.StatusClassWarning},
		{0x0107, dimse.StatusClassWarning},
		{0x0116, dimse.StatusClassWarning},
		{0xB000, dimse.StatusClassWarning},
		{0xB7FF, dimse.StatusClassWarning},
		{0xBFFF, dimse.StatusClassWarning},
		{0xA000, dimse.StatusClassRefused},
		{0xA700, dimse.StatusClassRefused},
		{0xA7FF, dimse.StatusClassRefused},
		{0xA801, dimse.StatusClassFailed},
		{0xC000, dimse.StatusClassFailed},
		{0xCFFF, dimse.StatusClassFailed},
		{0x0122, dimse.StatusClassFailed},
		{0x0117, dimse.StatusClassFailed},
		{0x0124, dimse.StatusClassFailed},
		{0xFE00, dimse.StatusClassCancel},
		{0xFF00, dimse.StatusClassPending},
		{0xFF01, dimse.StatusClassPending},
		{0x1234, dimse.StatusClassFailed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, dimse.ClassifyStatus(tc.status), "status 0x%04X", tc.status)
	}
}

// TestClassifyStatus_Total confirms every status maps to exactly one of the
// six classes.
func TestClassifyStatus_Total(t *testing.T) {
	for s := 0; s <= 0xFFFF; s++ {
		c := dimse.ClassifyStatus(uint16(s))
		assert.Contains(t, []dimse.StatusClass{
			dimse.StatusClassSuccess, dimse.StatusClassWarning, dimse.StatusClassRefused,
			dimse.StatusClassFailed, dimse.StatusClassCancel, dimse.StatusClassPending,
		}, c, "status 0x%04X", s)
	}
}
