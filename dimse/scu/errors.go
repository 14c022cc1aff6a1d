package scu

import (
	"errors"
	"fmt"

	"github.com/pacsforge/dicomnet/dimse/dimse"
)

// ErrSopClassNotSupported indicates no accepted presentation context covers
// the SOP class of the operation.
var ErrSopClassNotSupported = errors.New("SOP class not supported on this association")

// ErrNotConnected indicates an operation on a client without an established
// association.
var ErrNotConnected = errors.New("client is not connected")

// StoreFailedError carries the terminal status of a failed C-STORE.
type StoreFailedError struct {
	Status uint16
}

func (e *StoreFailedError) Error() string {
	return fmt.Sprintf("C-STORE failed: status=0x%04X (%s)", e.Status, dimse.ClassifyStatus(e.Status))
}

// QueryFailedError carries the terminal status of a failed C-FIND.
type QueryFailedError struct {
	Status uint16
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("C-FIND failed: status=0x%04X (%s)", e.Status, dimse.ClassifyStatus(e.Status))
}

// RetrieveFailedError carries the terminal status of a failed C-GET or
// C-MOVE, along with the sub-operation counts of the final response.
type RetrieveFailedError struct {
	Status    uint16
	Completed uint16
	Failed    uint16
	Warnings  uint16
}

func (e *RetrieveFailedError) Error() string {
	return fmt.Sprintf("retrieve failed: status=0x%04X (%s), completed=%d failed=%d warnings=%d",
		e.Status, dimse.ClassifyStatus(e.Status), e.Completed, e.Failed, e.Warnings)
}

// EchoFailedError carries a non-success C-ECHO status.
type EchoFailedError struct {
	Status uint16
}

func (e *EchoFailedError) Error() string {
	return fmt.Sprintf("C-ECHO failed: status=0x%04X (%s)", e.Status, dimse.ClassifyStatus(e.Status))
}
