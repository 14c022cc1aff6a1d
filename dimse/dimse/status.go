package dimse

// Status codes of note (DICOM Part 7, Annex C).
const (
	StatusSuccess                  uint16 = 0x0000
	StatusWarning                  uint16 = 0x0001
	StatusAttributeListError       uint16 = 0x0107
	StatusAttributeValueOutOfRange uint16 = 0x0116
	StatusSOPClassNotSupported     uint16 = 0x0122
	StatusDuplicateInvocation      uint16 = 0x0117
	StatusMistypedArgument         uint16 = 0x0124
	StatusCancel                   uint16 = 0xFE00
	StatusPending                  uint16 = 0xFF00
	StatusPendingWarning           uint16 = 0xFF01
	StatusOutOfResources           uint16 = 0xA700
	StatusMoveDestinationUnknown   uint16 = 0xA801
	StatusProcessingFailure        uint16 = 0xC000
)

// StatusClass partitions the DIMSE status space: every status belongs to
// exactly one class.
type StatusClass int

const (
	StatusClassSuccess StatusClass = iota
	StatusClassWarning
	StatusClassRefused
	StatusClassFailed
	StatusClassCancel
	StatusClassPending
)

func (c StatusClass) String() string {
	switch c {
	case StatusClassSuccess:
		return "success"
	case StatusClassWarning:
		return "warning"
	case StatusClassRefused:
		return "refused"
	case StatusClassFailed:
		return "failed"
	case StatusClassCancel:
		return "cancel"
	case StatusClassPending:
		return "pending"
	default:
		return "unknown"
	}
}

// ClassifyStatus maps a response status to its class per DICOM Part 7,
// Annex C. Codes not covered by a named range classify as failed.
func ClassifyStatus(status uint16) StatusClass {
	switch {
	case status == StatusSuccess:
		return StatusClassSuccess
	case status == StatusCancel:
		return StatusClassCancel
	case status == StatusPending || status == StatusPendingWarning:
		return StatusClassPending
	case status >= 0xB000 && status <= 0xBFFF,
		status == StatusWarning,
		status == StatusAttributeListError,
		status == StatusAttributeValueOutOfRange:
		return StatusClassWarning
	case status >= 0xA000 && status <= 0xA7FF:
		return StatusClassRefused
	default:
		// 0xC000..0xCFFF, 0x0122, 0x0117, 0x0124, and anything else.
		return StatusClassFailed
	}
}

// IsSuccessOrWarning reports whether a status counts as a delivered store
// under the default (non-strict) delivery policy.
func IsSuccessOrWarning(status uint16) bool {
	c := ClassifyStatus(status)
	return c == StatusClassSuccess || c == StatusClassWarning
}
