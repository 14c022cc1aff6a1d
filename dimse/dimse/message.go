package dimse

import (
	"errors"
	"fmt"

	"github.com/pacsforge/dicomnet/dimse/pdu"
)

// ErrProtocolViolation marks fatal PDV stream violations: a dataset
// fragment with no pending command, fragments after the last-fragment bit,
// or command/dataset interleaving on one context. Receivers abort the
// association on this error.
var ErrProtocolViolation = errors.New("DIMSE protocol violation")

// pdvOverhead is the per-fragment framing cost: 6 bytes of PDU envelope
// plus 6 bytes of PDV header (length, context id, control header).
const pdvOverhead = 12

// Message is one reassembled DIMSE message: the command set and the raw
// dataset bytes (encoded per the context's negotiated transfer syntax), tied
// to the presentation context that carried them.
type Message struct {
	Command               *CommandSet
	Data                  []byte
	PresentationContextID uint8
}

// HasData reports whether the message carried a dataset.
func (m *Message) HasData() bool {
	return m.Data != nil
}

// Fragment splits one DIMSE message into P-DATA-TF PDUs bounded by the
// negotiated maximum PDU size.
//
// Command bytes and dataset bytes never share a PDV. All command PDVs come
// first; exactly one command PDV carries the last-fragment bit, and exactly
// one dataset PDV does when a dataset is present.
func Fragment(command, dataset []byte, contextID uint8, maxPDULength uint32) ([]*pdu.DataTF, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("fragment: empty command set")
	}
	if maxPDULength == 0 {
		maxPDULength = pdu.DefaultMaxPDULength
	}
	if maxPDULength <= pdvOverhead {
		return nil, fmt.Errorf("fragment: max PDU length %d leaves no room for data", maxPDULength)
	}
	maxFragment := int(maxPDULength) - pdvOverhead

	pdus := fragmentStream(command, contextID, true, maxFragment)
	if dataset != nil {
		pdus = append(pdus, fragmentStream(dataset, contextID, false, maxFragment)...)
	}
	return pdus, nil
}

// fragmentStream splits one byte stream (command or dataset) into PDUs of
// single-PDV fragments, setting the last-fragment bit on the final one.
func fragmentStream(data []byte, contextID uint8, isCommand bool, maxFragment int) []*pdu.DataTF {
	base := uint8(0)
	if isCommand {
		base = pdu.MessageControlCommand
	}

	// A present-but-empty stream still produces one empty last fragment.
	if len(data) == 0 {
		return []*pdu.DataTF{{Items: []pdu.PresentationDataValue{{
			PresentationContextID: contextID,
			MessageControlHeader:  base | pdu.MessageControlLastFragment,
			Data:                  []byte{},
		}}}}
	}

	var pdus []*pdu.DataTF
	for offset := 0; offset < len(data); {
		end := offset + maxFragment
		if end >= len(data) {
			end = len(data)
		}
		header := base
		if end == len(data) {
			header |= pdu.MessageControlLastFragment
		}
		pdus = append(pdus, &pdu.DataTF{Items: []pdu.PresentationDataValue{{
			PresentationContextID: contextID,
			MessageControlHeader:  header,
			Data:                  data[offset:end],
		}}})
		offset = end
	}
	return pdus
}

// contextAssembly is the in-flight reassembly state of one presentation
// context.
type contextAssembly struct {
	command     []byte
	data        []byte
	cs          *CommandSet
	commandDone bool
	dataStarted bool
	expectData  bool
}

// Assembler reassembles DIMSE messages from a received P-DATA-TF stream,
// maintaining separate command and dataset buffers per presentation context.
//
// Fragments arrive in order within one context; violations of the framing
// contract surface as ErrProtocolViolation and the caller must abort the
// association.
type Assembler struct {
	contexts map[uint8]*contextAssembly
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{contexts: make(map[uint8]*contextAssembly)}
}

// AddPDU feeds one P-DATA-TF PDU. It returns a completed message once the
// final fragment of a command (for messages without data) or of a dataset
// arrives, and nil while the message is still partial.
func (a *Assembler) AddPDU(dataPDU *pdu.DataTF) (*Message, error) {
	for i := range dataPDU.Items {
		msg, err := a.addPDV(&dataPDU.Items[i])
		if err != nil || msg != nil {
			return msg, err
		}
	}
	return nil, nil
}

func (a *Assembler) addPDV(pdv *pdu.PresentationDataValue) (*Message, error) {
	ctx := a.contexts[pdv.PresentationContextID]
	if ctx == nil {
		ctx = &contextAssembly{}
		a.contexts[pdv.PresentationContextID] = ctx
	}

	if pdv.IsCommand() {
		if ctx.commandDone {
			return nil, fmt.Errorf("%w: command fragment after last command fragment on context %d",
				ErrProtocolViolation, pdv.PresentationContextID)
		}
		if ctx.dataStarted {
			return nil, fmt.Errorf("%w: command and dataset fragments interleaved on context %d",
				ErrProtocolViolation, pdv.PresentationContextID)
		}
		ctx.command = append(ctx.command, pdv.Data...)
		if !pdv.IsLastFragment() {
			return nil, nil
		}
		ctx.commandDone = true

		cs, err := DecodeCommandSet(ctx.command)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if cs.HasDataSet() {
			// Dataset fragments follow on this context.
			ctx.expectData = true
			ctx.cs = cs
			return nil, nil
		}
		delete(a.contexts, pdv.PresentationContextID)
		return &Message{Command: cs, PresentationContextID: pdv.PresentationContextID}, nil
	}

	// Dataset fragment.
	if !ctx.commandDone {
		return nil, fmt.Errorf("%w: dataset fragment with no pending command on context %d",
			ErrProtocolViolation, pdv.PresentationContextID)
	}
	if !ctx.expectData {
		return nil, fmt.Errorf("%w: dataset fragment after command declared no dataset on context %d",
			ErrProtocolViolation, pdv.PresentationContextID)
	}
	ctx.dataStarted = true
	ctx.data = append(ctx.data, pdv.Data...)
	if !pdv.IsLastFragment() {
		return nil, nil
	}

	msg := &Message{
		Command:               ctx.cs,
		Data:                  ctx.data,
		PresentationContextID: pdv.PresentationContextID,
	}
	if msg.Data == nil {
		msg.Data = []byte{}
	}
	delete(a.contexts, pdv.PresentationContextID)
	return msg, nil
}
