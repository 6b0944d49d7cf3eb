package minerid

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// ProtocolID is the 4 byte miner id protocol tag
var ProtocolID = []byte{0xac, 0x1e, 0xed, 0x88}

// protocolPrefix is OP_FALSE OP_RETURN OP_DATA4 <ProtocolID>
var protocolPrefix = append([]byte{script.OpFALSE, script.OpRETURN, script.OpDATA4}, ProtocolID...)

// errNoElement is returned when the cursor is at the end of the script
var errNoElement = errors.New("no script element left")

// IsMinerIDScript reports whether a locking script carries the miner id
// protocol marker followed by at least one byte of payload
func IsMinerIDScript(lockingScript []byte) bool {
	return len(lockingScript) > len(protocolPrefix) &&
		bytes.HasPrefix(lockingScript, protocolPrefix)
}

// elementScanner walks the pushed data elements following the marker
type elementScanner struct {
	script []byte
	pos    int
}

func newElementScanner(lockingScript []byte) *elementScanner {
	return &elementScanner{script: lockingScript, pos: len(protocolPrefix)}
}

// next returns the next pushed data element and moves past it
func (s *elementScanner) next() ([]byte, error) {
	if s.done() {
		return nil, errNoElement
	}
	pos := s.pos
	op, err := script.ReadOp(s.script, &pos)
	if err != nil {
		return nil, fmt.Errorf("read op at %d: %w", s.pos, err)
	}
	if op.Op > script.OpPUSHDATA4 {
		return nil, fmt.Errorf("opcode 0x%02x at %d is not a data push", op.Op, s.pos)
	}
	s.pos = pos
	return op.Data, nil
}

// done reports whether the cursor reached the end of the script
func (s *elementScanner) done() bool {
	return s.pos >= len(s.script)
}

// LockingScript builds a miner id output script from a static document,
// its signature and an optional dynamic document and signature.
func LockingScript(static, dynamic *SignedDocument) (*script.Script, error) {
	if static == nil {
		return nil, errors.New("static document is required")
	}
	s := &script.Script{}
	if err := s.AppendOpcodes(script.OpFALSE, script.OpRETURN); err != nil {
		return nil, err
	}
	elements := [][]byte{ProtocolID, static.Text, static.Signature}
	if dynamic != nil {
		elements = append(elements, dynamic.Text, dynamic.Signature)
	}
	for _, e := range elements {
		if err := s.AppendPushData(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}
