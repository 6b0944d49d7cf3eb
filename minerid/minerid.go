// Package minerid finds and verifies miner id coinbase documents.
//
// A miner embeds a signed identity document in an output of its coinbase
// transaction:
//
//	OP_FALSE OP_RETURN 0xac1eed88 <static document> <signature> [<dynamic document> <signature>]
//
// The static document is signed by the miner id key and chained to the
// previous miner id by the linkage signature. The optional dynamic document
// is signed by a dynamic key over the static document, its signature and
// the dynamic text. Scanner.Find returns the first output whose whole
// signature chain verifies.
package minerid

import (
	"encoding/json"
)

// MinerID is an accepted miner identity from one coinbase output
type MinerID struct {
	document *CoinbaseDocument

	// retained to verify the dynamic document
	staticDocumentJSON []byte
	staticSignature    []byte

	dynamicDocumentJSON []byte
	dynamicMinerID      string
}

// Document is the accepted static coinbase document
func (m *MinerID) Document() *CoinbaseDocument { return m.document }

// StaticDocumentJSON is the exact static document text that was signed
func (m *MinerID) StaticDocumentJSON() []byte {
	return append([]byte(nil), m.staticDocumentJSON...)
}

// StaticSignature is the raw signature over the static document
func (m *MinerID) StaticSignature() []byte {
	return append([]byte(nil), m.staticSignature...)
}

// DynamicDocumentJSON is the accepted dynamic document text, nil if the
// output had no dynamic segment
func (m *MinerID) DynamicDocumentJSON() []byte {
	if m.dynamicDocumentJSON == nil {
		return nil
	}
	return append([]byte(nil), m.dynamicDocumentJSON...)
}

// DynamicMinerID is the hex key that signed the dynamic document
func (m *MinerID) DynamicMinerID() string { return m.dynamicMinerID }

// HasDynamic reports whether a dynamic document was accepted
func (m *MinerID) HasDynamic() bool { return m.dynamicDocumentJSON != nil }

// MarshalJSON renders the identity for API responses
func (m *MinerID) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Document       *CoinbaseDocument `json:"document"`
		StaticDocument string            `json:"staticDocument"`
		DynamicDoc     string            `json:"dynamicDocument,omitempty"`
		DynamicMinerID string            `json:"dynamicMinerId,omitempty"`
	}{
		Document:       m.document,
		StaticDocument: string(m.staticDocumentJSON),
		DynamicDoc:     string(m.dynamicDocumentJSON),
		DynamicMinerID: m.dynamicMinerID,
	})
}

// setStatic populates an empty MinerID from a verified static document
func (m *MinerID) setStatic(text, sig []byte, f *staticFields) {
	doc := newCoinbaseDocument(f.version, f.height, f.prevMinerID, f.prevMinerIDSig, f.minerID, f.vctx)
	if f.hasDataRefs {
		doc.setDataRefs(f.dataRefs)
	}
	m.document = doc
	m.staticDocumentJSON = append([]byte(nil), text...)
	m.staticSignature = append([]byte(nil), sig...)
}

// setDynamic extends a static MinerID with a verified dynamic document.
// Dynamic data refs are used only when the static document had none.
func (m *MinerID) setDynamic(text []byte, f *dynamicFields) error {
	if _, ok := m.document.DataRefs(); !ok {
		refs, present, valid := parseDataRefs(f.doc)
		if !valid {
			return newCandidateError(KindSchema, reasonInvalidDynamic)
		}
		if present {
			m.document.setDataRefs(refs)
		}
	}
	m.dynamicDocumentJSON = append([]byte(nil), text...)
	m.dynamicMinerID = f.dynamicMinerID
	return nil
}
