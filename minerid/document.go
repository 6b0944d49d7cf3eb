package minerid

import (
	"encoding/json"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// Outpoint references a transaction output
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

// MarshalJSON renders the txid in its usual reversed hex form
func (o Outpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TxID string `json:"txId"`
		Vout uint32 `json:"vout"`
	}{o.TxID.String(), o.Vout})
}

// DataRef points at auxiliary transaction data tagged with BRFC ids
type DataRef struct {
	brfcIDs []string
	txID    chainhash.Hash
	vout    uint32
}

// NewDataRef returns a data reference. brfcIDs are copied.
func NewDataRef(brfcIDs []string, txID chainhash.Hash, vout uint32) DataRef {
	return DataRef{
		brfcIDs: append([]string(nil), brfcIDs...),
		txID:    txID,
		vout:    vout,
	}
}

// BrfcIDs returns a copy of the protocol identifiers, in document order
func (d DataRef) BrfcIDs() []string {
	return append([]string(nil), d.brfcIDs...)
}

// TxID is the referenced transaction
func (d DataRef) TxID() chainhash.Hash { return d.txID }

// Vout is the referenced output index
func (d DataRef) Vout() uint32 { return d.vout }

// MarshalJSON uses the field names of the coinbase document
func (d DataRef) MarshalJSON() ([]byte, error) {
	brfcIDs := d.brfcIDs
	if brfcIDs == nil {
		brfcIDs = []string{}
	}
	return json.Marshal(struct {
		BrfcIDs []string `json:"brfcIds"`
		TxID    string   `json:"txid"`
		Vout    uint32   `json:"vout"`
	}{brfcIDs, d.txID.String(), d.vout})
}

// CoinbaseDocument is a validated static miner id document. Identity
// fields are fixed at construction; data refs may be attached once.
type CoinbaseDocument struct {
	version        string
	height         int32
	prevMinerID    string
	prevMinerIDSig string
	minerID        string
	vctx           Outpoint
	dataRefs       []DataRef
	hasDataRefs    bool
}

func newCoinbaseDocument(version string, height int32, prevMinerID, prevMinerIDSig, minerID string, vctx Outpoint) *CoinbaseDocument {
	return &CoinbaseDocument{
		version:        version,
		height:         height,
		prevMinerID:    prevMinerID,
		prevMinerIDSig: prevMinerIDSig,
		minerID:        minerID,
		vctx:           vctx,
	}
}

// Version of the miner id protocol
func (c *CoinbaseDocument) Version() string { return c.version }

// Height of the block carrying the document
func (c *CoinbaseDocument) Height() int32 { return c.height }

// PrevMinerID is the hex public key of the previous identity
func (c *CoinbaseDocument) PrevMinerID() string { return c.prevMinerID }

// PrevMinerIDSig is the hex linkage signature
func (c *CoinbaseDocument) PrevMinerIDSig() string { return c.prevMinerIDSig }

// MinerID is the hex public key of this identity
func (c *CoinbaseDocument) MinerID() string { return c.minerID }

// Vctx is the validity context output
func (c *CoinbaseDocument) Vctx() Outpoint { return c.vctx }

// DataRefs returns the attached data references. The bool is false when
// none were provided, which differs from a provided empty list.
func (c *CoinbaseDocument) DataRefs() ([]DataRef, bool) {
	if !c.hasDataRefs {
		return nil, false
	}
	return append([]DataRef(nil), c.dataRefs...), true
}

// setDataRefs attaches refs. Callers check DataRefs first; a second
// attachment is a bug in the scanner.
func (c *CoinbaseDocument) setDataRefs(refs []DataRef) {
	if c.hasDataRefs {
		panic("minerid: data refs already set")
	}
	c.dataRefs = append([]DataRef(nil), refs...)
	c.hasDataRefs = true
}

// MarshalJSON writes the document with the protocol field names
func (c *CoinbaseDocument) MarshalJSON() ([]byte, error) {
	type refs struct {
		Refs []DataRef `json:"refs"`
	}
	view := struct {
		Version        string   `json:"version"`
		Height         int32    `json:"height"`
		PrevMinerID    string   `json:"prevMinerId"`
		PrevMinerIDSig string   `json:"prevMinerIdSig"`
		MinerID        string   `json:"minerId"`
		Vctx           Outpoint `json:"vctx"`
		DataRefs       *refs    `json:"dataRefs,omitempty"`
	}{
		Version:        c.version,
		Height:         c.height,
		PrevMinerID:    c.prevMinerID,
		PrevMinerIDSig: c.prevMinerIDSig,
		MinerID:        c.minerID,
		Vctx:           c.vctx,
	}
	if c.hasDataRefs {
		view.DataRefs = &refs{Refs: append([]DataRef{}, c.dataRefs...)}
	}
	return json.Marshal(view)
}
