package minerid

import (
	"strconv"
	"strings"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// Supported protocol versions
const (
	Version01 = "0.1"
	Version02 = "0.2"
)

var supportedVersions = map[string]struct{}{
	Version01: {},
	Version02: {},
}

// IsSupportedVersion reports whether v is a known protocol version
func IsSupportedVersion(v string) bool {
	_, ok := supportedVersions[v]
	return ok
}

const (
	reasonInvalidStatic  = "one or more required parameters from coinbase document missing or incorrect"
	reasonInvalidDynamic = "structure in coinbase document is incorrect (incorrect field type)"
	reasonHeight         = "block height in coinbase document is incorrect"
)

// staticFields are the checked members of a static document
type staticFields struct {
	version        string
	height         int32
	prevMinerID    string
	prevMinerIDSig string
	minerID        string
	vctxTxID       string
	vctx           Outpoint
	dataRefs       []DataRef
	hasDataRefs    bool
}

// dynamicFields are the checked members of a dynamic document
type dynamicFields struct {
	dynamicMinerID string
	doc            field
}

// validateStatic checks the schema of a static document for the given block height
func validateStatic(text []byte, blockHeight int32) (*staticFields, error) {
	doc, ok := parseDocument(text)
	if !ok {
		return nil, newCandidateError(KindSchema, "cannot parse coinbase document")
	}
	invalid := newCandidateError(KindSchema, reasonInvalidStatic)

	version := doc.get("version")
	if !version.isString() {
		return nil, invalid
	}
	if !IsSupportedVersion(version.str()) {
		return nil, newCandidateError(KindUnsupportedVersion, "unsupported version "+strconv.Quote(version.str()))
	}

	// static height is a JSON string, unlike the dynamic document
	height := doc.get("height")
	if !height.isString() {
		return nil, invalid
	}
	h, ok := parseLeadingInt32(height.str())
	if !ok {
		return nil, invalid
	}
	if h != blockHeight {
		return nil, newCandidateError(KindHeightMismatch, reasonHeight)
	}

	f := &staticFields{version: version.str(), height: h}
	for _, m := range []struct {
		key string
		dst *string
	}{
		{"prevMinerId", &f.prevMinerID},
		{"prevMinerIdSig", &f.prevMinerIDSig},
		{"minerId", &f.minerID},
	} {
		v := doc.get(m.key)
		if !v.isString() {
			return nil, invalid
		}
		*m.dst = v.str()
	}

	vctx := doc.get("vctx")
	if !vctx.isObject() {
		return nil, invalid
	}
	txID, vout, ok := parseOutpoint(vctx, "txId")
	if !ok {
		return nil, invalid
	}
	f.vctxTxID = vctx.get("txId").str()
	f.vctx = Outpoint{TxID: txID, Vout: vout}

	if f.dataRefs, f.hasDataRefs, ok = parseDataRefs(doc); !ok {
		return nil, invalid
	}
	return f, nil
}

// validateDynamic checks a dynamic document. Only dynamicMinerId is
// required; other known members are type checked when present.
func validateDynamic(text []byte, blockHeight int32) (*dynamicFields, error) {
	doc, ok := parseDocument(text)
	if !ok {
		return nil, newCandidateError(KindSchema, "cannot parse coinbase document")
	}
	invalid := newCandidateError(KindSchema, reasonInvalidDynamic)

	if version := doc.get("version"); !version.isNull() {
		if !version.isString() {
			return nil, invalid
		}
		if !IsSupportedVersion(version.str()) {
			return nil, newCandidateError(KindUnsupportedVersion, "unsupported version "+strconv.Quote(version.str()))
		}
	}

	if height := doc.get("height"); !height.isNull() {
		h, ok := height.asInt32()
		if !ok {
			return nil, invalid
		}
		if h != blockHeight {
			return nil, newCandidateError(KindHeightMismatch, reasonHeight)
		}
	}

	for _, key := range []string{"prevMinerId", "prevMinerIdSig", "minerId"} {
		if v := doc.get(key); !v.isNull() && !v.isString() {
			return nil, invalid
		}
	}

	dynamicMinerID := doc.get("dynamicMinerId")
	if !dynamicMinerID.isString() {
		return nil, invalid
	}

	if vctx := doc.get("vctx"); !vctx.isNull() {
		if !vctx.isObject() {
			return nil, invalid
		}
		if _, _, ok := parseOutpoint(vctx, "txId"); !ok {
			return nil, invalid
		}
	}

	return &dynamicFields{dynamicMinerID: dynamicMinerID.str(), doc: doc}, nil
}

// parseDataRefs reads the optional dataRefs member. Any malformed
// element fails the whole list.
func parseDataRefs(doc field) ([]DataRef, bool, bool) {
	dataRefs := doc.get("dataRefs")
	if !dataRefs.exists() {
		return nil, false, true
	}
	refs := dataRefs.get("refs")
	if !dataRefs.isObject() || !refs.isArray() {
		return nil, false, false
	}

	out := make([]DataRef, 0, len(refs.Array()))
	for _, ref := range refs.elements() {
		brfcIDs := ref.get("brfcIds")
		if !brfcIDs.isArray() {
			return nil, false, false
		}
		ids := make([]string, 0, len(brfcIDs.Array()))
		for _, id := range brfcIDs.elements() {
			if !id.isString() {
				return nil, false, false
			}
			ids = append(ids, id.str())
		}
		txID, vout, ok := parseOutpoint(ref, "txid")
		if !ok {
			return nil, false, false
		}
		out = append(out, DataRef{brfcIDs: ids, txID: txID, vout: vout})
	}
	return out, true, true
}

// parseOutpoint reads a string txid member and a numeric vout member
func parseOutpoint(obj field, txIDKey string) (chainhash.Hash, uint32, bool) {
	txID := obj.get(txIDKey)
	vout := obj.get("vout")
	if !txID.isString() || !vout.isNumber() {
		return chainhash.Hash{}, 0, false
	}
	n, ok := vout.asUint32()
	if !ok {
		return chainhash.Hash{}, 0, false
	}
	hash, ok := parseHashLenient(txID.str())
	if !ok {
		return chainhash.Hash{}, 0, false
	}
	return hash, n, true
}

// parseHashLenient reads the leading hex digits of s, after optional
// whitespace and 0x, as a byte reversed hash. Only the last 64 digits are
// kept and non hex text ends the number, so odd input never fails outright.
func parseHashLenient(s string) (chainhash.Hash, bool) {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	end := 0
	for end < len(s) && isHexDigit(s[end]) {
		end++
	}
	digits := s[:end]
	if len(digits) > hashHexSize {
		digits = digits[len(digits)-hashHexSize:]
	}
	if digits == "" {
		return chainhash.Hash{}, true
	}
	hash, err := chainhash.NewHashFromHex(digits)
	if err != nil {
		return chainhash.Hash{}, false
	}
	return *hash, true
}

const hashHexSize = chainhash.HashSize * 2

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseLeadingInt32 reads an optionally signed decimal prefix after
// leading whitespace. Trailing characters are ignored; no digits fails.
func parseLeadingInt32(s string) (int32, bool) {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}
