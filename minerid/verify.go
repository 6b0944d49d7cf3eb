package minerid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Verifier checks an ECDSA signature over a 32 byte message hash.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(hash, pubKey, sig []byte) bool
}

// ECDSAVerifier verifies secp256k1 signatures. Signatures are parsed
// leniently, as a node does for coinbase documents.
type ECDSAVerifier struct{}

// Verify implements Verifier
func (ECDSAVerifier) Verify(hash, pubKey, sig []byte) bool {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	signature, err := ecdsa.ParseSignature(sig)
	if err != nil {
		return false
	}
	return signature.Verify(hash, key)
}

// verifyMessage hashes msg with SHA-256 and checks sig against pubKey
func verifyMessage(v Verifier, msg, pubKey, sig []byte) bool {
	hash := sha256.Sum256(msg)
	return v.Verify(hash[:], pubKey, sig)
}

// verifyHexKey is verifyMessage for hex encoded keys and signatures. Bad
// hex fails verification.
func verifyHexKey(v Verifier, msg []byte, pubKeyHex string, sig []byte) bool {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubKey) == 0 {
		return false
	}
	return verifyMessage(v, msg, pubKey, sig)
}

// LinkageMessage is the message the previous miner id signs to authorize
// minerID. Version 0.2 signs the hex text of the 0.1 message.
func LinkageMessage(version, prevMinerID, minerID, vctxTxID string) ([]byte, bool) {
	msg := prevMinerID + minerID + vctxTxID
	switch version {
	case Version01:
		return []byte(msg), true
	case Version02:
		return []byte(hex.EncodeToString([]byte(msg))), true
	}
	return nil, false
}

// DynamicMessage is the message signed by the dynamic miner id: the static
// document text, the raw static signature bytes and the dynamic document text.
func DynamicMessage(staticJSON, staticSig, dynamicJSON []byte) []byte {
	msg := make([]byte, 0, len(staticJSON)+len(staticSig)+len(dynamicJSON))
	msg = append(msg, staticJSON...)
	msg = append(msg, staticSig...)
	return append(msg, dynamicJSON...)
}

// verifyStaticSignatures runs the self signature and linkage checks
func verifyStaticSignatures(v Verifier, text, sig []byte, f *staticFields) error {
	if !verifyHexKey(v, text, f.minerID, sig) {
		return newCandidateError(KindVerification, "signature of static coinbase document is invalid")
	}

	msg, ok := LinkageMessage(f.version, f.prevMinerID, f.minerID, f.vctxTxID)
	if !ok {
		return newCandidateError(KindUnsupportedVersion, "unsupported version in miner id")
	}
	prevSig, err := hex.DecodeString(f.prevMinerIDSig)
	if err != nil || !verifyHexKey(v, msg, f.prevMinerID, prevSig) {
		return newCandidateError(KindVerification, "signature of previous miner id in coinbase document is invalid")
	}
	return nil
}

// verifyDynamicSignature checks the dynamic document against the accepted static one
func verifyDynamicSignature(v Verifier, m *MinerID, text, sig []byte, f *dynamicFields) error {
	msg := DynamicMessage(m.staticDocumentJSON, m.staticSignature, text)
	if !verifyHexKey(v, msg, f.dynamicMinerID, sig) {
		return newCandidateError(KindVerification, "signature of dynamic miner id in coinbase document is invalid")
	}
	return nil
}
