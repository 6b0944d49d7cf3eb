package minerid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tidwall/sjson"
)

// SignedDocument is document text with the raw DER signature over it
type SignedDocument struct {
	Text      []byte
	Signature []byte
}

// StaticParams describe a static coinbase document to build
type StaticParams struct {
	Version  string
	Height   int32
	MinerKey *btcec.PrivateKey
	// PrevMinerKey signs the linkage. Use MinerKey when not rotating.
	PrevMinerKey *btcec.PrivateKey
	VctxTxID     string
	VctxVout     uint32
	DataRefs     []DataRef
}

// DynamicParams describe a dynamic coinbase document to build
type DynamicParams struct {
	Key      *btcec.PrivateKey
	Height   int32
	DataRefs []DataRef
	// Extra members, set in order after the protocol members
	Extra []Member
}

// Member is a document key and value, set with sjson semantics
type Member struct {
	Key   string
	Value interface{}
}

// Sign signs the SHA-256 of text with key
func Sign(text []byte, key *btcec.PrivateKey) *SignedDocument {
	hash := sha256.Sum256(text)
	return &SignedDocument{
		Text:      append([]byte(nil), text...),
		Signature: ecdsa.Sign(key, hash[:]).Serialize(),
	}
}

// PubKeyHex is the compressed hex form used for minerId fields
func PubKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

// LinkageSignature signs the linkage message with the previous miner id key
func LinkageSignature(version string, prevKey *btcec.PrivateKey, minerID, vctxTxID string) ([]byte, error) {
	msg, ok := LinkageMessage(version, PubKeyHex(prevKey), minerID, vctxTxID)
	if !ok {
		return nil, fmt.Errorf("unsupported version %q", version)
	}
	return Sign(msg, prevKey).Signature, nil
}

// BuildStatic composes and signs a static coinbase document
func BuildStatic(p StaticParams) (*SignedDocument, error) {
	if p.MinerKey == nil {
		return nil, errors.New("miner key is required")
	}
	prevKey := p.PrevMinerKey
	if prevKey == nil {
		prevKey = p.MinerKey
	}
	minerID := PubKeyHex(p.MinerKey)
	linkSig, err := LinkageSignature(p.Version, prevKey, minerID, p.VctxTxID)
	if err != nil {
		return nil, err
	}

	doc, err := setMembers("{}", []Member{
		{"version", p.Version},
		{"height", strconv.FormatInt(int64(p.Height), 10)},
		{"prevMinerId", PubKeyHex(prevKey)},
		{"prevMinerIdSig", hex.EncodeToString(linkSig)},
		{"minerId", minerID},
		{"vctx.txId", p.VctxTxID},
		{"vctx.vout", p.VctxVout},
	})
	if err != nil {
		return nil, err
	}
	if p.DataRefs != nil {
		if doc, err = sjson.Set(doc, "dataRefs.refs", p.DataRefs); err != nil {
			return nil, err
		}
	}
	return Sign([]byte(doc), p.MinerKey), nil
}

// BuildDynamic composes a dynamic document and signs it over the static one
func BuildDynamic(static *SignedDocument, p DynamicParams) (*SignedDocument, error) {
	if static == nil || p.Key == nil {
		return nil, errors.New("static document and dynamic key are required")
	}
	doc, err := setMembers("{}", []Member{
		{"height", p.Height},
		{"dynamicMinerId", PubKeyHex(p.Key)},
	})
	if err != nil {
		return nil, err
	}
	if p.DataRefs != nil {
		if doc, err = sjson.Set(doc, "dataRefs.refs", p.DataRefs); err != nil {
			return nil, err
		}
	}
	if doc, err = setMembers(doc, p.Extra); err != nil {
		return nil, err
	}
	return SignDynamic(static, []byte(doc), p.Key), nil
}

// SignDynamic signs dynamic document text over the static document
func SignDynamic(static *SignedDocument, text []byte, key *btcec.PrivateKey) *SignedDocument {
	hash := sha256.Sum256(DynamicMessage(static.Text, static.Signature, text))
	return &SignedDocument{
		Text:      append([]byte(nil), text...),
		Signature: ecdsa.Sign(key, hash[:]).Serialize(),
	}
}

func setMembers(doc string, members []Member) (string, error) {
	var err error
	for _, m := range members {
		if doc, err = sjson.Set(doc, m.Key, m.Value); err != nil {
			return "", fmt.Errorf("set %s: %w", m.Key, err)
		}
	}
	return doc, nil
}
