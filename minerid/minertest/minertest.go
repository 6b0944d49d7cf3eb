// Package minertest builds signed miner id coinbase transactions for tests
package minertest

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tonicpow/go-minerid/minerid"
)

// VctxTxID is the validity context used by fixtures
const VctxTxID = "6c6e52da3f16f6a03a9ee5bfd68dd6a9fb7fce16fc66f137a265a4bf7cbb4cba"

// Key derives a deterministic private key from seed
func Key(seed string) *btcec.PrivateKey {
	b := sha256.Sum256([]byte(seed))
	key, _ := btcec.PrivKeyFromBytes(b[:])
	return key
}

// Miner is a miner identity with its previous and dynamic keys
type Miner struct {
	Key        *btcec.PrivateKey
	PrevKey    *btcec.PrivateKey
	DynamicKey *btcec.PrivateKey
	Version    string
}

// NewMiner returns a version 0.2 miner whose keys derive from name
func NewMiner(name string) *Miner {
	return &Miner{
		Key:        Key(name),
		PrevKey:    Key(name + "/prev"),
		DynamicKey: Key(name + "/dynamic"),
		Version:    minerid.Version02,
	}
}

// ID is the hex miner id
func (m *Miner) ID() string { return minerid.PubKeyHex(m.Key) }

// Rotate returns the next identity, linked to m
func (m *Miner) Rotate(name string) *Miner {
	next := NewMiner(name)
	next.PrevKey = m.Key
	return next
}

// Output returns a miner id output for height, with a dynamic document
// when dynamic is set
func (m *Miner) Output(height int32, dynamic bool) (*transaction.TransactionOutput, error) {
	static, err := minerid.BuildStatic(minerid.StaticParams{
		Version:      m.Version,
		Height:       height,
		MinerKey:     m.Key,
		PrevMinerKey: m.PrevKey,
		VctxTxID:     VctxTxID,
	})
	if err != nil {
		return nil, err
	}
	var dyn *minerid.SignedDocument
	if dynamic {
		if dyn, err = minerid.BuildDynamic(static, minerid.DynamicParams{Key: m.DynamicKey, Height: height}); err != nil {
			return nil, err
		}
	}
	s, err := minerid.LockingScript(static, dyn)
	if err != nil {
		return nil, err
	}
	return &transaction.TransactionOutput{LockingScript: s}, nil
}

// CoinbaseHex serializes a coinbase transaction for height with outputs
func CoinbaseHex(height int32, outputs ...*transaction.TransactionOutput) string {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))

	// single coinbase input with the BIP34 height push
	buf.WriteByte(1)
	buf.Write(make([]byte, 32))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xffffffff))
	h := make([]byte, 4)
	binary.LittleEndian.PutUint32(h, uint32(height))
	writeVarBytes(&buf, append([]byte{0x03}, h[:3]...))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xffffffff))

	writeVarInt(&buf, uint64(len(outputs)))
	for _, o := range outputs {
		_ = binary.Write(&buf, binary.LittleEndian, o.Satoshis)
		writeVarBytes(&buf, *o.LockingScript)
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	return hex.EncodeToString(buf.Bytes())
}

// Coinbase parses CoinbaseHex
func Coinbase(height int32, outputs ...*transaction.TransactionOutput) (*transaction.Transaction, error) {
	return transaction.NewTransactionFromHex(CoinbaseHex(height, outputs...))
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeVarInt(buf, uint64(len(b)))
	buf.Write(b)
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		_ = binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		_ = binary.Write(buf, binary.LittleEndian, n)
	}
}
