package minerid

import (
	"crypto/sha256"
	"testing"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

const (
	testHeight   int32 = 700123
	testVctxTxID       = "6c6e52da3f16f6a03a9ee5bfd68dd6a9fb7fce16fc66f137a265a4bf7cbb4cba"
	testRefTxIDA       = "9834daa6d34690981888f7db4c1c36686ebb9b685d37115abc38e0e75f9cd98d"
	testRefTxIDB       = "00eb4e6a607f8b2089e237dad9e71e17b18f08c779a2f96a985a9e6bf70be3cf"
)

type fixture struct {
	minerKey *btcec.PrivateKey
	prevKey  *btcec.PrivateKey
	dynKey   *btcec.PrivateKey
}

func testKey(seed string) *btcec.PrivateKey {
	b := sha256.Sum256([]byte(seed))
	key, _ := btcec.PrivKeyFromBytes(b[:])
	return key
}

func newFixture() *fixture {
	return &fixture{
		minerKey: testKey("miner"),
		prevKey:  testKey("previous miner"),
		dynKey:   testKey("dynamic miner"),
	}
}

func (f *fixture) staticParams(version string) StaticParams {
	return StaticParams{
		Version:      version,
		Height:       testHeight,
		MinerKey:     f.minerKey,
		PrevMinerKey: f.prevKey,
		VctxTxID:     testVctxTxID,
		VctxVout:     0,
	}
}

func (f *fixture) static(t *testing.T, version string, refs []DataRef) *SignedDocument {
	t.Helper()
	p := f.staticParams(version)
	p.DataRefs = refs
	doc, err := BuildStatic(p)
	require.NoError(t, err)
	return doc
}

// staticWith builds a valid static document, edits its text and signs the result
func (f *fixture) staticWith(t *testing.T, edit func(t *testing.T, doc string) string) *SignedDocument {
	t.Helper()
	base := f.static(t, Version02, nil)
	return Sign([]byte(edit(t, string(base.Text))), f.minerKey)
}

func (f *fixture) dynamic(t *testing.T, static *SignedDocument, refs []DataRef, extra ...Member) *SignedDocument {
	t.Helper()
	doc, err := BuildDynamic(static, DynamicParams{
		Key:      f.dynKey,
		Height:   testHeight,
		DataRefs: refs,
		Extra:    extra,
	})
	require.NoError(t, err)
	return doc
}

func mustSet(t *testing.T, doc, path string, value interface{}) string {
	t.Helper()
	out, err := sjson.Set(doc, path, value)
	require.NoError(t, err)
	return out
}

func mustSetRaw(t *testing.T, doc, path, raw string) string {
	t.Helper()
	out, err := sjson.SetRaw(doc, path, raw)
	require.NoError(t, err)
	return out
}

func mustDelete(t *testing.T, doc, path string) string {
	t.Helper()
	out, err := sjson.Delete(doc, path)
	require.NoError(t, err)
	return out
}

func testRef(t *testing.T, txID string, vout uint32, brfcIDs ...string) DataRef {
	t.Helper()
	hash, err := chainhash.NewHashFromHex(txID)
	require.NoError(t, err)
	return NewDataRef(brfcIDs, *hash, vout)
}

func minerIDOutput(t *testing.T, static, dynamic *SignedDocument) *transaction.TransactionOutput {
	t.Helper()
	s, err := LockingScript(static, dynamic)
	require.NoError(t, err)
	return &transaction.TransactionOutput{Satoshis: 0, LockingScript: s}
}

func rawOutput(b []byte) *transaction.TransactionOutput {
	s := script.Script(b)
	return &transaction.TransactionOutput{Satoshis: 0, LockingScript: &s}
}

// p2pkhOutput is a non miner id output
func p2pkhOutput() *transaction.TransactionOutput {
	b := []byte{script.OpDUP, script.OpHASH160, script.OpDATA20}
	b = append(b, make([]byte, 20)...)
	b = append(b, script.OpEQUALVERIFY, script.OpCHECKSIG)
	return rawOutput(b)
}

func coinbaseTx(outputs ...*transaction.TransactionOutput) *transaction.Transaction {
	return &transaction.Transaction{Version: 1, Outputs: outputs}
}

// pushes encodes data pushes after the protocol prefix
func pushes(t *testing.T, elements ...[]byte) []byte {
	t.Helper()
	s := &script.Script{}
	require.NoError(t, s.AppendOpcodes(script.OpFALSE, script.OpRETURN))
	require.NoError(t, s.AppendPushData(ProtocolID))
	for _, e := range elements {
		require.NoError(t, s.AppendPushData(e))
	}
	return *s
}
