package minerid

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkageMessage(t *testing.T) {
	v01, ok := LinkageMessage(Version01, "02aa", "03bb", "cc")
	require.True(t, ok)
	assert.Equal(t, []byte("02aa03bbcc"), v01)

	v02, ok := LinkageMessage(Version02, "02aa", "03bb", "cc")
	require.True(t, ok)
	assert.Equal(t, []byte(hex.EncodeToString([]byte("02aa03bbcc"))), v02)
	assert.NotEqual(t, v01, v02)

	_, ok = LinkageMessage("0.3", "02aa", "03bb", "cc")
	assert.False(t, ok)
}

func TestLinkageSignatureIsVersionBound(t *testing.T) {
	f := newFixture()
	minerID := PubKeyHex(f.minerKey)
	prevID := PubKeyHex(f.prevKey)

	sig02, err := LinkageSignature(Version02, f.prevKey, minerID, testVctxTxID)
	require.NoError(t, err)

	msg01, _ := LinkageMessage(Version01, prevID, minerID, testVctxTxID)
	msg02, _ := LinkageMessage(Version02, prevID, minerID, testVctxTxID)

	assert.True(t, verifyHexKey(ECDSAVerifier{}, msg02, prevID, sig02))
	assert.False(t, verifyHexKey(ECDSAVerifier{}, msg01, prevID, sig02))

	_, err = LinkageSignature("9.9", f.prevKey, minerID, testVctxTxID)
	assert.Error(t, err)
}

func TestDynamicMessage(t *testing.T) {
	sig := []byte{0x30, 0x00, 0xff}
	msg := DynamicMessage([]byte(`{"a":1}`), sig, []byte(`{"b":2}`))
	assert.Equal(t, append(append([]byte(`{"a":1}`), 0x30, 0x00, 0xff), []byte(`{"b":2}`)...), msg)
}

func TestECDSAVerifier(t *testing.T) {
	f := newFixture()
	doc := Sign([]byte("hello"), f.minerKey)
	pub := f.minerKey.PubKey().SerializeCompressed()

	assert.True(t, verifyMessage(ECDSAVerifier{}, doc.Text, pub, doc.Signature))
	assert.False(t, verifyMessage(ECDSAVerifier{}, []byte("hellO"), pub, doc.Signature))
	assert.False(t, verifyMessage(ECDSAVerifier{}, doc.Text, f.prevKey.PubKey().SerializeCompressed(), doc.Signature))
	assert.False(t, verifyMessage(ECDSAVerifier{}, doc.Text, []byte{0x02, 0x01}, doc.Signature))
	assert.False(t, verifyMessage(ECDSAVerifier{}, doc.Text, pub, []byte{0x30, 0x01}))

	assert.True(t, verifyHexKey(ECDSAVerifier{}, doc.Text, PubKeyHex(f.minerKey), doc.Signature))
	assert.False(t, verifyHexKey(ECDSAVerifier{}, doc.Text, "zz", doc.Signature))
	assert.False(t, verifyHexKey(ECDSAVerifier{}, doc.Text, "", doc.Signature))
}

func TestVerifyStaticSignatures(t *testing.T) {
	f := newFixture()
	for _, version := range []string{Version01, Version02} {
		t.Run(version, func(t *testing.T) {
			doc := f.static(t, version, nil)
			fields, err := validateStatic(doc.Text, testHeight)
			require.NoError(t, err)
			assert.NoError(t, verifyStaticSignatures(ECDSAVerifier{}, doc.Text, doc.Signature, fields))

			// signed by the wrong key
			other := Sign(doc.Text, f.prevKey)
			err = verifyStaticSignatures(ECDSAVerifier{}, other.Text, other.Signature, fields)
			c, ok := IsCandidateError(err)
			require.True(t, ok)
			assert.Equal(t, KindVerification, c.Kind)

			// linkage signed for the other version
			swapped := *fields
			if version == Version01 {
				swapped.version = Version02
			} else {
				swapped.version = Version01
			}
			err = verifyStaticSignatures(ECDSAVerifier{}, doc.Text, doc.Signature, &swapped)
			c, ok = IsCandidateError(err)
			require.True(t, ok)
			assert.Equal(t, KindVerification, c.Kind)
		})
	}
}

func TestVerifyStaticSignaturesBadLinkageHex(t *testing.T) {
	f := newFixture()
	doc := f.staticWith(t, func(t *testing.T, doc string) string {
		return mustSet(t, doc, "prevMinerIdSig", "not hex")
	})
	fields, err := validateStatic(doc.Text, testHeight)
	require.NoError(t, err)
	err = verifyStaticSignatures(ECDSAVerifier{}, doc.Text, doc.Signature, fields)
	c, ok := IsCandidateError(err)
	require.True(t, ok)
	assert.Equal(t, KindVerification, c.Kind)
}
