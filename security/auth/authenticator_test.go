package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starchain/common"
	"github.com/mezonai/starchain/security/auth/mocks"
)

func TestGenerateChallenge(t *testing.T) {
	a := NewAuthenticator(NewEd25519Verifier())
	msg := a.GenerateChallenge("19xaiMqayaNrn3x7AjV5cU4Mk5f5prRVpL", 1541605128)
	assert.Equal(t, "19xaiMqayaNrn3x7AjV5cU4Mk5f5prRVpL:1541605128:starRegistry", msg)
	assert.Equal(t, msg, GenerateChallenge("19xaiMqayaNrn3x7AjV5cU4Mk5f5prRVpL", 1541605128))
}

func TestAuthenticator_VerifyUsesChallenge(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl)
	verifier.EXPECT().Verify("addr:42:starRegistry", "addr", "sig").Return(true, nil)

	a := NewAuthenticator(verifier)
	assert.True(t, a.Verify("addr", 42, "sig"))
}

func TestAuthenticator_VerifierFailuresAreFalse(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v *mocks.MockVerifier)
	}{
		{
			name: "rejected",
			setup: func(v *mocks.MockVerifier) {
				v.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
			},
		},
		{
			name: "error",
			setup: func(v *mocks.MockVerifier) {
				v.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, errors.New("boom"))
			},
		},
		{
			name: "panic",
			setup: func(v *mocks.MockVerifier) {
				v.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
					func(message, address, signature string) (bool, error) {
						panic("verifier exploded")
					})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			verifier := mocks.NewMockVerifier(ctrl)
			tt.setup(verifier)

			a := NewAuthenticator(verifier)
			assert.NotPanics(t, func() {
				assert.False(t, a.Verify("addr", 1, "sig"))
			})
		})
	}
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(SchemeBitcoin)
	require.NoError(t, err)
	assert.Equal(t, SchemeBitcoin, v.Scheme())

	v, err = NewVerifier(SchemeEd25519)
	require.NoError(t, err)
	assert.Equal(t, SchemeEd25519, v.Scheme())

	_, err = NewVerifier("rsa")
	assert.Error(t, err)
}

func newBitcoinKey(t *testing.T, compressed bool) (*btcec.PrivateKey, string) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pub := priv.PubKey().SerializeUncompressed()
	if compressed {
		pub = priv.PubKey().SerializeCompressed()
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return priv, addr.EncodeAddress()
}

func signBitcoin(t *testing.T, priv *btcec.PrivateKey, message string, compressed bool) string {
	t.Helper()
	sig := ecdsa.SignCompact(priv, BitcoinMessageHash(message), compressed)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestBitcoinVerifier(t *testing.T) {
	v := NewBitcoinVerifier(nil)

	for _, compressed := range []bool{true, false} {
		priv, address := newBitcoinKey(t, compressed)
		message := GenerateChallenge(address, 1541605128)
		signature := signBitcoin(t, priv, message, compressed)

		ok, err := v.Verify(message, address, signature)
		require.NoError(t, err)
		assert.True(t, ok, "compressed=%v", compressed)

		ok, err = v.Verify(message+"x", address, signature)
		require.NoError(t, err)
		assert.False(t, ok)

		_, otherAddress := newBitcoinKey(t, compressed)
		ok, err = v.Verify(message, otherAddress, signature)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestBitcoinVerifier_MalformedInput(t *testing.T) {
	v := NewBitcoinVerifier(nil)
	_, address := newBitcoinKey(t, true)

	_, err := v.Verify("m", address, "%%%not-base64")
	assert.Error(t, err)

	_, err = v.Verify("m", address, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	assert.Error(t, err)

	_, err = v.Verify("m", "not-an-address", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestBitcoinVerifier_ValidateAddress(t *testing.T) {
	v := NewBitcoinVerifier(nil)
	_, address := newBitcoinKey(t, true)
	assert.NoError(t, v.ValidateAddress(address))

	testnet := NewBitcoinVerifier(&chaincfg.TestNet3Params)
	assert.ErrorIs(t, testnet.ValidateAddress(address), ErrInvalidAddress)

	assert.ErrorIs(t, v.ValidateAddress(""), ErrInvalidAddress)
	assert.ErrorIs(t, v.ValidateAddress("19xaiMqayaNrn3x7AjV5cU4Mk5f5prRVpX"), ErrInvalidAddress)
}

func TestEd25519Verifier(t *testing.T) {
	v := NewEd25519Verifier()
	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	_, address, err := SignEd25519(seed, "")
	require.NoError(t, err)
	require.NoError(t, v.ValidateAddress(address))

	message := GenerateChallenge(address, 99)
	signature, _, err := SignEd25519(seed, message)
	require.NoError(t, err)

	ok, err := v.Verify(message, address, signature)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(GenerateChallenge(address, 100), address, signature)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(message, address, common.EncodeBytesToBase58([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.Verify(message, address, "0OIl")
	assert.Error(t, err)

	_, _, err = SignEd25519([]byte{1}, message)
	assert.Error(t, err)
}

func TestEd25519Verifier_ValidateAddress(t *testing.T) {
	v := NewEd25519Verifier()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.NoError(t, v.ValidateAddress(common.EncodeBytesToBase58(pub)))

	assert.ErrorIs(t, v.ValidateAddress("%%%not-base58%%%"), ErrInvalidAddress)
	assert.ErrorIs(t, v.ValidateAddress(common.EncodeBytesToBase58([]byte{1, 2, 3})), ErrInvalidAddress)
	assert.ErrorIs(t, v.ValidateAddress(""), ErrInvalidAddress)
}
