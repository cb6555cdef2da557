package bls

import (
	"encoding/json"
	"math/big"
	"math/rand"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/require"
)

func keypair(seed int64) (*big.Int, bls12381.G1Affine) {
	sk := new(big.Int).Rand(rand.New(rand.NewSource(seed)), fr.Modulus())
	_, _, g1, _ := bls12381.Generators()
	var pk bls12381.G1Affine
	pk.ScalarMultiplication(&g1, sk)
	return sk, pk
}

func sign(sk *big.Int, msg []byte) (bls12381.G2Affine, error) {
	h, err := bls12381.HashToG2(msg, DST)
	if err != nil {
		return h, err
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&h, sk)
	return sig, nil
}

func TestDecompressPubkey(t *testing.T) {
	for seed := int64(1); seed <= 16; seed++ {
		_, pk := keypair(seed)
		compressed := pk.Bytes()

		y, err := DecompressPubkey(compressed[:])
		require.NoError(t, err)
		require.Equal(t, [16]byte{}, [16]byte(y.A[:16]), "high word must be left padded")

		e, err := y.Element()
		require.NoError(t, err)
		require.True(t, e.Equal(&pk.Y))

		recomposed := bls12381.G1Affine{X: pk.X, Y: e}
		require.True(t, recomposed.IsOnCurve())
	}
}

func TestDecompressSignature(t *testing.T) {
	sk, _ := keypair(42)
	for i := 0; i < 8; i++ {
		sig, err := sign(sk, []byte{byte(i)})
		require.NoError(t, err)
		compressed := sig.Bytes()

		y, err := DecompressSignature(compressed[:])
		require.NoError(t, err)
		for _, f := range []Fp{y.C0, y.C1} {
			require.Equal(t, [16]byte{}, [16]byte(f.A[:16]))
		}

		e, err := y.Element()
		require.NoError(t, err)
		require.True(t, e.Equal(&sig.Y))
		require.True(t, (&bls12381.G2Affine{X: sig.X, Y: e}).IsOnCurve())

		// c1 comes first in the raw serialization
		c1 := sig.Y.A1.Bytes()
		require.Equal(t, c1, y.C1.Bytes())

		swapped := bls12381.G2Affine{X: sig.X}
		swapped.Y.A0, swapped.Y.A1 = e.A1, e.A0
		require.False(t, swapped.IsOnCurve())
	}
}

func TestDecompressInvalidInput(t *testing.T) {
	_, err := DecompressPubkey(make([]byte, 47))
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = DecompressSignature(make([]byte, 95))
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = DecompressSignature(make([]byte, 48))
	require.ErrorIs(t, err, ErrInvalidLength)

	rng := rand.New(rand.NewSource(9))
	found := false
	for i := 0; i < 64 && !found; i++ {
		x := make([]byte, PubkeyLength)
		rng.Read(x)
		x[0] = 0x80 | x[0]&0x0f
		if _, err := DecompressPubkey(x); err != nil {
			require.ErrorIs(t, err, ErrInvalidPoint)
			found = true
		}
	}
	require.True(t, found, "no off-curve x found")
}

func TestVerify(t *testing.T) {
	sk, pk := keypair(7)
	msg := []byte("deposit signing root")
	sig, err := sign(sk, msg)
	require.NoError(t, err)
	pkb, sigb := pk.Bytes(), sig.Bytes()

	ok, err := Verify(pkb[:], sigb[:], msg)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify(pkb[:], sigb[:], []byte("other message"))
	require.NoError(t, err)
	require.False(t, ok)

	_, other := keypair(8)
	otherb := other.Bytes()
	ok, err = Verify(otherb[:], sigb[:], msg)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Verify(pkb[:40], sigb[:], msg)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestFpJSON(t *testing.T) {
	f := Fp{}
	f.A[31] = 1
	f.B[0] = 0xff
	bz, err := json.Marshal(Fp2{C0: f})
	require.NoError(t, err)

	var out struct {
		C0 struct{ A, B string }
	}
	require.NoError(t, json.Unmarshal(bz, &out))
	require.Equal(t, "0x"+repeat("00", 31)+"01", out.C0.A)
	require.Equal(t, "0xff"+repeat("00", 31), out.C0.B)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
