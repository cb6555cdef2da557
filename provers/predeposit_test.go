package provers

import (
	"encoding/json"
	"math/big"
	"math/rand"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/require"

	"github.com/kysee/vault-proofs/bls"
	"github.com/kysee/vault-proofs/deposit"
	"github.com/kysee/vault-proofs/merkle"
)

var hoodiForkVersion = [4]byte{0x10, 0x00, 0x09, 0x10}

func signedDeposit(t *testing.T, seed int64, wc merkle.Root, amount *big.Int) *deposit.Deposit {
	t.Helper()
	sk := new(big.Int).Rand(rand.New(rand.NewSource(seed)), fr.Modulus())
	_, _, g1, _ := bls12381.Generators()
	var pk bls12381.G1Affine
	pk.ScalarMultiplication(&g1, sk)
	pkBytes := pk.Bytes()

	gwei, err := deposit.GweiFromWei(amount)
	require.NoError(t, err)
	msgRoot, err := deposit.DepositMessageRoot(pkBytes[:], wc[:], gwei)
	require.NoError(t, err)
	signingRoot := deposit.SigningRoot(msgRoot, hoodiForkVersion)

	h, err := bls12381.HashToG2(signingRoot[:], bls.DST)
	require.NoError(t, err)
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&h, sk)
	sigBytes := sig.Bytes()

	root, err := deposit.ComputeDepositDataRoot(pkBytes[:], wc[:], sigBytes[:], amount)
	require.NoError(t, err)
	return &deposit.Deposit{Pubkey: pkBytes[:], Signature: sigBytes[:], Amount: amount, DepositDataRoot: root[:]}
}

func TestPredepositBuilder(t *testing.T) {
	wc := merkle.Root{0x02}
	wc[31] = 0x42
	amount := deposit.WeiFromGwei(1_000_000_000)
	d := signedDeposit(t, 1, wc, amount)

	b := NewPredepositBuilder(hoodiForkVersion)
	p, res, err := b.Build(d, wc)
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.NotNil(t, p)

	pubY, err := bls.DecompressPubkey(d.Pubkey)
	require.NoError(t, err)
	require.Equal(t, pubY, p.Y.PubkeyY)
	sigY, err := bls.DecompressSignature(d.Signature)
	require.NoError(t, err)
	require.Equal(t, sigY, p.Y.SignatureY)
	require.Equal(t, amount, p.Amount.ToInt())
	require.Equal(t, wc[:], []byte(p.WithdrawalCredentials))

	bz, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(bz), `"amount":"0xde0b6b3a7640000"`)
	require.Contains(t, string(bz), `"depositY":{"pubkeyY":{"a":"0x`)

	// signed for other credentials
	other := merkle.Root{0x01}
	p, res, err = b.Build(d, other)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.NotEmpty(t, res.Reason)
	require.Nil(t, p)

	// signed for another network
	p, res, err = NewPredepositBuilder([4]byte{}).Build(d, wc)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Nil(t, p)

	short := *d
	short.Pubkey = d.Pubkey[:47]
	_, _, err = b.Build(&short, wc)
	require.Error(t, err)
}

func TestPredepositBuilder_BuildAll(t *testing.T) {
	wc := merkle.Root{0x02}
	b := NewPredepositBuilder(hoodiForkVersion)
	good := signedDeposit(t, 2, wc, deposit.WeiFromGwei(1_000_000_000))
	tampered := signedDeposit(t, 3, wc, deposit.WeiFromGwei(1_000_000_000))
	tampered.Amount = deposit.WeiFromGwei(2_000_000_000)

	out, results, err := b.BuildAll([]*deposit.Deposit{good, tampered}, wc)
	require.NoError(t, err)
	require.True(t, results[0].IsValid)
	require.NotNil(t, out[0])
	require.False(t, results[1].IsValid)
	require.Nil(t, out[1])

	_, _, err = b.BuildAll([]*deposit.Deposit{good, nil}, wc)
	require.Error(t, err)
}
