package bls

import (
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/pkg/errors"
)

// DST of the proof-of-possession ciphersuite used for deposits.
var DST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// ParsePubkey decodes a compressed G1 point with subgroup checks.
func ParsePubkey(compressed []byte) (*bls12381.G1Affine, error) {
	if len(compressed) != PubkeyLength {
		return nil, errors.Wrapf(ErrInvalidLength, "pubkey is %d bytes, want %d", len(compressed), PubkeyLength)
	}
	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(compressed); err != nil {
		return nil, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	if pk.IsInfinity() {
		return nil, errors.Wrap(ErrInvalidPoint, "pubkey is the point at infinity")
	}
	return &pk, nil
}

// ParseSignature decodes a compressed G2 point with subgroup checks.
func ParseSignature(compressed []byte) (*bls12381.G2Affine, error) {
	if len(compressed) != SignatureLength {
		return nil, errors.Wrapf(ErrInvalidLength, "signature is %d bytes, want %d", len(compressed), SignatureLength)
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(compressed); err != nil {
		return nil, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	return &sig, nil
}

// Verify checks e(pk, H(msg)) == e(G1, sig) under DST.
// A point that fails to decode is an error, a wrong signature is false.
func Verify(pubkey, signature, msg []byte) (bool, error) {
	pk, err := ParsePubkey(pubkey)
	if err != nil {
		return false, err
	}
	sig, err := ParseSignature(signature)
	if err != nil {
		return false, err
	}

	h, err := bls12381.HashToG2(msg, DST)
	if err != nil {
		return false, errors.Wrap(err, "hash to G2")
	}

	// e(pk, H(m)) * e(-G1, sig) == 1
	_, _, g1Gen, _ := bls12381.Generators()
	var negG1 bls12381.G1Affine
	negG1.Neg(&g1Gen)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{*pk, negG1},
		[]bls12381.G2Affine{h, *sig},
	)
	if err != nil {
		return false, errors.Wrap(err, "pairing check")
	}
	return ok, nil
}
