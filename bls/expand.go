package bls

import (
	"bytes"
	"encoding/json"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fp"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const (
	PubkeyLength    = 48
	SignatureLength = 96
	fieldLength     = 48
)

var (
	ErrInvalidLength = errors.New("bls: invalid length")
	ErrInvalidPoint  = errors.New("bls: invalid point")
)

// Fp is a base field element split into two 32 byte big-endian words.
// A holds the high 16 bytes left padded with zeros, B the low 32 bytes.
type Fp struct {
	A [32]byte
	B [32]byte
}

func (f Fp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		A hexutil.Bytes `json:"a"`
		B hexutil.Bytes `json:"b"`
	}{f.A[:], f.B[:]})
}

// Fp2 is c0 + c1*u.
type Fp2 struct {
	C0 Fp `json:"c0"`
	C1 Fp `json:"c1"`
}

func fpFromBytes(fe []byte) Fp {
	var out Fp
	copy(out.A[16:], fe[:16])
	copy(out.B[:], fe[16:])
	return out
}

// Bytes joins the two words back into the 48 byte field encoding.
func (f Fp) Bytes() [fieldLength]byte {
	var out [fieldLength]byte
	copy(out[:16], f.A[16:])
	copy(out[16:], f.B[:])
	return out
}

// Element recomposes the field element.
func (f Fp) Element() (fp.Element, error) {
	var e fp.Element
	b := f.Bytes()
	if err := e.SetBytesCanonical(b[:]); err != nil {
		return e, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	return e, nil
}

func (f Fp2) Element() (bls12381.E2, error) {
	var e bls12381.E2
	var err error
	if e.A0, err = f.C0.Element(); err != nil {
		return e, err
	}
	if e.A1, err = f.C1.Element(); err != nil {
		return e, err
	}
	return e, nil
}

// DecompressPubkey derives the Y coordinate of a compressed G1 point. No
// subgroup check is done.
func DecompressPubkey(compressed []byte) (Fp, error) {
	if len(compressed) != PubkeyLength {
		return Fp{}, errors.Wrapf(ErrInvalidLength, "pubkey is %d bytes, want %d", len(compressed), PubkeyLength)
	}
	var p bls12381.G1Affine
	dec := bls12381.NewDecoder(bytes.NewReader(compressed), bls12381.NoSubgroupChecks())
	if err := dec.Decode(&p); err != nil {
		return Fp{}, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	y := p.Y.Bytes()
	return fpFromBytes(y[:]), nil
}

// DecompressSignature derives the Y coordinate of a compressed G2 point.
// The uncompressed serialization lays Y out as c1 then c0.
func DecompressSignature(compressed []byte) (Fp2, error) {
	if len(compressed) != SignatureLength {
		return Fp2{}, errors.Wrapf(ErrInvalidLength, "signature is %d bytes, want %d", len(compressed), SignatureLength)
	}
	var p bls12381.G2Affine
	dec := bls12381.NewDecoder(bytes.NewReader(compressed), bls12381.NoSubgroupChecks())
	if err := dec.Decode(&p); err != nil {
		return Fp2{}, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	raw := p.RawBytes()
	y := raw[2*fieldLength:]
	return Fp2{
		C0: fpFromBytes(y[fieldLength:]),
		C1: fpFromBytes(y[:fieldLength]),
	}, nil
}
