package deposit

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kysee/vault-proofs/bls"
	"github.com/kysee/vault-proofs/types"
)

// Deposit is what the deposit contract receives.
type Deposit struct {
	Pubkey          types.HexBytes `json:"pubkey"`
	Signature       types.HexBytes `json:"signature"`
	Amount          *big.Int       `json:"amount"`
	DepositDataRoot types.HexBytes `json:"depositDataRoot"`
}

// Result of a deposit check. Reason is empty when IsValid is set.
type Result struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

type Verifier struct {
	ForkVersion [4]byte
}

func NewVerifier(forkVersion [4]byte) *Verifier {
	return &Verifier{ForkVersion: forkVersion}
}

// IsValidDeposit checks the data root and the BLS signature of d for the
// given withdrawal credentials. Malformed input is an error; a wrong root or
// signature is an invalid Result.
func (v *Verifier) IsValidDeposit(d *Deposit, wc []byte) (Result, error) {
	if d == nil {
		return Result{}, errors.New("nil deposit")
	}
	if len(d.DepositDataRoot) != 32 {
		return Result{}, errors.Wrapf(ErrInvalidLength, "deposit data root is %d bytes", len(d.DepositDataRoot))
	}
	root, err := ComputeDepositDataRoot(d.Pubkey, wc, d.Signature, d.Amount)
	if err != nil {
		return Result{}, err
	}
	if root.String() != d.DepositDataRoot.String() {
		log.Debug().Str("pubkey", d.Pubkey.String()).Str("expected", d.DepositDataRoot.String()).Str("computed", root.String()).Msg("deposit data root mismatch")
		return invalid("deposit data root mismatch: computed " + root.String()), nil
	}

	gwei, _ := GweiFromWei(d.Amount)
	msgRoot, err := DepositMessageRoot(d.Pubkey, wc, gwei)
	if err != nil {
		return Result{}, err
	}
	signingRoot := SigningRoot(msgRoot, v.ForkVersion)

	ok, err := bls.Verify(d.Pubkey, d.Signature, signingRoot[:])
	switch {
	case errors.Is(err, bls.ErrInvalidPoint):
		return invalid(err.Error()), nil
	case err != nil:
		return Result{}, err
	case !ok:
		log.Debug().Str("pubkey", d.Pubkey.String()).Msg("deposit signature does not verify")
		return invalid("invalid deposit signature"), nil
	}
	return Result{IsValid: true}, nil
}
