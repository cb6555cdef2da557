package provers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kysee/vault-proofs/bls"
	"github.com/kysee/vault-proofs/deposit"
	"github.com/kysee/vault-proofs/merkle"
	"github.com/kysee/vault-proofs/types"
)

// DepositY carries the decompressed Y coordinates the on-chain BLS check
// needs alongside the compressed points.
type DepositY struct {
	PubkeyY    bls.Fp  `json:"pubkeyY"`
	SignatureY bls.Fp2 `json:"signatureY"`
}

// Predeposit is one entry of a predeposit call.
type Predeposit struct {
	Pubkey                types.HexBytes `json:"pubkey"`
	Signature             types.HexBytes `json:"signature"`
	Amount                *hexutil.Big   `json:"amount"`
	DepositDataRoot       types.HexBytes `json:"depositDataRoot"`
	WithdrawalCredentials types.HexBytes `json:"withdrawalCredentials"`
	Y                     DepositY       `json:"depositY"`
}

// PredepositBuilder checks deposits and expands them into predeposit entries.
type PredepositBuilder struct {
	verifier *deposit.Verifier
}

func NewPredepositBuilder(forkVersion [4]byte) *PredepositBuilder {
	return &PredepositBuilder{verifier: deposit.NewVerifier(forkVersion)}
}

// Build validates d for wc and expands its points. An invalid deposit comes
// back as a Result with a nil payload; errors are reserved for malformed
// input.
func (b *PredepositBuilder) Build(d *deposit.Deposit, wc merkle.Root) (*Predeposit, deposit.Result, error) {
	res, err := b.verifier.IsValidDeposit(d, wc[:])
	if err != nil {
		return nil, deposit.Result{}, err
	}
	if !res.IsValid {
		log.Warn().Str("pubkey", d.Pubkey.String()).Str("reason", res.Reason).Msg("deposit rejected")
		return nil, res, nil
	}

	pubY, err := bls.DecompressPubkey(d.Pubkey)
	if err != nil {
		return nil, deposit.Result{}, errors.Wrap(err, "pubkey")
	}
	sigY, err := bls.DecompressSignature(d.Signature)
	if err != nil {
		return nil, deposit.Result{}, errors.Wrap(err, "signature")
	}
	return &Predeposit{
		Pubkey:                d.Pubkey,
		Signature:             d.Signature,
		Amount:                (*hexutil.Big)(new(big.Int).Set(d.Amount)),
		DepositDataRoot:       d.DepositDataRoot,
		WithdrawalCredentials: wc[:],
		Y:                     DepositY{PubkeyY: pubY, SignatureY: sigY},
	}, res, nil
}

// BuildAll runs Build over deposits that share withdrawal credentials and
// stops at the first malformed one.
func (b *PredepositBuilder) BuildAll(deposits []*deposit.Deposit, wc merkle.Root) ([]*Predeposit, []deposit.Result, error) {
	out := make([]*Predeposit, len(deposits))
	results := make([]deposit.Result, len(deposits))
	for i, d := range deposits {
		var err error
		if out[i], results[i], err = b.Build(d, wc); err != nil {
			return nil, nil, errors.Wrapf(err, "deposit %d", i)
		}
	}
	return out, results, nil
}
