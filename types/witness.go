package types

import (
	"encoding/json"

	"github.com/kysee/vault-proofs/merkle"
)

// ValidatorWitness proves that a validator with the given pubkey and
// withdrawal credentials sits at ValidatorIndex under the block anchored at
// ChildBlockTimestamp.
type ValidatorWitness struct {
	Proof                 merkle.Proof
	Pubkey                [48]byte
	ValidatorIndex        uint64
	ChildBlockTimestamp   uint64
	WithdrawalCredentials merkle.Root

	Slot       uint64
	Fork       Fork
	HeaderRoot merkle.Root
	GIndex     merkle.GIndex
}

// Verify folds the proof from the pubkey/WC node up to HeaderRoot.
func (w *ValidatorWitness) Verify() bool {
	return merkle.Verify(PubkeyWCRoot(w.Pubkey, w.WithdrawalCredentials), w.Proof, w.GIndex, w.HeaderRoot)
}

type validatorWitnessJSON struct {
	Proof                 []HexBytes `json:"proof"`
	Pubkey                HexBytes   `json:"pubkey"`
	ValidatorIndex        Uint64Str  `json:"validatorIndex"`
	ChildBlockTimestamp   Uint64Str  `json:"childBlockTimestamp"`
	WithdrawalCredentials HexBytes   `json:"withdrawalCredentials"`
	Slot                  Uint64Str  `json:"slot"`
	Fork                  Fork       `json:"fork"`
	HeaderRoot            HexBytes   `json:"headerRoot"`
	GIndex                Uint64Str  `json:"gindex"`
}

func (w ValidatorWitness) MarshalJSON() ([]byte, error) {
	return json.Marshal(validatorWitnessJSON{
		Proof:                 RootsToHex(w.Proof),
		Pubkey:                w.Pubkey[:],
		ValidatorIndex:        Uint64Str(w.ValidatorIndex),
		ChildBlockTimestamp:   Uint64Str(w.ChildBlockTimestamp),
		WithdrawalCredentials: w.WithdrawalCredentials[:],
		Slot:                  Uint64Str(w.Slot),
		Fork:                  w.Fork,
		HeaderRoot:            w.HeaderRoot[:],
		GIndex:                Uint64Str(w.GIndex),
	})
}
