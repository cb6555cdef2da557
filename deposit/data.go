package deposit

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/types"
)

// DataEntry is one element of a deposit_data-*.json file as written by the
// staking deposit CLI.
type DataEntry struct {
	Pubkey                types.HexBytes  `json:"pubkey"`
	WithdrawalCredentials types.HexBytes  `json:"withdrawal_credentials"`
	Amount                types.Uint64Str `json:"amount"`
	Signature             types.HexBytes  `json:"signature"`
	DepositMessageRoot    types.HexBytes  `json:"deposit_message_root"`
	DepositDataRoot       types.HexBytes  `json:"deposit_data_root"`
	ForkVersion           types.HexBytes  `json:"fork_version"`
	NetworkName           string          `json:"network_name,omitempty"`
}

func ParseDepositData(bz []byte) ([]DataEntry, error) {
	var entries []DataEntry
	if err := json.Unmarshal(bz, &entries); err != nil {
		return nil, errors.Wrap(err, "deposit data")
	}
	for i := range entries {
		if len(entries[i].ForkVersion) != 4 {
			return nil, errors.Wrapf(ErrInvalidLength, "entry %d: fork version is %d bytes", i, len(entries[i].ForkVersion))
		}
	}
	return entries, nil
}

// Deposit converts the entry's gwei amount to wei.
func (e *DataEntry) Deposit() *Deposit {
	return &Deposit{
		Pubkey:          e.Pubkey,
		Signature:       e.Signature,
		Amount:          WeiFromGwei(uint64(e.Amount)),
		DepositDataRoot: e.DepositDataRoot,
	}
}

func (e *DataEntry) Fork() [4]byte {
	var fv [4]byte
	copy(fv[:], e.ForkVersion)
	return fv
}

// Verify checks the entry's message root, then the deposit itself under the
// entry's own fork version.
func (e *DataEntry) Verify() (Result, error) {
	msgRoot, err := DepositMessageRoot(e.Pubkey, e.WithdrawalCredentials, uint64(e.Amount))
	if err != nil {
		return Result{}, err
	}
	if len(e.DepositMessageRoot) > 0 && msgRoot.String() != e.DepositMessageRoot.String() {
		return invalid("deposit message root mismatch: computed " + msgRoot.String()), nil
	}
	return NewVerifier(e.Fork()).IsValidDeposit(e.Deposit(), e.WithdrawalCredentials)
}
