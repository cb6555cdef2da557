package types

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/merkle"
)

var ErrUnsupportedFork = errors.New("unsupported fork")

const (
	// ValidatorRegistryLimitDepth is log2(VALIDATOR_REGISTRY_LIMIT).
	ValidatorRegistryLimitDepth = 40
	// ValidatorDepth covers the 8 fields of a Validator container.
	ValidatorDepth = 3

	// PubkeyWCParentGIndex is the node hashing pubkey and withdrawal
	// credentials together, local to a Validator container.
	PubkeyWCParentGIndex merkle.GIndex = 4
	// StateRootGIndex is state_root inside a BeaconBlockHeader.
	StateRootGIndex merkle.GIndex = 11
	// HeaderDepth covers the 5 fields of a BeaconBlockHeader.
	HeaderDepth = 3
)

// Fork is the closed set of state schemas this module can prove against.
type Fork uint8

const (
	ForkUnknown Fork = iota
	ForkCapella
	ForkDeneb
	ForkElectra
)

func (f Fork) String() string {
	switch f {
	case ForkCapella:
		return "capella"
	case ForkDeneb:
		return "deneb"
	case ForkElectra:
		return "electra"
	default:
		return "unknown(" + strconv.Itoa(int(f)) + ")"
	}
}

func (f Fork) MarshalText() ([]byte, error) {
	if f == ForkUnknown || f > ForkElectra {
		return nil, errors.Wrap(ErrUnsupportedFork, f.String())
	}
	return []byte(f.String()), nil
}

func (f *Fork) UnmarshalText(b []byte) error {
	v, err := ParseFork(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFork maps a consensus version tag to a Fork. Anything outside the
// known set is rejected; there is no default schema.
func ParseFork(tag string) (Fork, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "capella":
		return ForkCapella, nil
	case "deneb":
		return ForkDeneb, nil
	case "electra":
		return ForkElectra, nil
	}
	return ForkUnknown, errors.Wrapf(ErrUnsupportedFork, "%q", tag)
}

var capellaStateFields = []string{
	"genesis_time",
	"genesis_validators_root",
	"slot",
	"fork",
	"latest_block_header",
	"block_roots",
	"state_roots",
	"historical_roots",
	"eth1_data",
	"eth1_data_votes",
	"eth1_deposit_index",
	"validators",
	"balances",
	"randao_mixes",
	"slashings",
	"previous_epoch_participation",
	"current_epoch_participation",
	"justification_bits",
	"previous_justified_checkpoint",
	"current_justified_checkpoint",
	"finalized_checkpoint",
	"inactivity_scores",
	"current_sync_committee",
	"next_sync_committee",
	"latest_execution_payload_header",
	"next_withdrawal_index",
	"next_withdrawal_validator_index",
	"historical_summaries",
}

var electraStateFields = append(append([]string{}, capellaStateFields...),
	"deposit_requests_start_index",
	"deposit_balance_to_consume",
	"exit_balance_to_consume",
	"earliest_exit_epoch",
	"consolidation_balance_to_consume",
	"earliest_consolidation_epoch",
	"pending_deposits",
	"pending_partial_withdrawals",
	"pending_consolidations",
)

var validatorFields = []string{
	"pubkey",
	"withdrawal_credentials",
	"effective_balance",
	"slashed",
	"activation_eligibility_epoch",
	"activation_epoch",
	"exit_epoch",
	"withdrawable_epoch",
}

// StateLayout holds the static shape of a BeaconState for one fork.
type StateLayout struct {
	Fork   Fork
	Fields []string
}

// Layout is the exhaustive fork -> layout match.
func (f Fork) Layout() (StateLayout, error) {
	switch f {
	case ForkCapella, ForkDeneb:
		return StateLayout{Fork: f, Fields: capellaStateFields}, nil
	case ForkElectra:
		return StateLayout{Fork: f, Fields: electraStateFields}, nil
	}
	return StateLayout{}, errors.Wrap(ErrUnsupportedFork, f.String())
}

func coverDepth(n int) uint8 {
	d := uint8(0)
	for (1 << d) < n {
		d++
	}
	return d
}

// Depth is the depth of the state container's field tree.
func (l StateLayout) Depth() uint8 {
	return coverDepth(len(l.Fields))
}

// MaxDepth is the deepest node reachable in the state: the second chunk of a
// validator pubkey.
func (l StateLayout) MaxDepth() uint8 {
	return l.Depth() + 1 + ValidatorRegistryLimitDepth + ValidatorDepth + 1
}

func (l StateLayout) FieldGIndex(name string) (merkle.GIndex, error) {
	for i, f := range l.Fields {
		if f == name {
			return merkle.ComputeGIndex(l.Depth(), uint64(i))
		}
	}
	return 0, errors.Wrapf(merkle.ErrUnknownPath, "%s has no field %q", l.Fork, name)
}

func (l StateLayout) mustField(name string) merkle.GIndex {
	g, err := l.FieldGIndex(name)
	if err != nil {
		panic(err)
	}
	return g
}

func (l StateLayout) SlotGIndex() merkle.GIndex {
	return l.mustField("slot")
}

func (l StateLayout) ValidatorsGIndex() merkle.GIndex {
	return l.mustField("validators")
}

// ValidatorsLengthGIndex is the length mix-in of the validators list.
func (l StateLayout) ValidatorsLengthGIndex() merkle.GIndex {
	return l.ValidatorsGIndex()*2 + 1
}

// FirstValidatorGIndex is the gindex of validators[0] in the state tree.
func (l StateLayout) FirstValidatorGIndex() merkle.GIndex {
	return (l.ValidatorsGIndex() * 2) << ValidatorRegistryLimitDepth
}

func (l StateLayout) ValidatorGIndex(index uint64) (merkle.GIndex, error) {
	if index >= 1<<ValidatorRegistryLimitDepth {
		return 0, errors.Wrapf(merkle.ErrIndexOutOfRange, "validator index %d", index)
	}
	return l.FirstValidatorGIndex() + merkle.GIndex(index), nil
}

// ValidatorFieldGIndex is the root of one field of validators[index].
func (l StateLayout) ValidatorFieldGIndex(index uint64, field string) (merkle.GIndex, error) {
	g, err := l.ValidatorGIndex(index)
	if err != nil {
		return 0, err
	}
	for i, f := range validatorFields {
		if f == field {
			return g<<ValidatorDepth | merkle.GIndex(i), nil
		}
	}
	return 0, errors.Wrapf(merkle.ErrUnknownPath, "validator has no field %q", field)
}

// ResolvePath resolves dotted paths such as "slot", "validators.7" or
// "validators.7.withdrawal_credentials".
func (l StateLayout) ResolvePath(path string) (merkle.GIndex, error) {
	parts := strings.Split(path, ".")
	if parts[0] != "validators" || len(parts) == 1 {
		if len(parts) != 1 {
			return 0, errors.Wrapf(merkle.ErrUnknownPath, "%s: nested path", path)
		}
		return l.FieldGIndex(parts[0])
	}
	if parts[1] == "length" && len(parts) == 2 {
		return l.ValidatorsLengthGIndex(), nil
	}
	index, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(merkle.ErrUnknownPath, "%s: bad index", path)
	}
	switch len(parts) {
	case 2:
		return l.ValidatorGIndex(index)
	case 3:
		return l.ValidatorFieldGIndex(index, parts[2])
	}
	return 0, errors.Wrapf(merkle.ErrUnknownPath, "%s: too deep", path)
}

// ForkSchedule selects layout constants by slot.
type ForkSchedule struct {
	ElectraSlot uint64
}

// LayoutFamily is the fork whose validator gindex applies at slot. Capella
// and Deneb share a layout so pre-Electra slots report ForkDeneb.
func (s ForkSchedule) LayoutFamily(slot uint64) Fork {
	if slot >= s.ElectraSlot {
		return ForkElectra
	}
	return ForkDeneb
}

// FirstValidatorGIndex picks the validators[0] gindex for a state at slot.
func (s ForkSchedule) FirstValidatorGIndex(slot uint64) merkle.GIndex {
	l, _ := s.LayoutFamily(slot).Layout()
	return l.FirstValidatorGIndex()
}

// Agrees reports whether the fork tag and the slot select the same layout.
func (s ForkSchedule) Agrees(slot uint64, fork Fork) bool {
	family := s.LayoutFamily(slot)
	if family == ForkElectra {
		return fork == ForkElectra
	}
	return fork == ForkCapella || fork == ForkDeneb
}
