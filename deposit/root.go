package deposit

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/merkle"
	"github.com/kysee/vault-proofs/types"
)

const (
	PubkeyLength                = 48
	WithdrawalCredentialsLength = 32
	SignatureLength             = 96
)

var (
	ErrInvalidLength = errors.New("deposit: invalid length")
	ErrAmountNotGwei = errors.New("deposit: amount is not a whole gwei value")

	weiPerGwei = big.NewInt(1_000_000_000)
)

// GweiFromWei converts a wei amount that must be a whole, positive number of
// gwei fitting a uint64.
func GweiFromWei(amountWei *big.Int) (uint64, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return 0, errors.Wrapf(ErrAmountNotGwei, "amount %v", amountWei)
	}
	gwei, rem := new(big.Int).QuoRem(amountWei, weiPerGwei, new(big.Int))
	if rem.Sign() != 0 || !gwei.IsUint64() {
		return 0, errors.Wrapf(ErrAmountNotGwei, "amount %s wei", amountWei)
	}
	return gwei.Uint64(), nil
}

// WeiFromGwei is the inverse of GweiFromWei.
func WeiFromGwei(gwei uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gwei), weiPerGwei)
}

func checkLengths(pubkey, wc, signature []byte) error {
	if len(pubkey) != PubkeyLength {
		return errors.Wrapf(ErrInvalidLength, "pubkey is %d bytes", len(pubkey))
	}
	if len(wc) != WithdrawalCredentialsLength {
		return errors.Wrapf(ErrInvalidLength, "withdrawal credentials are %d bytes", len(wc))
	}
	if signature != nil && len(signature) != SignatureLength {
		return errors.Wrapf(ErrInvalidLength, "signature is %d bytes", len(signature))
	}
	return nil
}

func pubkeyRoot(pubkey []byte) merkle.Root {
	var pk [48]byte
	copy(pk[:], pubkey)
	return types.PubkeyRoot(pk)
}

func signatureRoot(signature []byte) merkle.Root {
	var a, b, c merkle.Root
	copy(a[:], signature[0:32])
	copy(b[:], signature[32:64])
	copy(c[:], signature[64:96])
	return merkle.Hash(merkle.Hash(a, b), merkle.Hash(c, merkle.Root{}))
}

// ComputeDepositDataRoot is hash_tree_root(DepositData) as the deposit
// contract checks it.
func ComputeDepositDataRoot(pubkey, wc, signature []byte, amountWei *big.Int) (merkle.Root, error) {
	if signature == nil {
		signature = []byte{}
	}
	if err := checkLengths(pubkey, wc, signature); err != nil {
		return merkle.Root{}, err
	}
	gwei, err := GweiFromWei(amountWei)
	if err != nil {
		return merkle.Root{}, err
	}

	var wcRoot merkle.Root
	copy(wcRoot[:], wc)
	return merkle.Hash(
		merkle.Hash(pubkeyRoot(pubkey), wcRoot),
		merkle.Hash(types.Uint64Leaf(gwei), signatureRoot(signature)),
	), nil
}

// DepositMessageRoot is hash_tree_root(DepositMessage{pubkey, wc, amount}).
func DepositMessageRoot(pubkey, wc []byte, amountGwei uint64) (merkle.Root, error) {
	if err := checkLengths(pubkey, wc, nil); err != nil {
		return merkle.Root{}, err
	}
	var wcRoot merkle.Root
	copy(wcRoot[:], wc)
	return merkle.Hash(
		merkle.Hash(pubkeyRoot(pubkey), wcRoot),
		merkle.Hash(types.Uint64Leaf(amountGwei), merkle.Root{}),
	), nil
}

// SigningRoot is the message a deposit signature commits to.
func SigningRoot(messageRoot merkle.Root, forkVersion [4]byte) merkle.Root {
	return types.ComputeSigningRoot(messageRoot, types.ComputeDepositDomain(forkVersion))
}
