package types

import (
	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/merkle"
)

var (
	// DomainDeposit is DOMAIN_DEPOSIT.
	DomainDeposit = [4]byte{0x03, 0x00, 0x00, 0x00}
)

// ComputeDomain computes the BLS domain
// domain = domain_type || fork_data_root[:28]
// where fork_data_root = hash_tree_root(ForkData(fork_version, genesis_validators_root))
func ComputeDomain(domainType []byte, forkVersion []byte, genesisValidatorsRoot []byte) ([32]byte, error) {
	var domain [32]byte

	// Validate input lengths
	if len(domainType) != 4 {
		return domain, errors.Errorf("domainType must be 4 bytes, got %d", len(domainType))
	}
	if len(forkVersion) != 4 {
		return domain, errors.Errorf("forkVersion must be 4 bytes, got %d", len(forkVersion))
	}
	if len(genesisValidatorsRoot) != 32 {
		return domain, errors.Errorf("genesisValidatorsRoot must be 32 bytes, got %d", len(genesisValidatorsRoot))
	}

	// fork_version is serialized as a 32-byte chunk, zero padded
	var forkVersionChunk, gvr merkle.Root
	copy(forkVersionChunk[:4], forkVersion)
	copy(gvr[:], genesisValidatorsRoot)
	forkDataRoot := merkle.Hash(forkVersionChunk, gvr)

	copy(domain[:4], domainType)
	copy(domain[4:], forkDataRoot[:28])

	return domain, nil
}

// ComputeDepositDomain is the deposit domain for a genesis fork version.
// Deposits are valid across forks, so the genesis validators root is zero.
func ComputeDepositDomain(forkVersion [4]byte) [32]byte {
	domain, _ := ComputeDomain(DomainDeposit[:], forkVersion[:], make([]byte, 32))
	return domain
}

// ComputeSigningRoot is hash_tree_root(SigningData(object_root, domain)).
func ComputeSigningRoot(objectRoot merkle.Root, domain [32]byte) merkle.Root {
	return merkle.Hash(objectRoot, domain)
}
