package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var vaultEncoding = []string{"address", "uint256", "uint256", "uint256", "uint256", "int256"}

type dumpMeta struct {
	RefSlot     uint64
	BlockNumber uint64
	Timestamp   uint64
	PrevTreeCID string
}

// buildDump lays out rows the way the OpenZeppelin library does: leaves
// sorted by hash, stored from the end of the node array.
func buildDump(t *testing.T, encoding []string, rows [][]string, meta dumpMeta) []byte {
	t.Helper()
	type hashed struct {
		row  int
		hash common.Hash
	}
	leaves := make([]hashed, len(rows))
	for i, row := range rows {
		h, err := LeafHash(encoding, row)
		require.NoError(t, err)
		leaves[i] = hashed{row: i, hash: h}
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i].hash[:], leaves[j].hash[:]) < 0 })

	nodes := make([]common.Hash, 2*len(leaves)-1)
	for i, l := range leaves {
		nodes[len(nodes)-1-i] = l.hash
	}
	for i := len(nodes) - 1 - len(leaves); i >= 0; i-- {
		nodes[i] = hashPair(nodes[leftChild(i)], nodes[rightChild(i)])
	}

	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		values[i] = map[string]any{"value": row}
	}
	for i, l := range leaves {
		values[l.row]["treeIndex"] = len(nodes) - 1 - i
	}

	dump := map[string]any{
		"format":       standardFormat,
		"leafEncoding": encoding,
		"tree":         nodes,
		"values":       values,
		"refSlot":      meta.RefSlot,
		"blockNumber":  meta.BlockNumber,
		"timestamp":    meta.Timestamp,
		"prevTreeCID":  meta.PrevTreeCID,
	}
	bz, err := json.Marshal(dump)
	require.NoError(t, err)
	return bz
}

func vaultAddr(i int) string {
	return common.BigToAddress(new(big.Int).Lsh(big.NewInt(1), uint(8*i+3))).Hex()
}

func vaultRows(n int, scale int64) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{
			vaultAddr(i),
			fmt.Sprint(scale * int64(i+1) * 1_000_000_000),
			fmt.Sprint(i * 10),
			fmt.Sprint(i * 100),
			"0",
			fmt.Sprint(-int64(i) * 7),
		}
	}
	return rows
}

func rawCID(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

// memFetcher serves verified content from memory.
type memFetcher struct {
	blobs      map[string][]byte
	mismatch   map[string]bool
	skipVerify bool
	calls      int
}

func newMemFetcher() *memFetcher {
	return &memFetcher{blobs: map[string][]byte{}, mismatch: map[string]bool{}}
}

func (m *memFetcher) put(t *testing.T, data []byte) cid.Cid {
	c := rawCID(t, data)
	m.blobs[c.KeyString()] = data
	return c
}

func (m *memFetcher) FetchAndVerify(_ context.Context, c cid.Cid) ([]byte, error) {
	m.calls++
	if m.mismatch[c.KeyString()] {
		return nil, errors.Wrapf(ErrCIDMismatch, "%s", c)
	}
	data, ok := m.blobs[c.KeyString()]
	if !ok {
		return nil, errors.Errorf("gateway timeout for %s", c)
	}
	if m.skipVerify {
		return data, nil
	}
	return data, VerifyCID(c, data)
}
