package provers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

const (
	headerFile  = "header.json"
	stateFile   = "state.ssz"
	forkFile    = "state.fork"
	childFile   = "child.json"
	genesisFile = "genesis.json"
)

// FileFetcher implements Fetcher by reading one snapshot saved in a
// directory. Block and state ids are ignored.
//
//	header.json   GET /eth/v1/beacon/headers/{id} response
//	state.ssz     SSZ state body
//	state.fork    consensus version tag of the state
//	child.json    GET /eth/v1/beacon/headers?parent_root= response
//	genesis.json  GET /eth/v1/beacon/genesis response
type FileFetcher struct {
	Dir string
}

// NewFileFetcher creates a new FileFetcher reading from dir
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{Dir: dir}
}

func (f *FileFetcher) readJSON(name string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", name)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s", name)
	}
	return nil
}

func (f *FileFetcher) BeaconHeader(_ context.Context, _ string) (*cfgtypes.HeaderData, error) {
	var res cfgtypes.HeaderAPIResponse
	if err := f.readJSON(headerFile, &res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

func (f *FileFetcher) BeaconState(_ context.Context, _ string) (*cfgtypes.BeaconState, error) {
	tag, err := os.ReadFile(filepath.Join(f.Dir, forkFile))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", forkFile)
	}
	fork, err := types.ParseFork(strings.TrimSpace(string(tag)))
	if err != nil {
		return nil, err
	}
	ssz, err := os.ReadFile(filepath.Join(f.Dir, stateFile))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", stateFile)
	}
	return &cfgtypes.BeaconState{Fork: fork, SSZ: ssz}, nil
}

func (f *FileFetcher) ChildHeader(_ context.Context, parentRoot merkle.Root) (*cfgtypes.HeaderData, error) {
	var res cfgtypes.HeadersAPIResponse
	if err := f.readJSON(childFile, &res); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var matching []cfgtypes.HeaderData
	for _, h := range res.Data {
		if merkle.Root(h.Header.Message.ParentRoot) == parentRoot {
			matching = append(matching, h)
		}
	}
	return firstChild(matching), nil
}

func (f *FileFetcher) Genesis(_ context.Context) (uint64, error) {
	var res struct {
		Data struct {
			GenesisTime types.Uint64Str `json:"genesis_time"`
		} `json:"data"`
	}
	if err := f.readJSON(genesisFile, &res); err != nil {
		return 0, err
	}
	return uint64(res.Data.GenesisTime), nil
}
