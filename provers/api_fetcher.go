package provers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	eth2http "github.com/attestantio/go-eth2-client/http"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

const consensusVersionHeader = "Eth-Consensus-Version"

// APIFetcher implements Fetcher by calling Beacon API REST endpoints
type APIFetcher struct {
	BaseURL string
	Client  *http.Client

	genesisMu   sync.Mutex
	genesisTime uint64
}

// NewAPIFetcher creates a new APIFetcher with the given base URL
func NewAPIFetcher(baseURL string, timeout time.Duration) *APIFetcher {
	return &APIFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (a *APIFetcher) endpoint(path string, query url.Values) (string, error) {
	endpoint, err := url.Parse(a.BaseURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid base URL")
	}
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}

// get sends the request and returns the response once the status is OK. The
// caller closes the body.
func (a *APIFetcher) get(ctx context.Context, path string, query url.Values, accept string) (*http.Response, error) {
	target, err := a.endpoint(path, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", accept)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("API request %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}
	return resp, nil
}

func (a *APIFetcher) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := a.get(ctx, path, query, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// BeaconHeader retrieves a block header
// GET /eth/v1/beacon/headers/{block_id}
func (a *APIFetcher) BeaconHeader(ctx context.Context, blockID string) (*cfgtypes.HeaderData, error) {
	var res cfgtypes.HeaderAPIResponse
	if err := a.getJSON(ctx, "/eth/v1/beacon/headers/"+blockID, nil, &res); err != nil {
		return nil, errors.Wrapf(err, "header %s", blockID)
	}
	return &res.Data, nil
}

// BeaconState downloads the SSZ state. The fork is taken from the response
// header before the body is read, so unsupported forks are never downloaded.
// GET /eth/v2/debug/beacon/states/{state_id}
func (a *APIFetcher) BeaconState(ctx context.Context, stateID string) (*cfgtypes.BeaconState, error) {
	resp, err := a.get(ctx, "/eth/v2/debug/beacon/states/"+stateID, nil, "application/octet-stream")
	if err != nil {
		return nil, errors.Wrapf(err, "state %s", stateID)
	}
	defer resp.Body.Close()

	tag := resp.Header.Get(consensusVersionHeader)
	fork, err := types.ParseFork(tag)
	if err != nil {
		return nil, errors.Wrapf(err, "state %s", stateID)
	}
	log.Debug().Str("state", stateID).Str("fork", fork.String()).Msg("downloading state")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state")
	}
	return &cfgtypes.BeaconState{Fork: fork, SSZ: body}, nil
}

// ChildHeader finds the block whose parent is parentRoot, preferring the
// canonical one.
// GET /eth/v1/beacon/headers?parent_root=
func (a *APIFetcher) ChildHeader(ctx context.Context, parentRoot merkle.Root) (*cfgtypes.HeaderData, error) {
	query := url.Values{}
	query.Set("parent_root", parentRoot.String())

	var res cfgtypes.HeadersAPIResponse
	if err := a.getJSON(ctx, "/eth/v1/beacon/headers", query, &res); err != nil {
		return nil, errors.Wrapf(err, "children of %s", parentRoot)
	}
	return firstChild(res.Data), nil
}

func firstChild(headers []cfgtypes.HeaderData) *cfgtypes.HeaderData {
	if len(headers) == 0 {
		return nil
	}
	for i := range headers {
		if headers[i].Canonical {
			return &headers[i]
		}
	}
	return &headers[0]
}

// Genesis asks the node through go-eth2-client and keeps the first answer.
func (a *APIFetcher) Genesis(ctx context.Context) (uint64, error) {
	a.genesisMu.Lock()
	defer a.genesisMu.Unlock()
	if a.genesisTime != 0 {
		return a.genesisTime, nil
	}

	opts := []eth2http.Parameter{
		eth2http.WithAddress(a.BaseURL),
		eth2http.WithHTTPClient(a.Client),
		eth2http.WithLogLevel(zerolog.WarnLevel),
	}
	if a.Client.Timeout > 0 {
		opts = append(opts, eth2http.WithTimeout(a.Client.Timeout))
	}
	client, err := eth2http.New(ctx, opts...)
	if err != nil {
		return 0, errors.Wrap(err, "connect beacon node")
	}
	res, err := client.(*eth2http.Service).Genesis(ctx, &api.GenesisOpts{})
	if err != nil {
		return 0, errors.Wrap(err, "genesis")
	}
	a.genesisTime = uint64(res.Data.GenesisTime.Unix())
	log.Debug().Str("node", a.BaseURL).Uint64("genesis", a.genesisTime).Msg("genesis time fetched")
	return a.genesisTime, nil
}
