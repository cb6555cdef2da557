package provers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kysee/vault-proofs/merkle"
	cfgtypes "github.com/kysee/vault-proofs/provers/types"
	"github.com/kysee/vault-proofs/types"
)

func hexRoot(b byte) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

func headerJSON(slot uint64, parent, state string, canonical bool) string {
	return fmt.Sprintf(`{
		"root": %q,
		"canonical": %t,
		"header": {
			"message": {
				"slot": "%d",
				"proposer_index": "11",
				"parent_root": %q,
				"state_root": %q,
				"body_root": %q
			},
			"signature": "0x%s"
		}
	}`, hexRoot(0x01), canonical, slot, parent, state, hexRoot(0x03), strings.Repeat("00", 96))
}

func TestAPIFetcher(t *testing.T) {
	state := []byte{0xde, 0xad, 0xbe, 0xef}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/eth/v1/beacon/headers/head":
			fmt.Fprintf(w, `{"execution_optimistic":false,"finalized":true,"data":%s}`, headerJSON(100, hexRoot(0xaa), hexRoot(0x02), true))
		case r.URL.Path == "/eth/v1/beacon/headers":
			if r.URL.Query().Get("parent_root") != hexRoot(0x01) {
				fmt.Fprint(w, `{"data":[]}`)
				return
			}
			fmt.Fprintf(w, `{"data":[%s,%s]}`, headerJSON(102, hexRoot(0x01), hexRoot(0x05), false), headerJSON(101, hexRoot(0x01), hexRoot(0x04), true))
		case r.URL.Path == "/eth/v2/debug/beacon/states/"+hexRoot(0x02):
			if r.Header.Get("Accept") != "application/octet-stream" {
				http.Error(w, "want ssz", http.StatusNotAcceptable)
				return
			}
			w.Header().Set("Eth-Consensus-Version", "DENEB")
			_, _ = w.Write(state)
		case r.URL.Path == "/eth/v2/debug/beacon/states/fulu":
			w.Header().Set("Eth-Consensus-Version", "fulu")
			_, _ = w.Write(state)
		default:
			http.Error(w, `{"code":404,"message":"not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	f := NewAPIFetcher(srv.URL+"/", 5*time.Second)

	hd, err := f.BeaconHeader(ctx, "head")
	require.NoError(t, err)
	require.EqualValues(t, 100, hd.Header.Message.Slot)
	require.EqualValues(t, 11, hd.Header.Message.ProposerIndex)
	require.Equal(t, hexRoot(0x02), merkle.Root(hd.Header.Message.StateRoot).String())

	st, err := f.BeaconState(ctx, hexRoot(0x02))
	require.NoError(t, err)
	require.Equal(t, types.ForkDeneb, st.Fork)
	require.Equal(t, state, st.SSZ)

	_, err = f.BeaconState(ctx, "fulu")
	require.ErrorIs(t, err, types.ErrUnsupportedFork)

	parent, err := types.ParseRoot(hexRoot(0x01))
	require.NoError(t, err)
	child, err := f.ChildHeader(ctx, parent)
	require.NoError(t, err)
	require.NotNil(t, child)
	require.EqualValues(t, 101, child.Header.Message.Slot)

	none, err := f.ChildHeader(ctx, merkle.Root{0x09})
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = f.BeaconHeader(ctx, "12345")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestFileFetcher(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFileFetcher(dir)

	_, err := f.BeaconHeader(ctx, "head")
	require.Error(t, err)

	writeFile(t, dir, headerFile, []byte(fmt.Sprintf(`{"data":%s}`, headerJSON(64, hexRoot(0xaa), hexRoot(0x02), true))))
	writeFile(t, dir, stateFile, []byte{1, 2, 3})
	writeFile(t, dir, forkFile, []byte("electra\n"))
	writeFile(t, dir, genesisFile, []byte(`{"data":{"genesis_time":"1742213400","genesis_fork_version":"0x10000910"}}`))

	hd, err := f.BeaconHeader(ctx, "ignored")
	require.NoError(t, err)
	require.EqualValues(t, 64, hd.Header.Message.Slot)

	st, err := f.BeaconState(ctx, "ignored")
	require.NoError(t, err)
	require.Equal(t, types.ForkElectra, st.Fork)
	require.Equal(t, []byte{1, 2, 3}, st.SSZ)

	genesis, err := f.Genesis(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1742213400, genesis)

	parent, err := types.ParseRoot(hexRoot(0x01))
	require.NoError(t, err)
	child, err := f.ChildHeader(ctx, parent)
	require.NoError(t, err)
	require.Nil(t, child, "no child.json yet")

	writeFile(t, dir, childFile, []byte(fmt.Sprintf(`{"data":[%s]}`, headerJSON(65, hexRoot(0x01), hexRoot(0x04), true))))
	child, err = f.ChildHeader(ctx, parent)
	require.NoError(t, err)
	require.EqualValues(t, 65, child.Header.Message.Slot)

	child, err = f.ChildHeader(ctx, merkle.Root{0x07})
	require.NoError(t, err)
	require.Nil(t, child)

	writeFile(t, dir, forkFile, []byte("bellatrix"))
	_, err = f.BeaconState(ctx, "ignored")
	require.ErrorIs(t, err, types.ErrUnsupportedFork)
}

func TestHeaderDataJSON(t *testing.T) {
	var hd cfgtypes.HeaderData
	require.NoError(t, json.Unmarshal([]byte(headerJSON(5, hexRoot(0xaa), hexRoot(0xbb), true)), &hd))
	require.True(t, hd.Canonical)
	require.Equal(t, hexRoot(0x01), merkle.Root(hd.Root).String())
	require.Equal(t, hexRoot(0xaa), merkle.Root(hd.Header.Message.ParentRoot).String())
}
