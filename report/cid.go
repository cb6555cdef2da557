package report

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

var ErrCIDMismatch = errors.New("report: cid mismatch")

// ComputeCIDs recomputes the CIDs data could have been published under,
// using the version, codec and hash function of c.
func ComputeCIDs(c cid.Cid, data []byte) ([]cid.Cid, error) {
	prefix := c.Prefix()
	if _, ok := mh.Codes[prefix.MhType]; !ok {
		return nil, errors.Errorf("unsupported multihash 0x%x in %s", prefix.MhType, c)
	}
	switch prefix.Codec {
	case cid.Raw:
		sum, err := prefix.Sum(data)
		if err != nil {
			return nil, errors.Wrapf(err, "hash raw block for %s", c)
		}
		return []cid.Cid{sum}, nil

	case cid.DagProtobuf:
		builders := []*fileBuilder{{prefix: prefix, chunkSize: DefaultChunkSize, maxLinks: DefaultMaxLinks}}
		// CIDv1 imports default to raw leaves; a single raw leaf would carry
		// the raw codec, so it only applies to multi-chunk files
		if prefix.Version == 1 && len(data) > DefaultChunkSize {
			builders = append(builders, &fileBuilder{prefix: prefix, rawLeaves: true, chunkSize: DefaultChunkSize, maxLinks: DefaultMaxLinks})
		}
		out := make([]cid.Cid, 0, len(builders))
		for _, b := range builders {
			root, err := b.Build(data)
			if err != nil {
				return nil, errors.Wrapf(err, "rebuild unixfs dag for %s", c)
			}
			out = append(out, root.c)
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported cid codec 0x%x", prefix.Codec)
}

// VerifyCID fails with ErrCIDMismatch unless data hashes to c.
func VerifyCID(c cid.Cid, data []byte) error {
	candidates, err := ComputeCIDs(c, data)
	if err != nil {
		return err
	}
	for _, got := range candidates {
		if got.Equals(c) {
			return nil
		}
	}
	return errors.Wrapf(ErrCIDMismatch, "expected %s, content hashes to %s", c, candidates[0])
}

// ParseCID accepts both CIDv0 (Qm...) and multibase CIDv1 strings.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "invalid cid %q", s)
	}
	return c, nil
}
