package types

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kysee/vault-proofs/merkle"
)

func HexToBytes(hexStr string) ([]byte, error) {
	hexStr = strings.TrimPrefix(strings.TrimSpace(hexStr), "0x")
	return hex.DecodeString(hexStr)
}

// HexToFixed decodes a hex string that must be exactly n bytes long.
func HexToFixed(hexStr string, n int) ([]byte, error) {
	bz, err := HexToBytes(hexStr)
	if err != nil {
		return nil, err
	}
	if len(bz) != n {
		return nil, errors.Errorf("expected %d bytes, got %d", n, len(bz))
	}
	return bz, nil
}

// ParseRoot decodes a 0x-prefixed 32 byte hex string.
func ParseRoot(hexStr string) (merkle.Root, error) {
	var r merkle.Root
	bz, err := HexToFixed(hexStr, 32)
	if err != nil {
		return r, err
	}
	copy(r[:], bz)
	return r, nil
}

type HexBytes []byte

func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

func (hb HexBytes) MarshalJSON() ([]byte, error) {
	s := "0x" + hex.EncodeToString(hb)
	jbz := make([]byte, len(s)+2)
	jbz[0] = '"'
	copy(jbz[1:], s)
	jbz[len(jbz)-1] = '"'
	return jbz, nil
}

// This is the point of Bytes.
func (hb *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.Errorf("invalid hex string: %s", data)
	}

	// escape double quote
	val := data[1 : len(data)-1]
	if isHex(string(val)) {
		// hex string
		str := strings.TrimPrefix(string(val), "0x")
		bz, err := hex.DecodeString(str)
		if err != nil {
			return err
		}
		*hb = bz
	} else {
		// base64
		bz, err := base64.StdEncoding.DecodeString(string(val))
		if err != nil {
			return err
		}
		*hb = bz
	}
	return nil
}

// RootsToHex converts a proof into its JSON friendly form.
func RootsToHex(proof merkle.Proof) []HexBytes {
	out := make([]HexBytes, len(proof))
	for i := range proof {
		out[i] = append(HexBytes{}, proof[i][:]...)
	}
	return out
}

func isHex(s string) bool {
	v := s
	if len(v)%2 != 0 {
		return false
	}
	if strings.HasPrefix(v, "0x") {
		v = v[2:]
	}
	for _, b := range []byte(v) {
		if !(b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F') {
			return false
		}
	}
	return true
}

// Uint64Str accepts both quoted ("12") and bare (12) JSON integers, as beacon
// APIs quote every uint64 while report dumps usually do not.
type Uint64Str uint64

func (s Uint64Str) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(s), 10))), nil
}

func (s *Uint64Str) UnmarshalJSON(b []byte) error {
	var str string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
	} else {
		str = string(b)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid uint64 %s", b)
	}
	*s = Uint64Str(v)
	return nil
}
