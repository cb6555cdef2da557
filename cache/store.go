package cache

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

// Key addresses a derived scalar: what it is about (a vault, a block root)
// and the range it covers (a block, a pair of ref slots).
type Key struct {
	Subject string
	Range   string
}

func (k Key) String() string {
	return k.Subject + "|" + k.Range
}

// Store memoizes derived values. It is append-only: Set on an existing key
// keeps the first value.
type Store interface {
	Get(key Key) ([]byte, bool, error)
	Set(key Key, value []byte) error
	Close() error
}

func GetUint64(s Store, key Key) (uint64, bool, error) {
	bz, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(bz) != 8 {
		return 0, false, errors.Errorf("cache entry %s is %d bytes, want 8", key, len(bz))
	}
	return binary.BigEndian.Uint64(bz), true, nil
}

func SetUint64(s Store, key Key, v uint64) error {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return s.Set(key, bz)
}

// GetBig reads a signed integer stored as decimal text.
func GetBig(s Store, key Key) (*big.Int, bool, error) {
	bz, ok, err := s.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, ok := new(big.Int).SetString(string(bz), 10)
	if !ok {
		return nil, false, errors.Errorf("cache entry %s is not an integer", key)
	}
	return v, true, nil
}

func SetBig(s Store, key Key, v *big.Int) error {
	if v == nil {
		return errors.Errorf("nil value for %s", key)
	}
	return s.Set(key, []byte(v.String()))
}
