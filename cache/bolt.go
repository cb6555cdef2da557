package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var derivedBucket = []byte("derived")

// BoltStore persists entries in a single bbolt bucket.
type BoltStore struct {
	db   *bolt.DB
	path string
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain cache lock, cache may be in use by another process")
		}
		return nil, errors.Wrapf(err, "open cache %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(derivedBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create cache bucket")
	}
	log.Debug().Str("path", path).Msg("cache opened")
	return &BoltStore{db: db, path: path}, nil
}

func (s *BoltStore) Get(key Key) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(derivedBucket).Get([]byte(key.String()))
		if v != nil {
			// bolt owns v only for the life of the transaction
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *BoltStore) Set(key Key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(derivedBucket)
		k := []byte(key.String())
		if b.Get(k) != nil {
			return nil
		}
		if err := b.Put(k, value); err != nil {
			return errors.Wrapf(err, "save %s", key)
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path of the database file.
func (s *BoltStore) Path() string {
	return s.path
}
