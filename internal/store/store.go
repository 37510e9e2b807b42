// Package store provides optional bbolt-backed persistence for a
// population: the raw chunk binaries, the raw link blob, and a small
// engine_meta bucket recording the selected cycle policy and a seed. It is
// a thin DB handle opened once, with one bucket per concern and Put/Get
// pairs doing their own transactions.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketChunks  = []byte("chunks_by_id")
	bucketLinks   = []byte("links_blob")
	bucketMeta    = []byte("engine_meta")
	linksBlobKey  = []byte("links")
)

// DB is a handle on one population's on-disk store.
type DB struct {
	path string
	db   *bolt.DB
}

// Open creates (if needed) and opens the bbolt file at
// filepath.Join(dataDir, "population.db"), ensuring every bucket exists.
func Open(dataDir string) (*DB, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("store: data dir required")
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	path := filepath.Join(dataDir, "population.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}
	d := &DB{path: path, db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketLinks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying bbolt file.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path returns the on-disk file backing d.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// PutChunk stores the raw encoded bytes of one chunk, keyed by its
// population-assigned id.
func (d *DB) PutChunk(id uint32, raw []byte) error {
	key := idKey(id)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChunks).Put(key, raw)
	})
}

// GetChunk returns the raw encoded bytes previously stored for id.
func (d *DB) GetChunk(id uint32) ([]byte, bool, error) {
	var out []byte
	key := idKey(id)
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChunks).Get(key)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// AllChunkIDs returns every chunk id currently stored, in ascending order.
func (d *DB) AllChunkIDs() ([]uint32, error) {
	var ids []uint32
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, _ []byte) error {
			ids = append(ids, decodeIDKey(k))
			return nil
		})
	})
	return ids, err
}

// PutLinks stores the raw encoded link blob for the whole population.
func (d *DB) PutLinks(raw []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).Put(linksBlobKey, raw)
	})
}

// GetLinks returns the previously stored link blob, if any.
func (d *DB) GetLinks() ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLinks).Get(linksBlobKey)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// PutMeta stores an arbitrary engine_meta value (e.g. "cycle_policy",
// "seed") under key.
func (d *DB) PutMeta(key string, value []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), value)
	})
}

// GetMeta returns the value previously stored under key.
func (d *DB) GetMeta(key string) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(key))
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func idKey(id uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, id)
	return key
}

func decodeIDKey(k []byte) uint32 {
	return binary.BigEndian.Uint32(k)
}
