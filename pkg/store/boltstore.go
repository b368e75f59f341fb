package store

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketValues = []byte("values")
	bucketLocks  = []byte("locks")
)

// BoltStore is a file-backed Store for deployments that run the engine out
// of multiple OS processes sharing one KV segment on disk (the direct
// analogue of nginx worker processes sharing ngx.shared.DICT). It follows
// the teacher's bbolt idiom: one bucket per concern, Update for writes,
// View for reads.
//
// bbolt itself only allows one process to hold the file open for writing at
// a time, so BoltStore trades true multi-process concurrency for a simple,
// crash-safe on-disk format; callers that need genuine cross-process
// concurrency should run one engine process as the sole writer and treat
// this as a durable hand-off point, not a high-throughput IPC channel.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a bbolt-backed Store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketValues); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketLocks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get([]byte(key))
		if v == nil {
			return nil
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, value != nil, nil
}

func (s *BoltStore) Set(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Incr(key string, delta int64) (int64, error) {
	var result int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketValues)
		var cur int64
		if v := b.Get([]byte(key)); v != nil && len(v) == 8 {
			cur = int64(binary.BigEndian.Uint64(v))
		}
		cur += delta
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(cur))
		result = cur
		return b.Put([]byte(key), buf)
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return result, nil
}

func (s *BoltStore) TryAcquire(key string, exptime time.Duration) (bool, error) {
	var acquired bool
	now := time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		if v := b.Get([]byte(key)); v != nil && len(v) == 8 {
			expiry := time.Unix(0, int64(binary.BigEndian.Uint64(v)))
			if now.Before(expiry) {
				acquired = false
				return nil
			}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(now.Add(exptime).UnixNano()))
		acquired = true
		return b.Put([]byte(key), buf)
	})
	if err != nil {
		return false, fmt.Errorf("try acquire %s: %w", key, err)
	}
	return acquired, nil
}

func (s *BoltStore) Release(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
