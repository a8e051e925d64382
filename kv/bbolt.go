package kv

import (
	"errors"
	"time"

	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// Db wraps a bolt file.  Bucket names and keys are strings, values
// are bytes, and all access goes through View or Update.
type Db struct {
	bdb *bolt.DB
}

// Open opens or creates the bolt file at path.  bolt holds an
// exclusive file lock while the Db is open, so a second opener waits
// up to timeout and then fails.
func Open(path string, timeout time.Duration) (db *Db, err error) {
	defer Return(&err)
	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	Ck(err, "opening %s", path)
	db = &Db{bdb: bdb}
	return
}

// Close releases the file.
func (db *Db) Close() error {
	return db.bdb.Close()
}

// Update runs fn in a read-write transaction.  The transaction
// commits if fn returns nil.
func (db *Db) Update(fn func(tx *Tx) error) error {
	return db.bdb.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// View runs fn in a read-only transaction.
func (db *Db) View(fn func(tx *Tx) error) error {
	return db.bdb.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Tx is the handle passed to View and Update callbacks.
type Tx struct {
	btx *bolt.Tx
}

func (tx *Tx) bucket(name string) *bolt.Bucket {
	return tx.btx.Bucket([]byte(name))
}

// Put stores value under key, creating the bucket on first use.
func (tx *Tx) Put(bucket, key string, value []byte) (err error) {
	defer Return(&err)
	b, err := tx.btx.CreateBucketIfNotExists([]byte(bucket))
	Ck(err)
	err = b.Put([]byte(key), value)
	Ck(err)
	return
}

// Get returns a copy of the value under key, or nil.
func (tx *Tx) Get(bucket, key string) []byte {
	b := tx.bucket(bucket)
	if b == nil {
		return nil
	}
	v := b.Get([]byte(key))
	if v == nil {
		return nil
	}
	return append([]byte(nil), v...)
}

// Delete removes key.  Missing keys and buckets are ignored.
func (tx *Tx) Delete(bucket, key string) error {
	b := tx.bucket(bucket)
	if b == nil {
		return nil
	}
	return b.Delete([]byte(key))
}

// Keys lists the keys of bucket in byte order.
func (tx *Tx) Keys(bucket string) (keys []string, err error) {
	b := tx.bucket(bucket)
	if b == nil {
		return
	}
	err = b.ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	return
}

// Count returns the number of keys in bucket.
func (tx *Tx) Count(bucket string) int {
	b := tx.bucket(bucket)
	if b == nil {
		return 0
	}
	return b.Stats().KeyN
}

// DropBucket removes bucket and its contents.
func (tx *Tx) DropBucket(bucket string) error {
	err := tx.btx.DeleteBucket([]byte(bucket))
	if errors.Is(err, bolt.ErrBucketNotFound) {
		return nil
	}
	return err
}
