package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/kv"
	"github.com/stevegt/semver"
)

const (
	docBucket  = "documents"
	metaBucket = "meta"
	versionKey = "version"
)

// DocCache remembers extracted document text across runs, keyed by
// kind and a hash of the uploaded bytes.  Only file kinds are cached;
// a URL or video id says nothing about whether the content changed.
// It never stores conversation history.
type DocCache struct {
	db *kv.Db
}

// OpenDocCache opens or creates the cache at path.  A cache written
// by a newer schema is refused; an older one is emptied.
func OpenDocCache(path string) (cache *DocCache, err error) {
	defer Return(&err)
	err = os.MkdirAll(filepath.Dir(path), 0700)
	Ck(err)
	db, err := kv.Open(path, 10*time.Second)
	Ck(err)
	cache = &DocCache{db: db}
	err = cache.migrate()
	if err != nil {
		db.Close()
		cache = nil
		return
	}
	return
}

// migrate brings the on-disk schema to CacheVersion.
func (c *DocCache) migrate() (err error) {
	defer Return(&err)
	err = c.db.Update(func(tx *kv.Tx) (err error) {
		defer Return(&err)
		was := string(tx.Get(metaBucket, versionKey))
		if was == "" {
			err = tx.Put(metaBucket, versionKey, []byte(CacheVersion))
			Ck(err)
			return
		}
		dbver, err := semver.Parse([]byte(was))
		Ck(err)
		codever, err := semver.Parse([]byte(CacheVersion))
		Ck(err)
		cmp := semver.Cmp(dbver, codever)
		if cmp > 0 {
			err = fmt.Errorf("document cache is version %s, but you're running version %s -- upgrade oracle", was, CacheVersion)
			return
		}
		if cmp < 0 {
			Debug("document cache %s -> %s: dropping cached documents", was, CacheVersion)
			err = tx.DropBucket(docBucket)
			Ck(err)
			err = tx.Put(metaBucket, versionKey, []byte(CacheVersion))
			Ck(err)
		}
		return
	})
	Ck(err)
	return
}

// Close closes the cache.
func (c *DocCache) Close() error {
	return c.db.Close()
}

// cacheKey hashes the kind and the descriptor content it depends on.
func cacheKey(kind DocumentKind, desc *SourceDescriptor) string {
	h := sha256.New()
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	h.Write(desc.payload(kind))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns cached text, if any.
func (c *DocCache) Get(kind DocumentKind, desc *SourceDescriptor) (text string, ok bool) {
	if !kind.isFile() {
		return
	}
	err := c.db.View(func(tx *kv.Tx) error {
		v := tx.Get(docBucket, cacheKey(kind, desc))
		if v != nil {
			text, ok = string(v), true
		}
		return nil
	})
	if err != nil {
		Debug("document cache read: %v", err)
		return "", false
	}
	return
}

// Put stores text.  Sites, videos, empty text and challenge pages are
// refused so a reload fetches the current document.
func (c *DocCache) Put(kind DocumentKind, desc *SourceDescriptor, text string) (err error) {
	if !kind.isFile() {
		return fmt.Errorf("%v documents are not cached", kind)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty document")
	}
	if IsChallengePage(text) {
		return fmt.Errorf("document is a challenge page")
	}
	return c.db.Update(func(tx *kv.Tx) error {
		return tx.Put(docBucket, cacheKey(kind, desc), []byte(text))
	})
}

// Len returns the number of cached documents.
func (c *DocCache) Len() (n int, err error) {
	err = c.db.View(func(tx *kv.Tx) error {
		n = tx.Count(docBucket)
		return nil
	})
	return
}
