/* Copyright 2025 OOMOL, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache maps (block identifier, canonical input fingerprint)
// to output bundles.  Bundles live as cache/<fingerprint>.json files;
// an index in bbolt records what exists.  Only the root flow consults
// this cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oomol/oocana/util"

	bolt "go.etcd.io/bbolt"
)

var indexBucket = []byte("cache")

// entry is the index record for one fingerprint.
type entry struct {
	Block   string `json:"block"`
	Path    string `json:"path"`
	Created int64  `json:"created"`
}

// Fingerprint computes the canonical hash of a block identity plus
// its input bundle.  Map keys are sorted by the JSON encoder, so the
// fingerprint is byte-stable across runs for equal bundles.
func Fingerprint(blockID string, inputs map[string]interface{}) string {
	canon := map[string]interface{}{
		"block":  blockID,
		"inputs": util.Normalize(inputs),
	}
	js, err := json.Marshal(canon)
	if err != nil {
		// Unencodable inputs never match anything.
		js = []byte(blockID + err.Error())
	}
	sum := sha256.Sum256(js)
	return hex.EncodeToString(sum[:])
}

// Store is the on-disk cache under <dir>: an index.db plus one
// <fingerprint>.json per cached activation.
type Store struct {
	Dir string

	db *bolt.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates the cache directory if needed and opens the index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	opts := &bolt.Options{Timeout: time.Second}
	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0644, opts)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		Dir:   dir,
		db:    db,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// lock returns the per-fingerprint write lock.
func (s *Store) lock(fp string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, have := s.locks[fp]
	if !have {
		mu = &sync.Mutex{}
		s.locks[fp] = mu
	}
	return mu
}

// Get returns the cached output bundle for a fingerprint, if any.
// Bundles written with a different set of handles than the block now
// declares are still returned; additional handles are tolerated.
func (s *Store) Get(fp string) (map[string]interface{}, bool) {
	var e entry
	found := false
	s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(indexBucket).Get([]byte(fp))
		if bs == nil {
			return nil
		}
		if err := json.Unmarshal(bs, &e); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	bs, err := ioutil.ReadFile(e.Path)
	if err != nil {
		return nil, false
	}
	var outputs map[string]interface{}
	if err := json.Unmarshal(bs, &outputs); err != nil {
		return nil, false
	}
	return outputs, true
}

// Put writes the output bundle for a fingerprint.  Writers to the
// same fingerprint are serialised; last write wins.
func (s *Store) Put(fp, blockID string, outputs map[string]interface{}) error {
	mu := s.lock(fp)
	mu.Lock()
	defer mu.Unlock()

	js, err := json.Marshal(util.Normalize(outputs))
	if err != nil {
		return err
	}
	path := filepath.Join(s.Dir, fp+".json")
	if err := ioutil.WriteFile(path, js, 0644); err != nil {
		return err
	}

	e := entry{
		Block:   blockID,
		Path:    path,
		Created: time.Now().UnixMilli(),
	}
	bs, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(fp), bs)
	})
}

// SnapshotMeta writes a JSON snapshot of the index, fingerprint to
// bundle path, at the given location.  For diagnosis only; the
// canonical cache is the index itself.
func (s *Store) SnapshotMeta(path string) error {
	meta := map[string]string{}
	s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(indexBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			meta[string(k)] = e.Path
		}
		return nil
	})
	js, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, js, 0644)
}

// Close closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}
