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

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintDeterminism(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": []interface{}{"a", "b"}, "z": map[string]interface{}{"k": true}}
	b := map[string]interface{}{"z": map[string]interface{}{"k": true}, "y": []interface{}{"a", "b"}, "x": 1}

	fa, fb := Fingerprint("blk", a), Fingerprint("blk", b)
	if fa != fb {
		t.Fatalf("map order changed the fingerprint: %s vs %s", fa, fb)
	}
	if len(fa) != 64 {
		t.Fatalf("want a sha256 hex digest, got %q", fa)
	}

	if Fingerprint("blk", a) == Fingerprint("other", a) {
		t.Fatal("block identity must matter")
	}
	c := map[string]interface{}{"x": 2}
	if Fingerprint("blk", a) == Fingerprint("blk", c) {
		t.Fatal("inputs must matter")
	}
}

func TestFingerprintYAMLShapedInputs(t *testing.T) {
	// Values decoded from YAML arrive with interface{} keys; the
	// fingerprint must treat them like their JSON twins.
	fromYAML := map[string]interface{}{
		"cfg": map[interface{}]interface{}{"k": "v"},
	}
	fromJSON := map[string]interface{}{
		"cfg": map[string]interface{}{"k": "v"},
	}
	if Fingerprint("blk", fromYAML) != Fingerprint("blk", fromJSON) {
		t.Fatal("YAML-shaped maps should fingerprint like JSON maps")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	inputs := map[string]interface{}{"command": "echo hi"}
	fp := Fingerprint("blk", inputs)

	if _, hit := store.Get(fp); hit {
		t.Fatal("empty store should miss")
	}

	outputs := map[string]interface{}{"stdout": "hi\n", "stderr": ""}
	if err := store.Put(fp, "blk", outputs); err != nil {
		t.Fatal(err)
	}

	got, hit := store.Get(fp)
	if !hit {
		t.Fatal("want a hit after put")
	}
	if got["stdout"] != "hi\n" || got["stderr"] != "" {
		t.Fatalf("bundle mangled: %#v", got)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	fp := Fingerprint("blk", map[string]interface{}{"n": 1})
	if err := store.Put(fp, "blk", map[string]interface{}{"out": "v"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, hit := store.Get(fp); !hit {
		t.Fatal("cache should carry across sessions")
	}
}

func TestSnapshotMeta(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	fp := Fingerprint("blk", map[string]interface{}{"n": 1})
	if err := store.Put(fp, "blk", map[string]interface{}{"out": "v"}); err != nil {
		t.Fatal(err)
	}

	metaPath := filepath.Join(dir, "cache_meta.json")
	if err := store.SnapshotMeta(metaPath); err != nil {
		t.Fatal(err)
	}
	bs, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	var meta map[string]string
	if err := json.Unmarshal(bs, &meta); err != nil {
		t.Fatal(err)
	}
	if meta[fp] == "" {
		t.Fatalf("fingerprint missing from snapshot: %#v", meta)
	}
}
