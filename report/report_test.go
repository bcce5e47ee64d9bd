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

package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/oomol/oocana/job"
)

func TestReporterOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	r, err := New("s1", path, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Hammer it from several goroutines; the log must come out
	// with strictly increasing sequence numbers.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				r.JobStarted(job.NewJobID(), "n", "b", nil)
			}
		}()
	}
	wg.Wait()
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var (
		count int
		last  int64
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %d: %v", count, err)
		}
		if e.Seq <= last {
			t.Fatalf("seq went backwards: %d after %d", e.Seq, last)
		}
		last = e.Seq
		count++
	}
	if count != 200 {
		t.Fatalf("want 200 events, got %d", count)
	}
}

func TestReporterEventShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	r, err := New("s1", path, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.JobFinished("j1", "n1", job.Failed, "boom")
	r.SessionFinished("failed")
	r.Close()

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := splitLines(bs)
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}

	var e Event
	if err := json.Unmarshal(lines[0], &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != "job.finished" || e.JobID != "j1" || e.NodeID != "n1" {
		t.Fatalf("bad event: %#v", e)
	}
	// Block-reported errors are preserved verbatim.
	if e.Data["error"] != "boom" {
		t.Fatalf("error lost: %#v", e.Data)
	}
}

func splitLines(bs []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range bs {
		if b == '\n' {
			if start < i {
				lines = append(lines, bs[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
