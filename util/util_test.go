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

package util

import (
	"strings"
	"testing"
)

func TestJS(t *testing.T) {
	if got := JS(map[string]int{"a": 1}); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	if got := ExpandHome("/absolute"); got != "/absolute" {
		t.Fatalf("got %q", got)
	}
	if got := ExpandHome("relative"); got != "relative" {
		t.Fatalf("got %q", got)
	}
	got := ExpandHome("~/x")
	if strings.HasPrefix(got, "~") {
		t.Fatalf("tilde not expanded: %q", got)
	}
	if !strings.HasSuffix(got, "/x") {
		t.Fatalf("suffix lost: %q", got)
	}
}

func TestNormalize(t *testing.T) {
	in := map[interface{}]interface{}{
		"a": []interface{}{
			map[interface{}]interface{}{"b": 1},
		},
		2: "numeric key",
	}
	out, is := Normalize(in).(map[string]interface{})
	if !is {
		t.Fatalf("got %#v", Normalize(in))
	}
	if out["2"] != "numeric key" {
		t.Fatalf("numeric key: %#v", out)
	}
	inner := out["a"].([]interface{})[0].(map[string]interface{})
	if inner["b"] != 1 {
		t.Fatalf("nested: %#v", inner)
	}

	// JSON-shaped values pass through.
	if got := Normalize("plain"); got != "plain" {
		t.Fatalf("got %#v", got)
	}
}
