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

package scheduler

import (
	"testing"

	"github.com/oomol/oocana/manifest"
)

func TestInputBufferTokens(t *testing.T) {
	node := &manifest.Node{
		ID: "n",
		InputsFrom: map[string]*manifest.InputSource{
			"x": {FromNode: []manifest.NodeSource{{NodeID: "up", OutputHandle: "o"}}},
		},
	}
	buf := newInputBuffer(node, nil)

	if buf.hasTokens() {
		t.Fatal("fresh buffer should be empty")
	}
	buf.push("x", 1)
	buf.push("x", 2)

	// Arrival order is preserved.
	if v, ok := buf.take("x"); !ok || v != 1 {
		t.Fatalf("first take: %v %v", v, ok)
	}
	if v, ok := buf.take("x"); !ok || v != 2 {
		t.Fatalf("second take: %v %v", v, ok)
	}
	if _, ok := buf.take("x"); ok {
		t.Fatal("drained buffer should miss")
	}
}

func TestSatisfy(t *testing.T) {
	required := &manifest.InputHandle{Handle: "x", Required: true}
	optional := &manifest.InputHandle{Handle: "x"}
	remember := &manifest.InputHandle{Handle: "x", Required: true, Remember: true}
	defaulted := &manifest.InputHandle{Handle: "x", Value: manifest.NewValue("d")}

	upstream := map[string]*manifest.InputSource{
		"x": {FromNode: []manifest.NodeSource{{NodeID: "up", OutputHandle: "o"}}},
	}
	flowWired := map[string]*manifest.InputSource{
		"x": {FromFlow: []manifest.FlowSource{{InputHandle: "fx"}}},
	}

	tests := []struct {
		description   string
		def           *manifest.InputHandle
		inputsFrom    map[string]*manifest.InputSource
		pushToken     bool
		remembered    bool
		upstreamsDone bool
		flowInputs    map[string]interface{}
		want          handleState
	}{
		{
			description: "token wins",
			def:         required, inputsFrom: upstream, pushToken: true,
			want: handleToken,
		},
		{
			description: "required with live upstream blocks",
			def:         required, inputsFrom: upstream,
			want: handleBlocked,
		},
		{
			description: "required with dead upstream still blocks",
			def:         required, inputsFrom: upstream, upstreamsDone: true,
			want: handleBlocked,
		},
		{
			description: "optional with dead upstream passes",
			def:         optional, inputsFrom: upstream, upstreamsDone: true,
			want: handleOptional,
		},
		{
			description: "optional with live upstream waits",
			def:         optional, inputsFrom: upstream,
			want: handleBlocked,
		},
		{
			description: "remember satisfied from store",
			def:         remember, inputsFrom: upstream, remembered: true, upstreamsDone: true,
			want: handleRemember,
		},
		{
			description: "handle default",
			def:         defaulted,
			want:        handleLiteral,
		},
		{
			description: "flow input",
			def:         required, inputsFrom: flowWired,
			flowInputs: map[string]interface{}{"fx": 1},
			want:       handleFlow,
		},
		{
			description: "undeclared wired handle counts as required",
			def:         nil, inputsFrom: upstream, upstreamsDone: true,
			want: handleBlocked,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			node := &manifest.Node{ID: "n", InputsFrom: tc.inputsFrom}
			if node.InputsFrom == nil {
				node.InputsFrom = map[string]*manifest.InputSource{}
			}
			buf := newInputBuffer(node, tc.flowInputs)
			if tc.pushToken {
				buf.push("x", "v")
			}
			got := buf.satisfy("x", tc.def, tc.remembered, tc.upstreamsDone)
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRememberStore(t *testing.T) {
	r := NewRememberStore()
	if _, have := r.Get("f", "n", "h"); have {
		t.Fatal("empty store should miss")
	}
	r.Put("f", "n", "h", 42)
	if v, have := r.Get("f", "n", "h"); !have || v != 42 {
		t.Fatalf("got %v %v", v, have)
	}
	// Keys are scoped: a different node misses.
	if _, have := r.Get("f", "other", "h"); have {
		t.Fatal("keys must be scoped by node")
	}
}
