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
	"sync"

	"github.com/oomol/oocana/manifest"
)

// RememberStore holds values for remember-flagged inputs across
// activations within one session, keyed by flow path, node id, and
// handle.  Shared by every scheduler of the session.
type RememberStore struct {
	mu     sync.Mutex
	values map[string]interface{}
}

// NewRememberStore makes an empty store.
func NewRememberStore() *RememberStore {
	return &RememberStore{values: map[string]interface{}{}}
}

func rememberKey(flow, nodeID, handle string) string {
	return flow + "\x00" + nodeID + "\x00" + handle
}

// Get returns the remembered value for a handle, if any.
func (r *RememberStore) Get(flow, nodeID, handle string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, have := r.values[rememberKey(flow, nodeID, handle)]
	return v, have
}

// Put stores a remembered value.
func (r *RememberStore) Put(flow, nodeID, handle string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[rememberKey(flow, nodeID, handle)] = value
}

// inputBuffer queues arrived upstream values per handle for one node.
// Arrivals for a single (job, handle) stay in arrival order; each
// activation consumes one token per wired handle.
type inputBuffer struct {
	node *manifest.Node

	// tokens per handle, oldest first.
	tokens map[string][]interface{}

	// flowInputs is the enclosing flow's input bundle, fixed for
	// the flow activation.
	flowInputs map[string]interface{}
}

func newInputBuffer(node *manifest.Node, flowInputs map[string]interface{}) *inputBuffer {
	return &inputBuffer{
		node:       node,
		tokens:     map[string][]interface{}{},
		flowInputs: flowInputs,
	}
}

// push enqueues an arrived value for a handle.
func (b *inputBuffer) push(handle string, value interface{}) {
	b.tokens[handle] = append(b.tokens[handle], value)
}

// handleState answers how one input handle can be satisfied right
// now.
type handleState int

const (
	handleBlocked  handleState = iota // nothing available yet
	handleToken                       // a queued upstream token
	handleLiteral                     // node wiring or handle default
	handleFlow                        // the flow's input bundle
	handleRemember                    // remembered from a prior activation
	handleOptional                    // optional with no live upstream
)

// satisfy reports how the handle would be filled for the next
// activation.  upstreamsDone reports whether every upstream edge's
// source node is terminal.
func (b *inputBuffer) satisfy(handle string, def *manifest.InputHandle, remembered bool, upstreamsDone bool) handleState {
	if 0 < len(b.tokens[handle]) {
		return handleToken
	}
	src := b.node.InputsFrom[handle]
	if src != nil && src.Value != nil {
		return handleLiteral
	}
	if src != nil && 0 < len(src.FromFlow) {
		if _, have := b.flowInputs[src.FromFlow[0].InputHandle]; have {
			return handleFlow
		}
	}
	if def != nil && def.Remember && remembered {
		return handleRemember
	}
	if def != nil && def.HasDefault() {
		return handleLiteral
	}
	hasUpstream := src != nil && 0 < len(src.FromNode)
	// A wired handle with no declaration (a lazy subflow's input)
	// counts as required: the child's own requirements are unknown
	// until materialisation.
	required := (def != nil && def.Required) || (def == nil && hasUpstream)
	if !required && (!hasUpstream || upstreamsDone) {
		return handleOptional
	}
	return handleBlocked
}

// take consumes one token for the handle, if any.
func (b *inputBuffer) take(handle string) (interface{}, bool) {
	queue := b.tokens[handle]
	if len(queue) == 0 {
		return nil, false
	}
	v := queue[0]
	b.tokens[handle] = queue[1:]
	return v, true
}

// hasTokens reports whether any handle has a queued token.
func (b *inputBuffer) hasTokens() bool {
	for _, queue := range b.tokens {
		if 0 < len(queue) {
			return true
		}
	}
	return false
}
