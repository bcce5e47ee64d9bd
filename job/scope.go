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

package job

// ScopeKind distinguishes the two levels a slot lookup can land on.
type ScopeKind string

const (
	// PackageScope is the top-most flow's package.
	PackageScope ScopeKind = "package"

	// SubflowScope is an immediate subflow instance.
	SubflowScope ScopeKind = "subflow"
)

// ScopeFrame is one binding context for slot resolution.  Providers
// maps a slot node-id in the child flow to the concrete provider
// block bound at this level.
type ScopeFrame struct {
	Kind      ScopeKind
	Flow      string
	NodeID    string
	Providers map[string]interface{}
}

// Scope is the chain of enclosing subflow instances, innermost last.
// Frames are never mutated after a Push; children share the prefix.
type Scope []ScopeFrame

// Push returns a new Scope with the given frame appended.
func (s Scope) Push(frame ScopeFrame) Scope {
	next := make(Scope, 0, len(s)+1)
	next = append(next, s...)
	return append(next, frame)
}

// Lookup walks from the innermost frame outward and returns the
// provider bound for the given slot node-id at the nearest ancestor
// that supplies it.
func (s Scope) Lookup(slotNodeID string) (interface{}, bool) {
	for i := len(s) - 1; 0 <= i; i-- {
		if p, have := s[i].Providers[slotNodeID]; have {
			return p, true
		}
	}
	return nil, false
}
