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

package manifest

// SubflowBlock is a flow used as a block: a node set, the resolved
// connections among them, and the mappings between the flow's own
// handles and its nodes.
type SubflowBlock struct {
	// Identifier is the canonical path of the flow manifest, which
	// also keys the resolver's arena.
	Identifier string

	// Path is the manifest file's location on disk.
	Path string

	// Description is optional prose from the manifest, Markdown by
	// convention.
	Description string

	Inputs  InputHandles
	Outputs OutputHandles

	// Nodes in declaration order; NodesByID indexes them.
	Nodes     []*Node
	NodesByID map[string]*Node

	// Connections is the effective edge set after ignore-node
	// removal.
	Connections []Connection

	// OutputsFrom maps a flow output handle to the node outputs
	// that produce it.
	OutputsFrom map[string][]NodeSource
}

func (b *SubflowBlock) BlockID() string           { return b.Identifier }
func (b *SubflowBlock) InputsDef() InputHandles   { return b.Inputs }
func (b *SubflowBlock) OutputsDef() OutputHandles { return b.Outputs }

// Node returns the node with the given id, or nil.
func (b *SubflowBlock) Node(id string) *Node {
	return b.NodesByID[id]
}

// Downstream returns the connections leaving the given node output.
func (b *SubflowBlock) Downstream(nodeID, handle string) []Connection {
	var out []Connection
	for _, c := range b.Connections {
		if c.SourceNode == nodeID && c.SourceHandle == handle {
			out = append(out, c)
		}
	}
	return out
}
