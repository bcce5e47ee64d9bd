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

// NodeType tags the kind of block a node places.
type NodeType string

const (
	TaskNode    NodeType = "task"
	SubflowNode NodeType = "subflow"
	ServiceNode NodeType = "service"
	SlotNode    NodeType = "slot"
	ValueNode   NodeType = "value"
)

// FlowSource names a flow input handle that feeds a node input.
type FlowSource struct {
	InputHandle string `yaml:"input_handle"`
}

// NodeSource names a node output handle that feeds a node input.
type NodeSource struct {
	NodeID       string `yaml:"node_id"`
	OutputHandle string `yaml:"output_handle"`
}

// InputSource is the resolved wiring for one input handle of a node:
// an optional literal plus any upstream edges.
type InputSource struct {
	Handle   string
	Value    *Value
	FromFlow []FlowSource
	FromNode []NodeSource
}

// HasUpstream reports whether any edge feeds this input.
func (s *InputSource) HasUpstream() bool {
	return 0 < len(s.FromFlow) || 0 < len(s.FromNode)
}

// Node is a placement of a block inside a flow.
type Node struct {
	ID          string
	Type        NodeType
	Description string

	// Block is the resolved block for task, service, and slot
	// nodes.  For subflow nodes the block lives behind FlowRef,
	// which may be lazy; value nodes have no block.
	Block   Block
	FlowRef *FlowReference

	// InputsFrom is keyed by input handle.
	InputsFrom map[string]*InputSource

	Concurrency     int
	TimeoutSeconds  int
	Ignore          bool
	ContinueOnError bool

	// Slots binds slot node-ids in the child subflow to provider
	// blocks supplied by this (subflow) node.
	Slots map[string]Block

	// Values carries the literal handles of a value node.
	Values []*InputHandle
}

// BlockOf returns the node's block, resolving through a flow
// reference when necessary.  Returns nil for a lazy, unresolved
// subflow reference.
func (n *Node) BlockOf() Block {
	if n.FlowRef != nil {
		if n.FlowRef.Resolved != nil {
			return n.FlowRef.Resolved
		}
		return nil
	}
	return n.Block
}

// Connection is one resolved edge of the effective graph.
type Connection struct {
	SourceNode   string
	SourceHandle string
	TargetNode   string
	TargetHandle string
}

// LazyFlow is a deferred subflow reference, produced when the
// resolver detects that a flow is already being expanded.
type LazyFlow struct {
	Name string
	Path string
}

// FlowReference is either a resolved SubflowBlock or a lazy link to
// one, resolved on first execution.
type FlowReference struct {
	Resolved *SubflowBlock
	Lazy     *LazyFlow
}

// IsLazy reports whether the reference still needs a runtime resolve.
func (r *FlowReference) IsLazy() bool {
	return r != nil && r.Resolved == nil && r.Lazy != nil
}
