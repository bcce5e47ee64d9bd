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

// Package resolver turns .oo.yaml manifests into resolved
// manifest.SubflowBlock graphs.
//
// Flows are expanded depth-first.  The resolver keeps a call stack of
// flow paths being actively expanded; asking for a flow already on
// the stack yields a lazy reference instead of recursing, which is
// resolved again at runtime on first execution.
package resolver

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oomol/oocana/manifest"
	"github.com/oomol/oocana/util"

	"gopkg.in/yaml.v2"
)

// Diagnostic is a warning or error gathered during resolution.
type Diagnostic struct {
	Level   string `json:"level"` // "warning" or "error"
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Resolver resolves flows into an arena of SubflowBlocks keyed by
// canonical manifest path.
type Resolver struct {
	SearchPaths     []string
	ExcludePackages []string

	// Diagnostics accumulates warnings (lazy nodes, odd manifests).
	Diagnostics []Diagnostic

	arena    map[string]*manifest.SubflowBlock
	stack    []string
	packages map[string]bool
}

// New makes a Resolver.
func New(searchPaths, excludePackages []string) *Resolver {
	return &Resolver{
		SearchPaths:     searchPaths,
		ExcludePackages: excludePackages,
		arena:           map[string]*manifest.SubflowBlock{},
		packages:        map[string]bool{},
	}
}

// Packages returns the sorted set of package names discovered while
// resolving.
func (r *Resolver) Packages() []string {
	pkgs := make([]string, 0, len(r.packages))
	for pkg := range r.packages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

func (r *Resolver) warnf(path, format string, args ...interface{}) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Level:   "warning",
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// ResolveRoot resolves the root flow given a flow directory or a
// manifest file path.
func (r *Resolver) ResolveRoot(pathOrDir string) (*manifest.SubflowBlock, error) {
	path := pathOrDir
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		found := ""
		for _, base := range []string{"flow.oo.yaml", "subflow.oo.yaml"} {
			candidate := filepath.Join(path, base)
			if _, err := os.Stat(candidate); err == nil {
				found = candidate
				break
			}
		}
		if found == "" {
			return nil, &manifest.NotFound{Ref: pathOrDir}
		}
		path = found
	} else if err != nil {
		return nil, &manifest.NotFound{Ref: pathOrDir}
	}
	return r.ResolveFlow(path)
}

// ResolveFlow resolves the flow at the given manifest path.  Asking
// for a flow that is currently being expanded is an internal error
// here; node resolution handles that case and produces lazy
// references.
func (r *Resolver) ResolveFlow(path string) (*manifest.SubflowBlock, error) {
	flow, lazy, err := r.resolveFlow(path)
	if err != nil {
		return nil, err
	}
	if lazy {
		return nil, &manifest.Invalid{Path: path, Detail: "flow is its own ancestor"}
	}
	return flow, nil
}

// ResolveLazy materialises a lazy flow reference at runtime and
// caches the result on the reference.  The parent node's wiring is
// not checked against the child's inputs_def.
func (r *Resolver) ResolveLazy(ref *manifest.FlowReference) (*manifest.SubflowBlock, error) {
	if ref.Resolved != nil {
		return ref.Resolved, nil
	}
	if ref.Lazy == nil {
		return nil, &manifest.BadReference{Ref: "", Detail: "empty flow reference"}
	}
	flow, err := r.ResolveFlow(ref.Lazy.Path)
	if err != nil {
		return nil, err
	}
	ref.Resolved = flow
	return flow, nil
}

func (r *Resolver) onStack(path string) bool {
	for _, p := range r.stack {
		if p == path {
			return true
		}
	}
	return false
}

// resolveFlow is ResolveFlow plus cycle detection: the lazy return is
// true when path is already being expanded.
func (r *Resolver) resolveFlow(path string) (*manifest.SubflowBlock, bool, error) {
	path = canonical(path)
	if flow, have := r.arena[path]; have {
		return flow, false, nil
	}
	if r.onStack(path) {
		return nil, true, nil
	}

	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, false, &manifest.NotFound{Ref: path}
	}
	var raw rawFlow
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, false, &manifest.Invalid{Path: path, Detail: err.Error()}
	}

	r.stack = append(r.stack, path)
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
	}()

	finder := NewFinder(path, r.SearchPaths, r.ExcludePackages)

	flow := &manifest.SubflowBlock{
		Identifier:  path,
		Path:        path,
		Description: raw.Description,
		Inputs:      manifest.ToInputHandles(raw.InputsDef),
		Outputs:     manifest.ToOutputHandles(raw.OutputsDef),
		NodesByID:   map[string]*manifest.Node{},
	}

	for _, rn := range raw.Nodes {
		node, err := r.resolveNode(flow, finder, rn)
		if err != nil {
			return nil, false, err
		}
		if _, dup := flow.NodesByID[node.ID]; dup {
			return nil, false, &manifest.Invalid{Path: path, Detail: "duplicate node_id " + node.ID}
		}
		flow.Nodes = append(flow.Nodes, node)
		flow.NodesByID[node.ID] = node
	}

	if err := r.wireOutputs(flow, raw.OutputsFrom); err != nil {
		return nil, false, err
	}
	if err := r.validate(flow); err != nil {
		return nil, false, err
	}
	buildConnections(flow)
	if err := checkAcyclic(flow); err != nil {
		return nil, false, err
	}

	r.arena[path] = flow
	util.Logf("Resolver.resolveFlow %s (%d nodes)", path, len(flow.Nodes))
	return flow, false, nil
}

func (r *Resolver) resolveNode(flow *manifest.SubflowBlock, finder *Finder, rn *rawNode) (*manifest.Node, error) {
	kind, err := rn.kind()
	if err != nil {
		return nil, &manifest.Invalid{Path: flow.Path, Detail: err.Error()}
	}

	node := &manifest.Node{
		ID:              rn.NodeID,
		Type:            kind,
		Description:     rn.Description,
		Concurrency:     rn.Concurrency,
		TimeoutSeconds:  rn.Timeout,
		Ignore:          rn.Ignore,
		ContinueOnError: rn.ContinueOnError,
	}
	if node.Concurrency <= 0 {
		node.Concurrency = 1
	}
	node.InputsFrom = map[string]*manifest.InputSource{}
	for _, in := range rn.InputsFrom {
		node.InputsFrom[in.Handle] = &manifest.InputSource{
			Handle:   in.Handle,
			Value:    in.Value,
			FromFlow: in.FromFlow,
			FromNode: in.FromNode,
		}
	}

	switch kind {
	case manifest.TaskNode:
		block, err := r.resolveTaskRef(flow, finder, rn.NodeID, rn.Task)
		if err != nil {
			return nil, err
		}
		node.Block = block

	case manifest.ServiceNode:
		block, err := r.resolveServiceRef(finder, rn.Service)
		if err != nil {
			return nil, err
		}
		node.Block = block

	case manifest.SlotNode:
		node.Block = &manifest.SlotBlock{
			Identifier: flow.Path + "#" + rn.NodeID,
			Inputs:     manifest.ToInputHandles(rn.Slot.InputsDef),
			Outputs:    manifest.ToOutputHandles(rn.Slot.OutputsDef),
		}

	case manifest.ValueNode:
		node.Values = rn.Values

	case manifest.SubflowNode:
		childPath, err := finder.FindFlow(rn.Subflow)
		if err != nil {
			return nil, err
		}
		r.recordPackage(rn.Subflow)
		child, lazy, err := r.resolveFlow(childPath)
		if err != nil {
			return nil, err
		}
		if lazy {
			node.FlowRef = &manifest.FlowReference{
				Lazy: &manifest.LazyFlow{Name: rn.Subflow, Path: childPath},
			}
			r.warnf(flow.Path, "node %q refers to flow %q already being expanded; resolving lazily at runtime", rn.NodeID, rn.Subflow)
		} else {
			node.FlowRef = &manifest.FlowReference{Resolved: child}
		}
		if 0 < len(rn.Slots) {
			node.Slots = map[string]manifest.Block{}
			for _, binding := range rn.Slots {
				provider, err := r.resolveTaskRef(flow, finder, rn.NodeID+"/"+binding.SlotNodeID, binding.Provider)
				if err != nil {
					return nil, err
				}
				node.Slots[binding.SlotNodeID] = provider
			}
		}
	}

	return node, nil
}

func (r *Resolver) resolveTaskRef(flow *manifest.SubflowBlock, finder *Finder, nodeID string, ref *rawBlockRef) (manifest.Block, error) {
	if ref == nil {
		return nil, &manifest.Invalid{Path: flow.Path, Detail: "node " + nodeID + " has no block"}
	}
	if ref.Inline != nil {
		return &manifest.TaskBlock{
			Identifier:  flow.Path + "#" + nodeID,
			Executor:    ref.Inline.Executor,
			Inputs:      manifest.ToInputHandles(ref.Inline.InputsDef),
			Outputs:     manifest.ToOutputHandles(ref.Inline.OutputsDef),
			PackagePath: filepath.Dir(flow.Path),
		}, nil
	}
	if classifyRef(ref.Ref) == svcRef {
		return r.resolveServiceRef(finder, ref.Ref)
	}
	path, err := finder.FindBlock(ref.Ref)
	if err != nil {
		return nil, err
	}
	r.recordPackage(ref.Ref)
	return r.readTaskBlock(path)
}

func (r *Resolver) readTaskBlock(path string) (*manifest.TaskBlock, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &manifest.NotFound{Ref: path}
	}
	var raw rawTaskBlock
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, &manifest.Invalid{Path: path, Detail: err.Error()}
	}
	if raw.Type != "" && raw.Type != "task_block" {
		return nil, &manifest.Invalid{Path: path, Detail: "unexpected type " + raw.Type}
	}
	if raw.Executor == nil || raw.Executor.Name == "" {
		return nil, &manifest.Invalid{Path: path, Detail: "task block has no executor"}
	}
	return &manifest.TaskBlock{
		Identifier:  path,
		Executor:    raw.Executor,
		Inputs:      manifest.ToInputHandles(raw.InputsDef),
		Outputs:     manifest.ToOutputHandles(raw.OutputsDef),
		PackagePath: filepath.Dir(filepath.Dir(path)),
	}, nil
}

func (r *Resolver) resolveServiceRef(finder *Finder, ref string) (*manifest.TaskBlock, error) {
	path, method, err := finder.FindService(ref)
	if err != nil {
		return nil, err
	}
	r.recordPackage(ref)
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &manifest.NotFound{Ref: path}
	}
	var raw rawService
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, &manifest.Invalid{Path: path, Detail: err.Error()}
	}
	if raw.Executor == nil || raw.Executor.Name == "" {
		return nil, &manifest.Invalid{Path: path, Detail: "service has no executor"}
	}
	for _, member := range raw.Blocks {
		if member.Name == method {
			return &manifest.TaskBlock{
				Identifier:  path + "#" + method,
				Executor:    raw.Executor,
				Inputs:      manifest.ToInputHandles(member.InputsDef),
				Outputs:     manifest.ToOutputHandles(member.OutputsDef),
				PackagePath: filepath.Dir(filepath.Dir(path)),
			}, nil
		}
	}
	return nil, &manifest.BadReference{Ref: ref, Detail: "service has no block named " + method}
}

func (r *Resolver) recordPackage(ref string) {
	if classifyRef(ref) == pkgRef || classifyRef(ref) == svcRef {
		r.packages[strings.SplitN(ref, "::", 2)[0]] = true
	}
}

func (r *Resolver) wireOutputs(flow *manifest.SubflowBlock, raw []rawFlowOutputFrom) error {
	if len(raw) == 0 {
		return nil
	}
	flow.OutputsFrom = map[string][]manifest.NodeSource{}
	for _, of := range raw {
		if _, have := flow.Outputs[of.Handle]; !have {
			return &manifest.BadReference{
				Ref:    of.Handle,
				Detail: "outputs_from names an undeclared flow output",
			}
		}
		flow.OutputsFrom[of.Handle] = of.FromNode
	}
	return nil
}

// validate checks the wiring of every non-ignored node: handles
// exist, node references exist, and every required input has some
// way to be satisfied once ignore-flagged upstreams are dropped.
func (r *Resolver) validate(flow *manifest.SubflowBlock) error {
	for _, node := range flow.Nodes {
		if node.Ignore {
			continue
		}
		lazy := node.FlowRef.IsLazy()
		block := node.BlockOf()

		for handle, src := range node.InputsFrom {
			if !lazy && node.Type != manifest.ValueNode {
				if block == nil {
					return &manifest.BadReference{Ref: node.ID, Detail: "node has no block"}
				}
				if _, have := block.InputsDef()[handle]; !have {
					return &manifest.BadReference{
						Ref:    node.ID + "." + handle,
						Detail: "inputs_from names an undeclared input handle",
					}
				}
			}
			for _, from := range src.FromFlow {
				if _, have := flow.Inputs[from.InputHandle]; !have {
					return &manifest.BadReference{
						Ref:    node.ID + "." + handle,
						Detail: "from_flow names an undeclared flow input " + from.InputHandle,
					}
				}
			}
			for _, from := range src.FromNode {
				source := flow.Node(from.NodeID)
				if source == nil {
					return &manifest.BadReference{
						Ref:    node.ID + "." + handle,
						Detail: "from_node names an unknown node " + from.NodeID,
					}
				}
				if !sourceHasOutput(source, from.OutputHandle) {
					return &manifest.BadReference{
						Ref:    node.ID + "." + handle,
						Detail: "node " + from.NodeID + " has no output " + from.OutputHandle,
					}
				}
			}
		}

		if lazy || block == nil {
			continue
		}
		for handle, def := range block.InputsDef() {
			if !def.Required || def.HasDefault() {
				continue
			}
			src := node.InputsFrom[handle]
			if src != nil && src.Value != nil {
				continue
			}
			if src != nil && 0 < len(src.FromFlow) {
				continue
			}
			if src != nil && 0 < liveUpstreams(flow, src) {
				continue
			}
			return &manifest.BadReference{
				Ref:    node.ID + "." + handle,
				Detail: "required input has no value and no upstream",
			}
		}
	}
	return nil
}

// sourceHasOutput reports whether the source node declares the given
// output handle.  Lazy subflows can't be checked yet, and value nodes
// produce their literal handles.
func sourceHasOutput(source *manifest.Node, handle string) bool {
	if source.Type == manifest.ValueNode {
		for _, v := range source.Values {
			if v.Handle == handle {
				return true
			}
		}
		return false
	}
	if source.FlowRef.IsLazy() {
		return true
	}
	block := source.BlockOf()
	if block == nil {
		return false
	}
	if _, have := block.OutputsDef()[handle]; have {
		return true
	}
	return false
}

// liveUpstreams counts from_node edges whose source survives ignore
// removal.  Value nodes survive even when ignored: they only carry
// constants.
func liveUpstreams(flow *manifest.SubflowBlock, src *manifest.InputSource) int {
	n := 0
	for _, from := range src.FromNode {
		source := flow.Node(from.NodeID)
		if source == nil {
			continue
		}
		if source.Ignore && source.Type != manifest.ValueNode {
			continue
		}
		n++
	}
	return n
}

// buildConnections produces the effective edge set: ignore-flagged
// nodes are removed, except that ignored value nodes keep feeding
// their constants.
func buildConnections(flow *manifest.SubflowBlock) {
	for _, node := range flow.Nodes {
		if node.Ignore {
			continue
		}
		for handle, src := range node.InputsFrom {
			for _, from := range src.FromNode {
				source := flow.Node(from.NodeID)
				if source == nil {
					continue
				}
				if source.Ignore && source.Type != manifest.ValueNode {
					continue
				}
				flow.Connections = append(flow.Connections, manifest.Connection{
					SourceNode:   from.NodeID,
					SourceHandle: from.OutputHandle,
					TargetNode:   node.ID,
					TargetHandle: handle,
				})
			}
		}
	}
}

// checkAcyclic verifies that the effective edge set has no cycle,
// skipping edges incident to subflow nodes, which may legitimately
// recurse through lazy references.
func checkAcyclic(flow *manifest.SubflowBlock) error {
	adjacent := map[string][]string{}
	indegree := map[string]int{}
	for _, node := range flow.Nodes {
		indegree[node.ID] = 0
	}
	for _, c := range flow.Connections {
		src, dst := flow.Node(c.SourceNode), flow.Node(c.TargetNode)
		if src == nil || dst == nil {
			continue
		}
		if src.Type == manifest.SubflowNode || dst.Type == manifest.SubflowNode {
			continue
		}
		adjacent[c.SourceNode] = append(adjacent[c.SourceNode], c.TargetNode)
		indegree[c.TargetNode]++
	}

	queue := make([]string, 0, len(indegree))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for 0 < len(queue) {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacent[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(indegree) {
		return &manifest.Invalid{Path: flow.Path, Detail: "flow has a cycle"}
	}
	return nil
}
