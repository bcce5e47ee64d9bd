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

package tools

import (
	"sort"

	"github.com/oomol/oocana/manifest"
)

// FlowAnalysis is a structural critique of a resolved flow: counts,
// terminal nodes, orphans, and anything suspicious.
type FlowAnalysis struct {
	flow *manifest.SubflowBlock

	NodeCount   int
	Connections int

	// TerminalNodes have no outgoing connections.
	TerminalNodes []string

	// Orphans are neither connection targets nor sources and take
	// no flow input.
	Orphans []string

	// LazyNodes hold subflow references deferred to runtime.
	LazyNodes []string

	// IgnoredNodes were dropped from the effective graph.
	IgnoredNodes []string

	// Executors is the set of executor names the flow's task
	// blocks need.
	Executors []string
}

// Analyze inspects the flow.
func Analyze(flow *manifest.SubflowBlock) (*FlowAnalysis, error) {
	a := FlowAnalysis{
		flow:        flow,
		NodeCount:   len(flow.Nodes),
		Connections: len(flow.Connections),
	}

	sources, targets := map[string]bool{}, map[string]bool{}
	for _, c := range flow.Connections {
		sources[c.SourceNode] = true
		targets[c.TargetNode] = true
	}

	executors := map[string]bool{}
	for _, n := range flow.Nodes {
		if n.Ignore && n.Type != manifest.ValueNode {
			a.IgnoredNodes = append(a.IgnoredNodes, n.ID)
			continue
		}
		if !sources[n.ID] {
			a.TerminalNodes = append(a.TerminalNodes, n.ID)
		}
		if !sources[n.ID] && !targets[n.ID] && !takesFlowInput(n) {
			a.Orphans = append(a.Orphans, n.ID)
		}
		if n.FlowRef.IsLazy() {
			a.LazyNodes = append(a.LazyNodes, n.ID)
		}
		if task, is := n.BlockOf().(*manifest.TaskBlock); is && task.Executor != nil {
			executors[task.Executor.Name] = true
		}
	}

	for name := range executors {
		a.Executors = append(a.Executors, name)
	}
	sort.Strings(a.Executors)
	sort.Strings(a.TerminalNodes)
	sort.Strings(a.Orphans)
	sort.Strings(a.IgnoredNodes)

	return &a, nil
}

func takesFlowInput(n *manifest.Node) bool {
	for _, src := range n.InputsFrom {
		if 0 < len(src.FromFlow) {
			return true
		}
	}
	return false
}
