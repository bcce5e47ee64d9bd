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

package resolver

import (
	"fmt"

	"github.com/oomol/oocana/manifest"
)

// The raw* types mirror the wire form of the .oo.yaml manifests.
// They exist only between yaml.Unmarshal and resolution.

type rawFlow struct {
	Description string                   `yaml:"description"`
	InputsDef   []*manifest.InputHandle  `yaml:"inputs_def"`
	OutputsDef  []*manifest.OutputHandle `yaml:"outputs_def"`
	OutputsFrom []rawFlowOutputFrom      `yaml:"outputs_from"`
	Nodes       []*rawNode               `yaml:"nodes"`
}

type rawFlowOutputFrom struct {
	Handle   string                `yaml:"handle"`
	FromNode []manifest.NodeSource `yaml:"from_node"`
}

type rawNode struct {
	NodeID      string                  `yaml:"node_id"`
	Description string                  `yaml:"description"`
	Task        *rawBlockRef            `yaml:"task"`
	Subflow     string                  `yaml:"subflow"`
	Service     string                  `yaml:"service"`
	Slot        *rawSlot                `yaml:"slot"`
	Values      []*manifest.InputHandle `yaml:"values"`

	InputsFrom      []*rawInputFrom  `yaml:"inputs_from"`
	Concurrency     int              `yaml:"concurrency"`
	Timeout         int              `yaml:"timeout"`
	Ignore          bool             `yaml:"ignore"`
	ContinueOnError bool             `yaml:"continue_on_error"`
	Slots           []rawSlotBinding `yaml:"slots"`
}

// kind classifies a raw node by which of its block keys is set.
func (n *rawNode) kind() (manifest.NodeType, error) {
	var (
		kinds []manifest.NodeType
	)
	if n.Task != nil {
		kinds = append(kinds, manifest.TaskNode)
	}
	if n.Subflow != "" {
		kinds = append(kinds, manifest.SubflowNode)
	}
	if n.Service != "" {
		kinds = append(kinds, manifest.ServiceNode)
	}
	if n.Slot != nil {
		kinds = append(kinds, manifest.SlotNode)
	}
	if n.Values != nil {
		kinds = append(kinds, manifest.ValueNode)
	}
	switch len(kinds) {
	case 1:
		return kinds[0], nil
	case 0:
		return "", fmt.Errorf("node %q has no task, subflow, service, slot, or values key", n.NodeID)
	}
	return "", fmt.Errorf("node %q has more than one block kind", n.NodeID)
}

// rawBlockRef is either a reference string or an inline task block.
type rawBlockRef struct {
	Ref    string
	Inline *rawTaskBlock
}

func (r *rawBlockRef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		r.Ref = s
		return nil
	}
	var inline rawTaskBlock
	if err := unmarshal(&inline); err != nil {
		return err
	}
	r.Inline = &inline
	return nil
}

// rawSlot is an inline slot block.
type rawSlot struct {
	InputsDef  []*manifest.InputHandle  `yaml:"inputs_def"`
	OutputsDef []*manifest.OutputHandle `yaml:"outputs_def"`
}

// rawSlotBinding fills a slot node in a child subflow with a provider
// block from the parent.
type rawSlotBinding struct {
	SlotNodeID string       `yaml:"slot_node_id"`
	Provider   *rawBlockRef `yaml:"provider"`
}

// rawInputFrom is the wiring for one node input handle.  The value
// key keeps its absent/null distinction, as with handle defaults.
type rawInputFrom struct {
	Handle   string
	Value    *manifest.Value
	FromFlow []manifest.FlowSource
	FromNode []manifest.NodeSource
}

func (r *rawInputFrom) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Handle   string                `yaml:"handle"`
		Value    interface{}           `yaml:"value"`
		FromFlow []manifest.FlowSource `yaml:"from_flow"`
		FromNode []manifest.NodeSource `yaml:"from_node"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	var keys map[string]interface{}
	if err := unmarshal(&keys); err != nil {
		return err
	}
	r.Handle = raw.Handle
	r.FromFlow = raw.FromFlow
	r.FromNode = raw.FromNode
	if _, have := keys["value"]; have {
		r.Value = manifest.NewValue(raw.Value)
	}
	return nil
}

type rawTaskBlock struct {
	Type       string                   `yaml:"type"`
	Executor   *manifest.ExecutorSpec   `yaml:"executor"`
	InputsDef  []*manifest.InputHandle  `yaml:"inputs_def"`
	OutputsDef []*manifest.OutputHandle `yaml:"outputs_def"`
}

type rawService struct {
	Executor *manifest.ExecutorSpec `yaml:"executor"`
	Blocks   []*rawServiceBlock     `yaml:"blocks"`
}

type rawServiceBlock struct {
	Name       string                   `yaml:"name"`
	InputsDef  []*manifest.InputHandle  `yaml:"inputs_def"`
	OutputsDef []*manifest.OutputHandle `yaml:"outputs_def"`
}

// rawPackage is package.oo.yaml: just enough for version-directory
// resolution.
type rawPackage struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Dependencies map[string]string `yaml:"dependencies"`
}
