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
	"fmt"
	"io"
	"strings"

	"github.com/oomol/oocana/manifest"
)

// MermaidOpts tune the Mermaid rendering.
type MermaidOpts struct {
	// ShowHandles labels edges with "source → target" handles.
	ShowHandles bool `json:"showHandles"`

	// SubflowFill is the fill color for subflow nodes.
	SubflowFill string `json:"subflowFill,omitempty"`
}

// Mermaid writes a Mermaid graph of the flow's effective graph.
func Mermaid(flow *manifest.SubflowBlock, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{ShowHandles: true}
	}

	fmt.Fprintf(w, "graph LR\n")

	for _, n := range flow.Nodes {
		if n.Ignore && n.Type != manifest.ValueNode {
			continue
		}
		id := mermaidID(n.ID)
		switch n.Type {
		case manifest.SubflowNode:
			fmt.Fprintf(w, "  %s[[%s]]\n", id, n.ID)
		case manifest.ValueNode:
			fmt.Fprintf(w, "  %s>%s]\n", id, n.ID)
		case manifest.SlotNode:
			fmt.Fprintf(w, "  %s{{%s}}\n", id, n.ID)
		default:
			fmt.Fprintf(w, "  %s[%s]\n", id, n.ID)
		}
	}

	for _, c := range flow.Connections {
		if opts.ShowHandles {
			fmt.Fprintf(w, "  %s -->|%s| %s\n",
				mermaidID(c.SourceNode),
				c.SourceHandle+" → "+c.TargetHandle,
				mermaidID(c.TargetNode))
		} else {
			fmt.Fprintf(w, "  %s --> %s\n",
				mermaidID(c.SourceNode), mermaidID(c.TargetNode))
		}
	}

	if opts.SubflowFill != "" {
		for _, n := range flow.Nodes {
			if n.Type == manifest.SubflowNode {
				fmt.Fprintf(w, "  style %s fill:%s\n", mermaidID(n.ID), opts.SubflowFill)
			}
		}
	}

	return nil
}

// mermaidID makes a node id safe for Mermaid syntax.
func mermaidID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return r
		}
		return '_'
	}, s)
}
