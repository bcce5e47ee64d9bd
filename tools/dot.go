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

// Package tools renders and inspects resolved flows: Graphviz dot,
// Mermaid, HTML, and a structural analysis used by --debug output
// and tests.
package tools

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/oomol/oocana/manifest"
)

// dot -Tpng g.dot > g.png

// Dot writes a Graphviz dot rendering of the flow's effective graph.
// Node fill encodes the block kind; edge labels carry the handle
// pair.
func Dot(flow *manifest.SubflowBlock, w io.Writer) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	for _, n := range flow.Nodes {
		if n.Ignore && n.Type != manifest.ValueNode {
			continue
		}
		fill := "#99ddc8"
		shape := "record"
		switch n.Type {
		case manifest.SubflowNode:
			fill = "#2d93ad"
		case manifest.ValueNode:
			fill = "#52aa5e"
			shape = "note"
		case manifest.SlotNode:
			fill = "#f9c88b"
		}
		label := escbraces(n.ID)
		if n.Description != "" {
			doc := n.Description
			if period := strings.Index(doc, ". "); 0 < period && 40 < len(doc) {
				doc = doc[0 : period+1]
			}
			label += "\\n" + escape(doc)
		}
		fmt.Fprintf(w, "  %q [shape=\"%s\", fillcolor=\"%s\", label=\"%s\" ]\n",
			n.ID, shape, fill, label)
	}

	for _, c := range flow.Connections {
		fmt.Fprintf(w, "  %q -> %q [ label = \"%s\" ]\n",
			c.SourceNode, c.TargetNode,
			escape(c.SourceHandle+" → "+c.TargetHandle))
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// PNG writes basename.dot and basename.png for the flow.  Needs the
// dot executable on PATH.
func PNG(flow *manifest.SubflowBlock, basename string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(flow, dotfile); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err := dotfile.Close(); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng " + dotname + " > " + pngname
	if err := exec.Command("sh", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func escape(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}

func escbraces(s string) string {
	s = strings.Replace(s, "{", "\\{", -1)
	s = strings.Replace(s, "}", "\\}", -1)
	return s
}
