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
	"html"
	"io"
	"sort"

	"github.com/oomol/oocana/manifest"

	"github.com/russross/blackfriday/v2"
)

// FlowHTML writes a self-contained HTML page describing the flow:
// its Markdown description rendered, its handles, and a node table
// with per-node descriptions.
func FlowHTML(flow *manifest.SubflowBlock, w io.Writer) error {
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n")
	fmt.Fprintf(w, "<title>%s</title>\n", html.EscapeString(flow.Path))
	fmt.Fprintf(w, `<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
code { background: #f4f4f4; padding: 1px 3px; }
</style>
</head><body>
`)
	fmt.Fprintf(w, "<h1>%s</h1>\n", html.EscapeString(flow.Path))

	if flow.Description != "" {
		w.Write(blackfriday.Run([]byte(flow.Description)))
	}

	writeHandles := func(title string, names []string, get func(string) string) {
		if len(names) == 0 {
			return
		}
		sort.Strings(names)
		fmt.Fprintf(w, "<h2>%s</h2>\n<ul>\n", title)
		for _, name := range names {
			fmt.Fprintf(w, "<li><code>%s</code>%s</li>\n", html.EscapeString(name), get(name))
		}
		fmt.Fprintf(w, "</ul>\n")
	}

	var inputNames []string
	for name := range flow.Inputs {
		inputNames = append(inputNames, name)
	}
	writeHandles("Inputs", inputNames, func(name string) string {
		def := flow.Inputs[name]
		notes := ""
		if def.Required {
			notes += " required"
		}
		if def.Nullable {
			notes += " nullable"
		}
		if def.Remember {
			notes += " remember"
		}
		return notes
	})

	var outputNames []string
	for name := range flow.Outputs {
		outputNames = append(outputNames, name)
	}
	writeHandles("Outputs", outputNames, func(string) string { return "" })

	fmt.Fprintf(w, "<h2>Nodes</h2>\n<table>\n<tr><th>node</th><th>kind</th><th>block</th><th>notes</th></tr>\n")
	for _, n := range flow.Nodes {
		blockID := ""
		if block := n.BlockOf(); block != nil {
			blockID = block.BlockID()
		} else if n.FlowRef.IsLazy() {
			blockID = n.FlowRef.Lazy.Name + " (lazy)"
		}
		notes := n.Description
		if n.Ignore {
			notes += " (ignored)"
		}
		fmt.Fprintf(w, "<tr><td><code>%s</code></td><td>%s</td><td><code>%s</code></td><td>%s</td></tr>\n",
			html.EscapeString(n.ID), n.Type, html.EscapeString(blockID),
			string(blackfriday.Run([]byte(notes))))
	}
	fmt.Fprintf(w, "</table>\n")

	fmt.Fprintf(w, "<h2>Graph</h2>\n<pre class=\"mermaid\">\n")
	if err := Mermaid(flow, w, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "</pre>\n</body></html>\n")
	return nil
}
