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
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oomol/oocana/cache"
	"github.com/oomol/oocana/manifest"
	"github.com/oomol/oocana/report"
)

// testHarness is the minimal Options plus a readable session log.
type testHarness struct {
	opts    *Options
	logPath string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	reporter, err := report.New("test-session", logPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reporter.Close() })
	return &testHarness{
		opts: &Options{
			SessionID: "test-session",
			Reporter:  reporter,
			Remember:  NewRememberStore(),
			WorkDir:   dir,
		},
		logPath: logPath,
	}
}

// events reads the session log back.
func (h *testHarness) events(t *testing.T) []report.Event {
	t.Helper()
	file, err := os.Open(h.logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	var events []report.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e report.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatal(err)
		}
		events = append(events, e)
	}
	return events
}

func (h *testHarness) count(t *testing.T, typ, nodeID string) int {
	n := 0
	for _, e := range h.events(t) {
		if e.Type == typ && (nodeID == "" || e.NodeID == nodeID) {
			n++
		}
	}
	return n
}

// shellTask makes an inline shell task block.
func shellTask(id string, extraInputs ...*manifest.InputHandle) *manifest.TaskBlock {
	inputs := []*manifest.InputHandle{
		{Handle: "command", Required: true},
		{Handle: "cwd"},
		{Handle: "envs"},
	}
	inputs = append(inputs, extraInputs...)
	return &manifest.TaskBlock{
		Identifier: id,
		Executor:   &manifest.ExecutorSpec{Name: "shell"},
		Inputs:     manifest.ToInputHandles(inputs),
		Outputs: manifest.ToOutputHandles([]*manifest.OutputHandle{
			{Handle: "stdout"},
			{Handle: "stderr"},
		}),
	}
}

func literal(v interface{}) *manifest.InputSource {
	return &manifest.InputSource{Value: manifest.NewValue(v)}
}

func fromNode(nodeID, handle string) *manifest.InputSource {
	return &manifest.InputSource{
		FromNode: []manifest.NodeSource{{NodeID: nodeID, OutputHandle: handle}},
	}
}

// wire indexes the nodes and derives the effective connections the
// way the resolver does.
func wire(flow *manifest.SubflowBlock) *manifest.SubflowBlock {
	flow.NodesByID = map[string]*manifest.Node{}
	for _, n := range flow.Nodes {
		flow.NodesByID[n.ID] = n
	}
	flow.Connections = nil
	for _, n := range flow.Nodes {
		if n.Ignore {
			continue
		}
		for handle, src := range n.InputsFrom {
			if src.Handle == "" {
				src.Handle = handle
			}
			for _, from := range src.FromNode {
				source := flow.NodesByID[from.NodeID]
				if source == nil {
					continue
				}
				if source.Ignore && source.Type != manifest.ValueNode {
					continue
				}
				flow.Connections = append(flow.Connections, manifest.Connection{
					SourceNode:   from.NodeID,
					SourceHandle: from.OutputHandle,
					TargetNode:   n.ID,
					TargetHandle: handle,
				})
			}
		}
	}
	return flow
}

func TestLinearShellFlow(t *testing.T) {
	h := newHarness(t)
	flow := wire(&manifest.SubflowBlock{
		Identifier: "linear",
		Path:       "linear",
		Outputs:    manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "result"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"result": {{NodeID: "b", OutputHandle: "stdout"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "a", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-a"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal(`echo "echo hi"`),
				},
			},
			{
				ID: "b", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-b"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": fromNode("a", "stdout"),
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if result.Outputs["result"] != "hi\n" {
		t.Fatalf("result: %#v", result.Outputs)
	}
	if h.count(t, "job.finished", "a") != 1 || h.count(t, "job.finished", "b") != 1 {
		t.Fatalf("job events: %#v", h.events(t))
	}
}

func TestValueNodeFeedsDownstream(t *testing.T) {
	h := newHarness(t)
	flow := wire(&manifest.SubflowBlock{
		Identifier: "values",
		Path:       "values",
		Outputs:    manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "out"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"out": {{NodeID: "n", OutputHandle: "stdout"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "v", Type: manifest.ValueNode, Concurrency: 1,
				Values: []*manifest.InputHandle{
					{Handle: "cmd", Value: manifest.NewValue("echo from-value")},
				},
			},
			{
				ID: "n", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-n"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": fromNode("v", "cmd"),
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if result.Outputs["out"] != "from-value\n" {
		t.Fatalf("out: %#v", result.Outputs)
	}
}

func TestRememberHandle(t *testing.T) {
	h := newHarness(t)
	cfg := &manifest.InputHandle{Handle: "cfg", Required: true, Remember: true}
	trigger := &manifest.InputHandle{Handle: "t"}
	flow := wire(&manifest.SubflowBlock{
		Identifier: "remember",
		Path:       "remember",
		Nodes: []*manifest.Node{
			{
				ID: "v1", Type: manifest.ValueNode, Concurrency: 1,
				Values: []*manifest.InputHandle{
					{Handle: "cfg", Value: manifest.NewValue(1)},
					{Handle: "t", Value: manifest.NewValue("first")},
				},
			},
			{
				ID: "v2", Type: manifest.ValueNode, Concurrency: 1,
				Values: []*manifest.InputHandle{
					{Handle: "t", Value: manifest.NewValue("second")},
				},
			},
			{
				ID: "r", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-r", cfg, trigger),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo ok"),
					"cfg":     fromNode("v1", "cfg"),
					"t": {
						FromNode: []manifest.NodeSource{
							{NodeID: "v1", OutputHandle: "t"},
							{NodeID: "v2", OutputHandle: "t"},
						},
					},
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}

	// Two trigger tokens, one cfg token: the second activation runs
	// on the remembered cfg.
	if got := h.count(t, "job.finished", "r"); got != 2 {
		t.Fatalf("r should fire twice, fired %d", got)
	}
	if v, have := h.opts.Remember.Get("remember", "r", "cfg"); !have || v != 1 {
		t.Fatalf("remembered cfg: %v %v", v, have)
	}
}

func TestCancellationMidFlight(t *testing.T) {
	h := newHarness(t)
	flow := wire(&manifest.SubflowBlock{
		Identifier: "slow",
		Path:       "slow",
		Nodes: []*manifest.Node{
			{
				ID: "sleeper", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-sleep"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("sleep 10"),
				},
			},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := Run(ctx, h.opts, flow, nil)
	if result.Status != StatusCancelled {
		t.Fatalf("status %q", result.Status)
	}
	if 6*time.Second < time.Since(start) {
		t.Fatal("cancellation exceeded grace period")
	}
	// No job may start after the cancel.
	events := h.events(t)
	sawFlowFinished := false
	for _, e := range events {
		if e.Type == "flow.finished" {
			sawFlowFinished = true
		}
		if sawFlowFinished && e.Type == "job.started" {
			t.Fatal("job started after termination")
		}
	}
}

func TestFailureCascadeSkipsDownstream(t *testing.T) {
	h := newHarness(t)
	flow := wire(&manifest.SubflowBlock{
		Identifier: "cascade",
		Path:       "cascade",
		Nodes: []*manifest.Node{
			{
				ID: "boom", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-boom"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("exit 7"),
				},
			},
			{
				ID: "after", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-after", &manifest.InputHandle{Handle: "x", Required: true}),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo never"),
					// The failed upstream produced stdout, so hang
					// the requirement on a handle it never made.
					"x": fromNode("boom", "stderr"),
				},
			},
		},
	})

	// boom produces stdout and stderr even on failure; wire the
	// requirement to a third, never-produced handle instead.
	flow.NodesByID["after"].InputsFrom["x"] = fromNode("boom", "missing")
	flow.NodesByID["boom"].Block.(*manifest.TaskBlock).Outputs["missing"] = &manifest.OutputHandle{Handle: "missing"}
	wire(flow)

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusFailed {
		t.Fatalf("status %q", result.Status)
	}
	if h.count(t, "job.started", "after") != 0 {
		t.Fatal("downstream of a failure should be skipped, not run")
	}
}

func TestIgnoredUpstreamTreatedAsAbsent(t *testing.T) {
	h := newHarness(t)
	flow := wire(&manifest.SubflowBlock{
		Identifier: "ignored",
		Path:       "ignored",
		Nodes: []*manifest.Node{
			{
				ID: "ghost", Type: manifest.TaskNode, Concurrency: 1, Ignore: true,
				Block: shellTask("blk-ghost"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo ghost"),
				},
			},
			{
				ID: "n", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-n", &manifest.InputHandle{Handle: "opt"}),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo ran"),
					"opt":     fromNode("ghost", "stdout"),
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if h.count(t, "job.started", "ghost") != 0 {
		t.Fatal("ignored node must produce no events")
	}
	if h.count(t, "job.finished", "n") != 1 {
		t.Fatal("downstream should run as if the edge never existed")
	}
}

func TestSubflowRun(t *testing.T) {
	h := newHarness(t)

	child := wire(&manifest.SubflowBlock{
		Identifier: "child",
		Path:       "child",
		Inputs: manifest.ToInputHandles([]*manifest.InputHandle{
			{Handle: "x", Required: true},
		}),
		Outputs: manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "out"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"out": {{NodeID: "c", OutputHandle: "stdout"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "c", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-c"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": {FromFlow: []manifest.FlowSource{{InputHandle: "x"}}},
				},
			},
		},
	})

	parent := wire(&manifest.SubflowBlock{
		Identifier: "parent",
		Path:       "parent",
		Outputs:    manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "result"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"result": {{NodeID: "s", OutputHandle: "out"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "s", Type: manifest.SubflowNode, Concurrency: 1,
				FlowRef: &manifest.FlowReference{Resolved: child},
				InputsFrom: map[string]*manifest.InputSource{
					"x": literal("echo sub"),
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, parent, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if result.Outputs["result"] != "sub\n" {
		t.Fatalf("result: %#v", result.Outputs)
	}
}

func TestSlotProviderFromScope(t *testing.T) {
	h := newHarness(t)

	child := wire(&manifest.SubflowBlock{
		Identifier: "child-with-slot",
		Path:       "child-with-slot",
		Outputs:    manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "out"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"out": {{NodeID: "sl", OutputHandle: "stdout"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "sl", Type: manifest.SlotNode, Concurrency: 1,
				Block: &manifest.SlotBlock{
					Identifier: "child#sl",
					Inputs: manifest.ToInputHandles([]*manifest.InputHandle{
						{Handle: "command", Required: true},
					}),
					Outputs: manifest.ToOutputHandles([]*manifest.OutputHandle{
						{Handle: "stdout"},
					}),
				},
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo slotted"),
				},
			},
		},
	})

	parent := wire(&manifest.SubflowBlock{
		Identifier: "slot-parent",
		Path:       "slot-parent",
		Outputs:    manifest.ToOutputHandles([]*manifest.OutputHandle{{Handle: "result"}}),
		OutputsFrom: map[string][]manifest.NodeSource{
			"result": {{NodeID: "s", OutputHandle: "out"}},
		},
		Nodes: []*manifest.Node{
			{
				ID: "s", Type: manifest.SubflowNode, Concurrency: 1,
				FlowRef: &manifest.FlowReference{Resolved: child},
				Slots: map[string]manifest.Block{
					"sl": shellTask("provider"),
				},
				InputsFrom: map[string]*manifest.InputSource{},
			},
		},
	})

	result := Run(context.Background(), h.opts, parent, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if result.Outputs["result"] != "slotted\n" {
		t.Fatalf("result: %#v", result.Outputs)
	}
}

func TestRecursionLimit(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxRuntimeDepth = 3

	flow := &manifest.SubflowBlock{
		Identifier: "recursive",
		Path:       "recursive",
	}
	flow.Nodes = []*manifest.Node{
		{
			ID: "again", Type: manifest.SubflowNode, Concurrency: 1,
			FlowRef:    &manifest.FlowReference{Resolved: flow},
			InputsFrom: map[string]*manifest.InputSource{},
		},
	}
	wire(flow)

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusFailed {
		t.Fatalf("status %q", result.Status)
	}
}

func TestCacheHitAndSingleFire(t *testing.T) {
	h := newHarness(t)
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	h.opts.Cache = store

	makeFlow := func() *manifest.SubflowBlock {
		return wire(&manifest.SubflowBlock{
			Identifier: "cached",
			Path:       "cached",
			Nodes: []*manifest.Node{
				{
					ID: "v1", Type: manifest.ValueNode, Concurrency: 1,
					Values: []*manifest.InputHandle{{Handle: "t", Value: manifest.NewValue("same")}},
				},
				{
					ID: "v2", Type: manifest.ValueNode, Concurrency: 1,
					Values: []*manifest.InputHandle{{Handle: "t", Value: manifest.NewValue("same")}},
				},
				{
					ID: "r", Type: manifest.TaskNode, Concurrency: 1,
					Block: shellTask("blk-cache", &manifest.InputHandle{Handle: "t"}),
					InputsFrom: map[string]*manifest.InputSource{
						"command": literal("echo computed"),
						"t": {
							FromNode: []manifest.NodeSource{
								{NodeID: "v1", OutputHandle: "t"},
								{NodeID: "v2", OutputHandle: "t"},
							},
						},
					},
				},
			},
		})
	}

	result := Run(context.Background(), h.opts, makeFlow(), nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	// Two identical activations, one dispatch.
	if got := h.count(t, "job.started", "r"); got != 1 {
		t.Fatalf("want a single dispatch, got %d", got)
	}

	// A fresh run with the same cache never dispatches.
	h2 := newHarness(t)
	h2.opts.Cache = store
	result = Run(context.Background(), h2.opts, makeFlow(), nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("second run: %q (%s)", result.Status, result.Err)
	}
	if got := h2.count(t, "job.started", "r"); got != 0 {
		t.Fatalf("cached run dispatched %d times", got)
	}
	if got := h2.count(t, "job.cached", "r"); got == 0 {
		t.Fatal("want cached-hit events")
	}
}

func TestCacheBypassedInSubflow(t *testing.T) {
	h := newHarness(t)
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	h.opts.Cache = store

	child := wire(&manifest.SubflowBlock{
		Identifier: "nested",
		Path:       "nested",
		Nodes: []*manifest.Node{
			{
				ID: "task", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-nested"),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo nested"),
				},
			},
		},
	})
	parent := wire(&manifest.SubflowBlock{
		Identifier: "outer",
		Path:       "outer",
		Nodes: []*manifest.Node{
			{
				ID: "s", Type: manifest.SubflowNode, Concurrency: 1,
				FlowRef:    &manifest.FlowReference{Resolved: child},
				InputsFrom: map[string]*manifest.InputSource{},
			},
		},
	})

	for i := 0; i < 2; i++ {
		h = newHarness(t)
		h.opts.Cache = store
		result := Run(context.Background(), h.opts, parent, nil)
		if result.Status != StatusSucceeded {
			t.Fatalf("run %d: %q (%s)", i, result.Status, result.Err)
		}
		// The nested task runs in a child scope, so it always
		// dispatches; only the subflow node itself may cache.
		if i == 1 && h.count(t, "job.started", "task") == 0 && h.count(t, "job.cached", "s") == 0 {
			t.Fatal("second run neither ran the nested task nor hit the subflow cache")
		}
	}
}

func TestLazySubflowNeverEntered(t *testing.T) {
	h := newHarness(t)

	// The guard produces only stdout; the subflow hangs its
	// required input on a handle the guard never emits, so the
	// body is never entered and the flow still succeeds.
	guardOutputs := []*manifest.OutputHandle{{Handle: "stdout"}, {Handle: "stderr"}, {Handle: "go"}}
	guard := &manifest.TaskBlock{
		Identifier: "guard",
		Executor:   &manifest.ExecutorSpec{Name: "shell"},
		Inputs: manifest.ToInputHandles([]*manifest.InputHandle{
			{Handle: "command", Required: true},
		}),
		Outputs: manifest.ToOutputHandles(guardOutputs),
	}

	flow := &manifest.SubflowBlock{
		Identifier: "lazy-guarded",
		Path:       "lazy-guarded",
	}
	flow.Nodes = []*manifest.Node{
		{
			ID: "guard", Type: manifest.TaskNode, Concurrency: 1,
			Block: guard,
			InputsFrom: map[string]*manifest.InputSource{
				"command": literal("true"),
			},
		},
		{
			ID: "again", Type: manifest.SubflowNode, Concurrency: 1,
			FlowRef: &manifest.FlowReference{Lazy: &manifest.LazyFlow{Name: "self", Path: "lazy-guarded"}},
			InputsFrom: map[string]*manifest.InputSource{
				"x": fromNode("guard", "go"),
			},
		},
	}
	wire(flow)

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if h.count(t, "job.started", "again") != 0 {
		t.Fatal("the lazy subflow body must never be entered")
	}
}

func TestConcurrencyLimit(t *testing.T) {
	h := newHarness(t)

	// Four trigger tokens, concurrency 2: the run succeeds and the
	// node fires four times.
	values := make([]*manifest.Node, 4)
	sources := make([]manifest.NodeSource, 4)
	for i := range values {
		id := string(rune('a' + i))
		values[i] = &manifest.Node{
			ID: "v" + id, Type: manifest.ValueNode, Concurrency: 1,
			Values: []*manifest.InputHandle{{Handle: "t", Value: manifest.NewValue(i)}},
		}
		sources[i] = manifest.NodeSource{NodeID: "v" + id, OutputHandle: "t"}
	}

	flow := &manifest.SubflowBlock{Identifier: "bounded", Path: "bounded"}
	flow.Nodes = append(values, &manifest.Node{
		ID: "worker", Type: manifest.TaskNode, Concurrency: 2,
		Block: shellTask("blk-worker", &manifest.InputHandle{Handle: "t"}),
		InputsFrom: map[string]*manifest.InputSource{
			"command": literal("sleep 0.05; echo done"),
			"t":       {FromNode: sources},
		},
	})
	wire(flow)

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if got := h.count(t, "job.finished", "worker"); got != 4 {
		t.Fatalf("worker fired %d times", got)
	}
}

func TestRequiredInputFromMissingOptionalUpstream(t *testing.T) {
	h := newHarness(t)

	// A node whose required handle is fed by an upstream that
	// terminates without producing it ends up skipped, and the
	// flow still succeeds.
	producer := &manifest.TaskBlock{
		Identifier: "producer",
		Executor:   &manifest.ExecutorSpec{Name: "shell"},
		Inputs: manifest.ToInputHandles([]*manifest.InputHandle{
			{Handle: "command", Required: true},
		}),
		Outputs: manifest.ToOutputHandles([]*manifest.OutputHandle{
			{Handle: "stdout"}, {Handle: "never"},
		}),
	}
	flow := wire(&manifest.SubflowBlock{
		Identifier: "skippy",
		Path:       "skippy",
		Nodes: []*manifest.Node{
			{
				ID: "p", Type: manifest.TaskNode, Concurrency: 1,
				Block: producer,
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("true"),
				},
			},
			{
				ID: "q", Type: manifest.TaskNode, Concurrency: 1,
				Block: shellTask("blk-q", &manifest.InputHandle{Handle: "x", Required: true}),
				InputsFrom: map[string]*manifest.InputSource{
					"command": literal("echo no"),
					"x":       fromNode("p", "never"),
				},
			},
		},
	})

	result := Run(context.Background(), h.opts, flow, nil)
	if result.Status != StatusSucceeded {
		t.Fatalf("status %q (%s)", result.Status, result.Err)
	}
	if h.count(t, "job.started", "q") != 0 {
		t.Fatal("q should be skipped")
	}
}
