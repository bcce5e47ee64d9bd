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

// Package scheduler drives a flow run from a root SubflowBlock to
// termination.
//
// Each flow instance is one cooperative loop consuming a merged event
// stream: executor messages, child-flow completions, timers, and the
// cancellation signal.  Heavy work (subprocesses, child flows) runs
// on worker goroutines that report back through the stream.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/oomol/oocana/cache"
	"github.com/oomol/oocana/executor"
	"github.com/oomol/oocana/job"
	"github.com/oomol/oocana/manifest"
	"github.com/oomol/oocana/report"
	"github.com/oomol/oocana/resolver"
	"github.com/oomol/oocana/util"
)

// Defaults.
const (
	DefaultMaxRuntimeDepth = 100
	DefaultGracePeriod     = 5 * time.Second
)

// Options carries the session-owned collaborators every flow run
// shares.
type Options struct {
	SessionID job.SessionID
	Reporter  *report.Reporter
	Registry  *executor.Registry
	Resolver  *resolver.Resolver

	// Cache is nil when caching is off.  Only the root flow
	// consults it either way.
	Cache *cache.Store

	// Remember holds remember-handle values for the session.
	Remember *RememberStore

	// WorkDir is the session working dir; shell blocks resolve a
	// relative cwd against it.
	WorkDir string

	MaxRuntimeDepth int
	GracePeriod     time.Duration
}

func (o *Options) maxDepth() int {
	if o.MaxRuntimeDepth <= 0 {
		return DefaultMaxRuntimeDepth
	}
	return o.MaxRuntimeDepth
}

func (o *Options) grace() time.Duration {
	if o.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return o.GracePeriod
}

// Flow statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// FlowResult is what a finished flow run reports.
type FlowResult struct {
	Status  string                 `json:"status"`
	Outputs map[string]interface{} `json:"outputs,omitempty"`
	Err     string                 `json:"error,omitempty"`
}

// Run drives the root flow to termination.
func Run(ctx context.Context, opts *Options, flow *manifest.SubflowBlock, inputs map[string]interface{}) *FlowResult {
	if opts.Remember == nil {
		opts.Remember = NewRememberStore()
	}
	return runFlow(ctx, opts, flow, inputs, job.NewJobID(), job.Stack{}, job.Scope{})
}

// Events of the merged stream.

type evOutput struct {
	jobID  job.JobID
	handle string
	value  interface{}
	done   bool
}

type evLog struct {
	jobID  job.JobID
	stream string
	line   string
}

type evFinish struct {
	jobID   job.JobID
	status  string
	errMsg  string
	outputs map[string]interface{}
}

type evChildDone struct {
	jobID  job.JobID
	result *FlowResult
}

type evTimeout struct {
	jobID job.JobID
}

// nodeState tracks one node of the running flow.
type nodeState struct {
	node      *manifest.Node
	buf       *inputBuffer
	running   int
	attempted int
	fired     int
	done      bool
	status    job.Status
	failed    bool
	errMsg    string
}

// activation is one in-flight job.
type activation struct {
	jobID       job.JobID
	st          *nodeState
	bundle      map[string]interface{}
	fingerprint string
	outputs     map[string]interface{}
	timer       *time.Timer
	cancel      context.CancelFunc
}

// flowRun is the per-flow-instance scheduler.
type flowRun struct {
	opts      *Options
	flow      *manifest.SubflowBlock
	flowJobID job.JobID
	stack     job.Stack
	scope     job.Scope
	inputs    map[string]interface{}

	in    chan interface{}
	nodes map[string]*nodeState
	order []string
	jobs  map[job.JobID]*activation

	// Single-fire bookkeeping: fingerprint of a dispatched but not
	// yet completed cacheable activation, and who's waiting on it.
	fpInflight map[string]job.JobID
	fpWaiters  map[string][]*nodeState

	outputs   map[string]interface{}
	cancelled bool
	failed    bool
	firstErr  string
}

func runFlow(ctx context.Context, opts *Options, flow *manifest.SubflowBlock, inputs map[string]interface{}, flowJobID job.JobID, stack job.Stack, scope job.Scope) *FlowResult {
	s := &flowRun{
		opts:       opts,
		flow:       flow,
		flowJobID:  flowJobID,
		stack:      stack,
		scope:      scope,
		inputs:     inputs,
		in:         make(chan interface{}, 256),
		nodes:      map[string]*nodeState{},
		jobs:       map[job.JobID]*activation{},
		fpInflight: map[string]job.JobID{},
		fpWaiters:  map[string][]*nodeState{},
		outputs:    map[string]interface{}{},
	}
	for _, node := range flow.Nodes {
		s.nodes[node.ID] = &nodeState{
			node:   node,
			buf:    newInputBuffer(node, inputs),
			status: job.Pending,
		}
		s.order = append(s.order, node.ID)
	}
	// Simultaneously-ready nodes fire in node-id order; this only
	// matters for reproducible logs.
	sort.Strings(s.order)
	return s.run(ctx)
}

func (s *flowRun) run(ctx context.Context) *FlowResult {
	s.opts.Reporter.FlowStarted(s.flowJobID, s.flow.Path)

	s.seedValueNodes()
	s.sweep()

	var graceCh <-chan time.Time
	cancelSignal := ctx.Done()

	for !s.done() {
		select {
		case <-cancelSignal:
			cancelSignal = nil
			s.startCancel()
			graceCh = time.After(s.opts.grace())
		case <-graceCh:
			graceCh = nil
			s.forceCancel()
		case e := <-s.in:
			s.handle(e)
		}
		s.sweep()
	}

	status := StatusSucceeded
	if s.failed {
		status = StatusFailed
	}
	if s.cancelled {
		status = StatusCancelled
	}
	s.opts.Reporter.FlowFinished(s.flowJobID, s.flow.Path, status)
	return &FlowResult{
		Status:  status,
		Outputs: s.outputs,
		Err:     s.firstErr,
	}
}

// seedValueNodes emits the constants of every value node.  Ignored
// value nodes still feed their constants, silently; other ignored
// nodes were already dropped from the effective graph.
func (s *flowRun) seedValueNodes() {
	for _, node := range s.flow.Nodes {
		if node.Type != manifest.ValueNode {
			continue
		}
		st := s.nodes[node.ID]
		for _, v := range node.Values {
			if v.Value == nil {
				continue
			}
			s.propagate(node.ID, v.Handle, v.Value.V)
		}
		st.fired++
		st.done = true
		st.status = job.Succeeded
	}
}

// done reports termination: every non-ignored node terminal and no
// jobs in flight.
func (s *flowRun) done() bool {
	if 0 < len(s.jobs) {
		return false
	}
	for _, st := range s.nodes {
		if st.node.Ignore && st.node.Type != manifest.ValueNode {
			continue
		}
		if !st.done {
			return false
		}
	}
	return true
}

// handle consumes one event from the merged stream.
func (s *flowRun) handle(e interface{}) {
	switch ev := e.(type) {
	case evOutput:
		act, have := s.jobs[ev.jobID]
		if !have {
			return
		}
		act.outputs[ev.handle] = ev.value
		s.propagate(act.st.node.ID, ev.handle, ev.value)

	case evLog:
		act, have := s.jobs[ev.jobID]
		if !have {
			return
		}
		s.opts.Reporter.Emit("job.log", ev.jobID, act.st.node.ID, map[string]interface{}{
			"stream": ev.stream,
			"line":   ev.line,
		})

	case evFinish:
		act, have := s.jobs[ev.jobID]
		if !have {
			return
		}
		for handle, value := range ev.outputs {
			act.outputs[handle] = value
			s.propagate(act.st.node.ID, handle, value)
		}
		if ev.status == executor.FinishPartial {
			// Partial keeps the job running; outputs already went out
			// and are never retracted.
			return
		}
		if ev.status == executor.FinishOK {
			s.completeJob(act, nil)
		} else {
			s.completeJob(act, &ev)
		}

	case evChildDone:
		act, have := s.jobs[ev.jobID]
		if !have {
			return
		}
		for handle, value := range ev.result.Outputs {
			act.outputs[handle] = value
			s.propagate(act.st.node.ID, handle, value)
		}
		switch ev.result.Status {
		case StatusSucceeded:
			s.completeJob(act, nil)
		case StatusCancelled:
			s.finishJob(act, job.Cancelled, ev.result.Err)
		default:
			s.finishJob(act, job.Failed, ev.result.Err)
		}

	case evTimeout:
		act, have := s.jobs[ev.jobID]
		if !have {
			return
		}
		err := &JobTimeout{NodeID: act.st.node.ID, Seconds: act.st.node.TimeoutSeconds}
		if act.cancel != nil {
			act.cancel()
		}
		if s.opts.Registry != nil {
			s.opts.Registry.Cancel(ev.jobID)
		}
		s.finishJob(act, job.Failed, err.Error())
	}
}

// completeJob finishes an activation: the success path writes the
// cache and releases identical waiters; failure non-nil is the
// failure path.
func (s *flowRun) completeJob(act *activation, failure *evFinish) {
	if failure != nil {
		s.finishJob(act, job.Failed, failure.errMsg)
		return
	}
	if act.fingerprint != "" && s.opts.Cache != nil {
		blockID := s.blockIDOf(act.st.node)
		if err := s.opts.Cache.Put(act.fingerprint, blockID, act.outputs); err != nil {
			util.Logf("cache put failed: %v", err)
		}
		s.settleFingerprint(act.fingerprint, act.outputs, "")
	}
	s.finishJob(act, job.Succeeded, "")
}

// finishJob releases an activation and moves its node.
func (s *flowRun) finishJob(act *activation, status job.Status, errMsg string) {
	if s.cancelled && status == job.Failed {
		// Jobs torn down by cancellation are cancelled, not failed.
		status = job.Cancelled
	}
	if act.timer != nil {
		act.timer.Stop()
	}
	if act.cancel != nil {
		act.cancel()
	}
	delete(s.jobs, act.jobID)
	act.st.running--
	if act.fingerprint != "" && status != job.Succeeded {
		s.settleFingerprint(act.fingerprint, nil, errMsg)
	}
	switch status {
	case job.Succeeded:
		act.st.fired++
	case job.Failed:
		act.st.failed = true
		act.st.errMsg = errMsg
		if !act.st.node.ContinueOnError {
			s.failed = true
			if s.firstErr == "" {
				s.firstErr = errMsg
			}
		}
	}
	s.opts.Reporter.JobFinished(act.jobID, act.st.node.ID, status, errMsg)
}

// propagate pushes a produced value along every outgoing connection,
// persists remembered targets, and collects flow outputs.
func (s *flowRun) propagate(nodeID, handle string, value interface{}) {
	for _, c := range s.flow.Downstream(nodeID, handle) {
		target := s.nodes[c.TargetNode]
		if target == nil {
			continue
		}
		target.buf.push(c.TargetHandle, value)
		if block := target.node.BlockOf(); block != nil {
			if def := block.InputsDef()[c.TargetHandle]; def != nil && def.Remember {
				s.opts.Remember.Put(s.flow.Path, c.TargetNode, c.TargetHandle, value)
			}
		}
	}
	for flowHandle, sources := range s.flow.OutputsFrom {
		for _, src := range sources {
			if src.NodeID == nodeID && src.OutputHandle == handle {
				s.outputs[flowHandle] = value
			}
		}
	}
}

// sweep fires every node that is ready, in node-id order for
// reproducible logs, then settles terminal states.  Passes repeat
// until one changes nothing, so a node that settles late in the order
// still releases the downstreams that precede it.
func (s *flowRun) sweep() {
	for progress := true; progress; {
		progress = false
		for _, id := range s.order {
			st := s.nodes[id]
			node := st.node
			if st.done || node.Type == manifest.ValueNode {
				continue
			}
			if node.Ignore {
				continue
			}
			for !s.cancelled && st.running < node.Concurrency {
				bundle, ok := s.readyBundle(st)
				if !ok {
					break
				}
				s.activate(st, bundle)
				progress = true
			}
			s.settle(st)
			if st.done {
				progress = true
			}
		}
	}
}

// inputHandleNames unions the block's declared inputs with the
// node's wiring; lazy subflows only have the wiring.
func inputHandleNames(node *manifest.Node) map[string]*manifest.InputHandle {
	names := map[string]*manifest.InputHandle{}
	if block := node.BlockOf(); block != nil {
		for handle, def := range block.InputsDef() {
			names[handle] = def
		}
	}
	for handle := range node.InputsFrom {
		if _, have := names[handle]; !have {
			names[handle] = nil
		}
	}
	return names
}

// readyBundle computes the next activation's input bundle, consuming
// one token per wired handle.  A node re-fires only by consuming at
// least one fresh token.
func (s *flowRun) readyBundle(st *nodeState) (map[string]interface{}, bool) {
	defs := inputHandleNames(st.node)
	states := map[string]handleState{}
	tokens := 0
	for handle, def := range defs {
		_, remembered := s.opts.Remember.Get(s.flow.Path, st.node.ID, handle)
		hs := st.buf.satisfy(handle, def, remembered, s.upstreamsDone(st, handle))
		if hs == handleBlocked {
			return nil, false
		}
		if hs == handleToken {
			tokens++
		}
		states[handle] = hs
	}
	// Re-firing needs at least one fresh token; a node with only
	// literal or flow inputs activates exactly once.
	if 0 < st.attempted && tokens == 0 {
		return nil, false
	}

	bundle := map[string]interface{}{}
	for handle, hs := range states {
		def := defs[handle]
		src := st.node.InputsFrom[handle]
		switch hs {
		case handleToken:
			v, _ := st.buf.take(handle)
			bundle[handle] = v
		case handleLiteral:
			if src != nil && src.Value != nil {
				bundle[handle] = util.Normalize(src.Value.V)
			} else if def != nil && def.Value != nil {
				bundle[handle] = util.Normalize(def.Value.V)
			}
		case handleFlow:
			bundle[handle] = s.inputs[src.FromFlow[0].InputHandle]
		case handleRemember:
			v, _ := s.opts.Remember.Get(s.flow.Path, st.node.ID, handle)
			bundle[handle] = v
		case handleOptional:
			// Left unset.
		}
		if def != nil && def.Remember {
			if v, have := bundle[handle]; have {
				s.opts.Remember.Put(s.flow.Path, st.node.ID, handle, v)
			}
		}
	}
	return bundle, true
}

// upstreamsDone reports whether every live upstream of the handle is
// terminal, i.e. no more tokens can arrive for it.
func (s *flowRun) upstreamsDone(st *nodeState, handle string) bool {
	src := st.node.InputsFrom[handle]
	if src == nil {
		return true
	}
	for _, from := range src.FromNode {
		source := s.nodes[from.NodeID]
		if source == nil {
			continue
		}
		if source.node.Ignore && source.node.Type != manifest.ValueNode {
			continue
		}
		if !source.done {
			return false
		}
	}
	return true
}

// settle decides whether a node is terminal: nothing running, all
// upstreams finished, and no way to fire again.  The firing loop ran
// first, so reaching here with nothing running means the node is not
// currently ready.
func (s *flowRun) settle(st *nodeState) {
	if st.done || 0 < st.running {
		return
	}
	if !s.allUpstreamsDone(st) {
		return
	}
	st.done = true
	switch {
	case st.failed:
		st.status = job.Failed
	case 0 < st.fired:
		st.status = job.Succeeded
	case s.cancelled:
		st.status = job.Cancelled
	default:
		// Never fired and never will: its upstreams terminated
		// without satisfying it.
		st.status = job.Skipped
	}
}

func (s *flowRun) allUpstreamsDone(st *nodeState) bool {
	for handle := range inputHandleNames(st.node) {
		if !s.upstreamsDone(st, handle) {
			return false
		}
	}
	return true
}

// blockIDOf yields the cache identity of the node's block.
func (s *flowRun) blockIDOf(node *manifest.Node) string {
	if node.FlowRef != nil {
		if node.FlowRef.Resolved != nil {
			return node.FlowRef.Resolved.Identifier
		}
		return node.FlowRef.Lazy.Path
	}
	if block := node.BlockOf(); block != nil {
		return block.BlockID()
	}
	return node.ID
}

// settleFingerprint releases nodes that waited on an identical
// in-flight activation.  Success hands them the outputs without a
// second dispatch; failure marks them failed with the same error.
func (s *flowRun) settleFingerprint(fp string, outputs map[string]interface{}, errMsg string) {
	delete(s.fpInflight, fp)
	waiters := s.fpWaiters[fp]
	delete(s.fpWaiters, fp)
	for _, st := range waiters {
		st.running--
		if errMsg != "" {
			st.failed = true
			st.errMsg = errMsg
			if !st.node.ContinueOnError {
				s.failed = true
				if s.firstErr == "" {
					s.firstErr = errMsg
				}
			}
			continue
		}
		for handle, value := range outputs {
			s.propagate(st.node.ID, handle, value)
		}
		st.fired++
	}
}

// activate starts one job for the node with the given bundle.
func (s *flowRun) activate(st *nodeState, bundle map[string]interface{}) {
	node := st.node
	jobID := job.NewJobID()
	st.attempted++

	// Cache: root-flow scope only.
	fingerprint := ""
	if s.opts.Cache != nil && s.stack.IsRoot() {
		fingerprint = cache.Fingerprint(s.blockIDOf(node), bundle)
		if outputs, hit := s.opts.Cache.Get(fingerprint); hit {
			s.opts.Reporter.Emit("job.cached", jobID, node.ID, map[string]interface{}{
				"fingerprint": fingerprint,
			})
			for handle, value := range outputs {
				s.propagate(node.ID, handle, value)
			}
			st.fired++
			return
		}
		if _, inflight := s.fpInflight[fingerprint]; inflight {
			// An identical activation is already dispatched; wait
			// for its outputs instead of firing twice.
			st.running++
			s.fpWaiters[fingerprint] = append(s.fpWaiters[fingerprint], st)
			return
		}
		s.fpInflight[fingerprint] = jobID
	}

	st.running++
	st.status = job.Running
	act := &activation{
		jobID:       jobID,
		st:          st,
		bundle:      bundle,
		fingerprint: fingerprint,
		outputs:     map[string]interface{}{},
	}
	s.jobs[jobID] = act
	s.opts.Reporter.JobStarted(jobID, node.ID, s.blockIDOf(node), s.stack)

	if 0 < node.TimeoutSeconds {
		seconds := node.TimeoutSeconds
		act.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
			s.in <- evTimeout{jobID: jobID}
		})
	}

	switch node.Type {
	case manifest.SubflowNode:
		s.activateSubflow(act)
	case manifest.SlotNode:
		s.activateSlot(act)
	default:
		s.activateTask(act, node.Block)
	}
}

// activateSubflow materialises a lazy reference if needed and runs
// the child flow on its own loop.
func (s *flowRun) activateSubflow(act *activation) {
	node := act.st.node

	if s.opts.maxDepth() <= len(s.stack) {
		err := &RecursionLimitExceeded{NodeID: node.ID, Depth: len(s.stack)}
		s.finishJob(act, job.Failed, err.Error())
		return
	}

	child := node.FlowRef.Resolved
	if node.FlowRef.IsLazy() {
		resolved, err := s.opts.Resolver.ResolveLazy(node.FlowRef)
		if err != nil {
			s.finishJob(act, job.Failed, err.Error())
			return
		}
		child = resolved
	}

	providers := map[string]interface{}{}
	for slotNodeID, block := range node.Slots {
		providers[slotNodeID] = block
	}
	scope := s.scope.Push(job.ScopeFrame{
		Kind:      job.SubflowScope,
		Flow:      child.Path,
		NodeID:    node.ID,
		Providers: providers,
	})
	stack := s.stack.Push(s.flowJobID, s.flow.Path, node.ID)

	ctx, cancel := context.WithCancel(context.Background())
	act.cancel = cancel
	go func() {
		result := runFlow(ctx, s.opts, child, act.bundle, act.jobID, stack, scope)
		s.in <- evChildDone{jobID: act.jobID, result: result}
	}()
}

// activateSlot resolves the provider bound at the nearest enclosing
// scope and dispatches it as a task.
func (s *flowRun) activateSlot(act *activation) {
	provider, have := s.scope.Lookup(act.st.node.ID)
	if !have {
		err := &NoSlotProvider{NodeID: act.st.node.ID}
		s.finishJob(act, job.Failed, err.Error())
		return
	}
	block, is := provider.(manifest.Block)
	if !is {
		err := &NoSlotProvider{NodeID: act.st.node.ID}
		s.finishJob(act, job.Failed, err.Error())
		return
	}
	s.activateTask(act, block)
}

// activateTask dispatches a task block: shell in-process, everything
// else through the executor registry.
func (s *flowRun) activateTask(act *activation, block manifest.Block) {
	task, is := block.(*manifest.TaskBlock)
	if !is || task.Executor == nil {
		s.finishJob(act, job.Failed, "node "+act.st.node.ID+" has no executor")
		return
	}
	if task.Executor.Name == "shell" {
		s.activateShell(act)
		return
	}
	if s.opts.Registry == nil {
		s.finishJob(act, job.Failed, "no executor registry for "+task.Executor.Name)
		return
	}

	id := executor.Identifier{Name: task.Executor.Name}
	if task.Executor.Spawn {
		id.Pkg = task.PackagePath
	}
	jobID := act.jobID
	msg := &executor.InputMessage{
		JobID:     jobID,
		SessionID: s.opts.SessionID,
		Inputs:    act.bundle,
		Cwd:       task.PackagePath,
		Block: &executor.BlockDescriptor{
			Identifier: task.Identifier,
			Entry:      task.Executor.Entry,
			Function:   task.Executor.Function,
			Args:       task.Executor.Args,
		},
	}
	cb := executor.JobCallbacks{
		OnOutput: func(handle string, value interface{}, done bool) {
			s.in <- evOutput{jobID: jobID, handle: handle, value: value, done: done}
		},
		OnLog: func(stream, line string) {
			s.in <- evLog{jobID: jobID, stream: stream, line: line}
		},
		OnFinish: func(status, errMsg string, resultHandles map[string]interface{}) {
			s.in <- evFinish{jobID: jobID, status: status, errMsg: errMsg, outputs: resultHandles}
		},
	}
	go func() {
		if err := s.opts.Registry.Dispatch(id, task.Executor, msg, cb); err != nil {
			s.in <- evFinish{jobID: jobID, status: executor.FinishError, errMsg: err.Error()}
		}
	}()
}

// activateShell runs a shell block on a worker goroutine.
func (s *flowRun) activateShell(act *activation) {
	jobID := act.jobID
	req, err := executor.ShellRequestFromInputs(s.opts.SessionID, jobID, act.bundle)
	if err != nil {
		s.finishJob(act, job.Failed, err.Error())
		return
	}
	if req.Cwd == "" {
		req.Cwd = s.opts.WorkDir
	} else if req.Cwd[0] != '/' {
		// Relative cwd resolves against the session working dir.
		req.Cwd = s.opts.WorkDir + "/" + req.Cwd
	}
	req.OnLog = func(stream, line string) {
		s.in <- evLog{jobID: jobID, stream: stream, line: line}
	}

	ctx, cancel := context.WithCancel(context.Background())
	act.cancel = cancel
	go func() {
		result, err := executor.RunShell(ctx, req)
		outputs := map[string]interface{}{}
		if result != nil {
			outputs["stdout"] = result.Stdout
			outputs["stderr"] = result.Stderr
		}
		if err != nil {
			s.in <- evFinish{jobID: jobID, status: executor.FinishError, errMsg: err.Error(), outputs: outputs}
			return
		}
		s.in <- evFinish{jobID: jobID, status: executor.FinishOK, outputs: outputs}
	}()
}

// startCancel stops new activations and asks every in-flight job to
// stop.
func (s *flowRun) startCancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	util.Logf("flow %s cancelling %d jobs", s.flow.Path, len(s.jobs))
	for jobID, act := range s.jobs {
		if s.opts.Registry != nil {
			s.opts.Registry.Cancel(jobID)
		}
		if act.cancel != nil {
			act.cancel()
		}
	}
}

// forceCancel runs when the grace period expires: every job still in
// flight transitions to cancelled, and every unfinished node follows.
func (s *flowRun) forceCancel() {
	for _, act := range s.jobs {
		if act.timer != nil {
			act.timer.Stop()
		}
		delete(s.jobs, act.jobID)
		act.st.running--
		s.opts.Reporter.JobFinished(act.jobID, act.st.node.ID, job.Cancelled, "")
	}
	for _, st := range s.nodes {
		if !st.done {
			st.done = true
			st.status = job.Cancelled
		}
	}
}
