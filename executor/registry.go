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

// Package executor starts, tracks, and routes jobs to executor
// processes.  One live process per identifier; jobs multiplex onto it
// over the bus.
package executor

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oomol/oocana/bus"
	"github.com/oomol/oocana/job"
	"github.com/oomol/oocana/manifest"
	"github.com/oomol/oocana/report"
	"github.com/oomol/oocana/util"
)

// Executor states.
const (
	StateSpawning = "spawning"
	StateReady    = "ready"
	StateWorking  = "working"
	StateIdle     = "idle"
	StateDead     = "dead"
	StateShutdown = "shutdown"
)

// Defaults.
const (
	DefaultSpawnTimeout     = 30 * time.Second
	DefaultHeartbeatTimeout = 30 * time.Second
	heartbeatCheckPeriod    = 5 * time.Second
)

// JobCallbacks receive a job's streamed protocol messages.
type JobCallbacks struct {
	OnOutput func(handle string, value interface{}, done bool)
	OnLog    func(stream, line string)
	OnFinish func(status, errMsg string, resultHandles map[string]interface{})
}

type inflight struct {
	id Identifier
	cb JobCallbacks
}

// process is one live executor child.
type process struct {
	id    Identifier
	cmd   *exec.Cmd
	ready chan struct{}
	stop  chan struct{}

	mu       sync.Mutex
	state    string
	lastBeat time.Time

	spawnOnce sync.Once
	spawnErr  error
}

func (p *process) setState(s string) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *process) getState() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *process) beat() {
	p.mu.Lock()
	p.lastBeat = time.Now()
	p.mu.Unlock()
}

func (p *process) sinceBeat() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastBeat)
}

// Registry tracks executors for a session.
type Registry struct {
	SessionID        job.SessionID
	Broker           string
	Conn             *bus.Conn
	Reporter         *report.Reporter
	SpawnTimeout     time.Duration
	HeartbeatTimeout time.Duration

	mu        sync.Mutex
	executors map[string]*process
	jobs      map[job.JobID]*inflight
	closed    bool
}

// NewRegistry makes a Registry with default timeouts.
func NewRegistry(sessionID job.SessionID, broker string, conn *bus.Conn, reporter *report.Reporter) *Registry {
	return &Registry{
		SessionID:        sessionID,
		Broker:           broker,
		Conn:             conn,
		Reporter:         reporter,
		SpawnTimeout:     DefaultSpawnTimeout,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		executors:        map[string]*process{},
		jobs:             map[job.JobID]*inflight{},
	}
}

// Dispatch routes a job to the executor with the given identifier,
// spawning it first if needed.  The callbacks run on the bus routing
// goroutine, except that a dead executor's jobs are finished on the
// goroutine that marks it dead.  Dispatch returns once the job is on the wire; results
// stream through the callbacks.
func (r *Registry) Dispatch(id Identifier, spec *manifest.ExecutorSpec, msg *InputMessage, cb JobCallbacks) error {
	p, err := r.ensure(id, spec)
	if err != nil {
		return err
	}

	select {
	case <-p.ready:
	case <-time.After(r.SpawnTimeout):
		r.markDead(p)
		return &SpawnTimeout{Identifier: id}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return &SpawnFailed{Identifier: id, Err: io.ErrClosedPipe}
	}
	r.jobs[msg.JobID] = &inflight{id: id, cb: cb}
	r.mu.Unlock()

	p.setState(StateWorking)
	return r.Conn.Publish(TopicInput(id), msg)
}

// ensure returns the live executor for id, spawning one exactly once
// per identifier.  Spawn is serialised per identifier; dispatch after
// spawn takes no lock beyond the jobs map.
func (r *Registry) ensure(id Identifier, spec *manifest.ExecutorSpec) (*process, error) {
	key := id.String()

	r.mu.Lock()
	p, have := r.executors[key]
	if !have || p.getState() == StateDead {
		p = &process{
			id:    id,
			state: StateSpawning,
			ready: make(chan struct{}),
			stop:  make(chan struct{}),
		}
		r.executors[key] = p
	}
	r.mu.Unlock()

	p.spawnOnce.Do(func() {
		p.spawnErr = r.spawn(p, spec)
	})
	if p.spawnErr != nil {
		return nil, p.spawnErr
	}
	return p, nil
}

// spawn starts the executor child and wires its protocol topics.
//
// Command is "<executor-name>-executor" from PATH unless the block's
// executor descriptor overrides with bin/args.
func (r *Registry) spawn(p *process, spec *manifest.ExecutorSpec) error {
	name := p.id.Name + "-executor"
	var args []string
	if spec != nil && spec.Bin != "" {
		name = spec.Bin
		args = spec.Args
	}

	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"OOCANA_SESSION_ID="+string(r.SessionID),
		"OOCANA_BROKER_URL="+r.Broker,
		"OOCANA_EXECUTOR_IDENTIFIER="+p.id.String(),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnFailed{Identifier: p.id, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnFailed{Identifier: p.id, Err: err}
	}

	if err := r.subscribe(p); err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return &SpawnFailed{Identifier: p.id, Err: err}
	}
	p.cmd = cmd
	p.beat()

	go r.forwardLogs(p.id, "stdout", stdout)
	go r.forwardLogs(p.id, "stderr", stderr)
	go r.watchHeartbeats(p)
	go cmd.Wait()

	util.Logf("Registry.spawn %s pid %d", p.id, cmd.Process.Pid)
	return nil
}

// subscribe wires the executor's topics; messages route to the
// owning job's callbacks by job-id.
func (r *Registry) subscribe(p *process) error {
	prefix := "executor/" + p.id.String() + "/"

	handle := func(topic string, payload []byte) {
		rest := strings.TrimPrefix(topic, prefix)
		parts := strings.SplitN(rest, "/", 2)
		switch parts[0] {
		case "ready":
			p.mu.Lock()
			if p.state == StateSpawning {
				p.state = StateReady
				close(p.ready)
			}
			p.lastBeat = time.Now()
			p.mu.Unlock()
		case "heartbeat":
			p.beat()
		case "output":
			if len(parts) == 2 {
				var msg OutputMessage
				if err := json.Unmarshal(payload, &msg); err != nil {
					return
				}
				if fl := r.job(job.JobID(parts[1])); fl != nil && fl.cb.OnOutput != nil {
					fl.cb.OnOutput(msg.Handle, msg.Value, msg.Done)
				}
			}
		case "log":
			if len(parts) == 2 {
				var msg LogMessage
				if err := json.Unmarshal(payload, &msg); err != nil {
					return
				}
				if fl := r.job(job.JobID(parts[1])); fl != nil && fl.cb.OnLog != nil {
					fl.cb.OnLog(msg.Stream, msg.Line)
				}
			}
		case "finish":
			if len(parts) == 2 {
				var msg FinishMessage
				if err := json.Unmarshal(payload, &msg); err != nil {
					return
				}
				jobID := job.JobID(parts[1])
				fl := r.job(jobID)
				if fl == nil {
					return
				}
				if msg.Status != FinishPartial {
					r.release(jobID, p)
				}
				if fl.cb.OnFinish != nil {
					fl.cb.OnFinish(msg.Status, msg.Error, msg.ResultHandles)
				}
			}
		}
	}

	for _, topic := range []string{
		TopicReady(p.id),
		TopicHeartbeat(p.id),
		prefix + "output/+",
		prefix + "log/+",
		prefix + "finish/+",
	} {
		if err := r.Conn.Subscribe(topic, handle); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) job(jobID job.JobID) *inflight {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[jobID]
}

// release drops a finished job and lets the executor go idle when it
// has no more work.
func (r *Registry) release(jobID job.JobID, p *process) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	busy := false
	for _, fl := range r.jobs {
		if fl.id == p.id {
			busy = true
			break
		}
	}
	r.mu.Unlock()
	if !busy && p.getState() == StateWorking {
		p.setState(StateIdle)
	}
}

// forwardLogs streams a child's own stdout/stderr to the reporter,
// tagged with the identifier.
func (r *Registry) forwardLogs(id Identifier, stream string, pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		if r.Reporter != nil {
			r.Reporter.ExecutorLog(id.String(), stream, scanner.Text())
		}
	}
}

// watchHeartbeats marks the executor dead after missed heartbeats
// and fails its in-flight jobs.
func (r *Registry) watchHeartbeats(p *process) {
	ticker := time.NewTicker(heartbeatCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			state := p.getState()
			if state == StateDead || state == StateShutdown {
				return
			}
			if r.HeartbeatTimeout < p.sinceBeat() {
				r.markDead(p)
				return
			}
		}
	}
}

// markDead transitions an executor to dead, kills the child, and
// fails every in-flight job with Died.
func (r *Registry) markDead(p *process) {
	p.mu.Lock()
	if p.state == StateDead {
		p.mu.Unlock()
		return
	}
	p.state = StateDead
	p.mu.Unlock()
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}

	if p.cmd != nil && p.cmd.Process != nil {
		syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	}

	died := &Died{Identifier: p.id}
	r.mu.Lock()
	var failed []*inflight
	for jobID, fl := range r.jobs {
		if fl.id == p.id {
			failed = append(failed, fl)
			delete(r.jobs, jobID)
		}
	}
	r.mu.Unlock()

	for _, fl := range failed {
		if fl.cb.OnFinish != nil {
			fl.cb.OnFinish(FinishError, died.Error(), nil)
		}
	}
	util.Logf("Registry.markDead %s (%d jobs failed)", p.id, len(failed))
}

// Cancel asks the owning executor to terminate the job.
func (r *Registry) Cancel(jobID job.JobID) {
	fl := r.job(jobID)
	if fl == nil {
		return
	}
	r.Conn.Publish(TopicCancel(fl.id, jobID), map[string]interface{}{})
}

// CancelAll cancels every in-flight job.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	ids := make(map[job.JobID]Identifier, len(r.jobs))
	for jobID, fl := range r.jobs {
		ids[jobID] = fl.id
	}
	r.mu.Unlock()
	for jobID, id := range ids {
		r.Conn.Publish(TopicCancel(id, jobID), map[string]interface{}{})
	}
}

// Shutdown sends shutdown to every executor and reaps children after
// the grace period.
func (r *Registry) Shutdown(grace time.Duration) {
	r.mu.Lock()
	r.closed = true
	procs := make([]*process, 0, len(r.executors))
	for _, p := range r.executors {
		procs = append(procs, p)
	}
	r.mu.Unlock()

	for _, p := range procs {
		if p.getState() == StateDead {
			continue
		}
		r.Conn.Publish(TopicShutdown(p.id), map[string]interface{}{})
	}

	deadline := time.After(grace)
	done := make(chan struct{})
	go func() {
		for _, p := range procs {
			if p.cmd != nil {
				p.cmd.Wait()
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-deadline:
	}

	for _, p := range procs {
		state := p.getState()
		if state == StateDead || state == StateShutdown {
			continue
		}
		p.setState(StateShutdown)
		select {
		case <-p.stop:
		default:
			close(p.stop)
		}
		if p.cmd != nil && p.cmd.Process != nil {
			syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
		}
	}
}
