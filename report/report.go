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

// Package report emits structured lifecycle events for a session.
//
// Events always go to the session log; with a bus connection they are
// mirrored to report/<session-id>; with Verbose they are mirrored to
// stderr.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oomol/oocana/bus"
	"github.com/oomol/oocana/job"
)

// Event is one reporter record.  Seq is a per-session total order.
type Event struct {
	Seq       int64                  `json:"seq"`
	Ts        int64                  `json:"ts"`
	Type      string                 `json:"type"`
	SessionID job.SessionID          `json:"session_id"`
	JobID     job.JobID              `json:"job_id,omitempty"`
	NodeID    string                 `json:"node_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Reporter serialises events and hands out sequence numbers.
type Reporter struct {
	SessionID job.SessionID
	Verbose   bool

	mu   sync.Mutex
	seq  int64
	file *os.File
	conn *bus.Conn
}

// New opens the session log at path.  conn may be nil for a purely
// local reporter.
func New(sessionID job.SessionID, path string, conn *bus.Conn) (*Reporter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		SessionID: sessionID,
		file:      file,
		conn:      conn,
	}, nil
}

// Topic is the bus topic events are mirrored to.
func (r *Reporter) Topic() string {
	return "report/" + string(r.SessionID)
}

// Emit records an event.  Events are totally ordered by Seq.
func (r *Reporter) Emit(typ string, jobID job.JobID, nodeID string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := Event{
		Seq:       r.seq,
		Ts:        time.Now().UnixMilli(),
		Type:      typ,
		SessionID: r.SessionID,
		JobID:     jobID,
		NodeID:    nodeID,
		Data:      data,
	}
	js, err := json.Marshal(&e)
	if err != nil {
		// An unmarshalable value somewhere in data; report what we can.
		js = []byte(fmt.Sprintf(`{"seq":%d,"type":%q,"error":%q}`, e.Seq, typ, err.Error()))
	}

	if r.file != nil {
		r.file.Write(append(js, '\n'))
	}
	if r.Verbose {
		fmt.Fprintf(os.Stderr, "%s\n", js)
	}
	if r.conn != nil {
		r.conn.Publish(r.Topic(), js)
	}
}

// SessionStarted, SessionFinished, FlowStarted, FlowFinished,
// JobStarted, JobFinished, and ExecutorLog are the event vocabulary
// the scheduler and registry use.

func (r *Reporter) SessionStarted() {
	r.Emit("session.started", "", "", nil)
}

func (r *Reporter) SessionFinished(status string) {
	r.Emit("session.finished", "", "", map[string]interface{}{"status": status})
}

func (r *Reporter) FlowStarted(flowJobID job.JobID, flow string) {
	r.Emit("flow.started", flowJobID, "", map[string]interface{}{"flow": flow})
}

func (r *Reporter) FlowFinished(flowJobID job.JobID, flow, status string) {
	r.Emit("flow.finished", flowJobID, "", map[string]interface{}{
		"flow":   flow,
		"status": status,
	})
}

func (r *Reporter) JobStarted(jobID job.JobID, nodeID, block string, stack job.Stack) {
	r.Emit("job.started", jobID, nodeID, map[string]interface{}{
		"block": block,
		"stack": stack,
	})
}

func (r *Reporter) JobFinished(jobID job.JobID, nodeID string, status job.Status, errMsg string) {
	data := map[string]interface{}{"status": string(status)}
	if errMsg != "" {
		// Block-reported errors are preserved verbatim.
		data["error"] = errMsg
	}
	r.Emit("job.finished", jobID, nodeID, data)
}

func (r *Reporter) ExecutorLog(identifier, stream, line string) {
	r.Emit("executor.log", "", "", map[string]interface{}{
		"identifier": identifier,
		"stream":     stream,
		"line":       line,
	})
}

// Seq returns the last sequence number handed out.
func (r *Reporter) Seq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Close closes the session log.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
