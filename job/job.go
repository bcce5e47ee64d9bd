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

// Package job has the small shared identifiers and records that tie a
// session, its flows, and their block activations together.
package job

import (
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one top-level run.
type SessionID string

// NewSessionID generates a random SessionID.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// JobID identifies one activation of a node.  Unique within a
// session.
type JobID string

// NewJobID generates a random JobID.
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

// Status is the lifecycle state of a job.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
	Skipped   Status = "skipped"
)

// Terminal reports whether a job in this status will never change
// status again.
func (s Status) Terminal() bool {
	switch s {
	case Succeeded, Failed, Cancelled, Skipped:
		return true
	}
	return false
}

// StackLevel is one ancestor subflow instance on the path from the
// root flow down to a job's own flow.
type StackLevel struct {
	FlowJobID JobID  `json:"flow_job_id"`
	Flow      string `json:"flow"`
	NodeID    string `json:"node_id"`
}

// Stack is the ancestor subflow-node path from the root flow to the
// flow that owns a job.  A Stack is never mutated after creation;
// Push copies.
type Stack []StackLevel

// Push returns a new Stack with one more level.
func (s Stack) Push(flowJobID JobID, flow, nodeID string) Stack {
	next := make(Stack, 0, len(s)+1)
	next = append(next, s...)
	return append(next, StackLevel{FlowJobID: flowJobID, Flow: flow, NodeID: nodeID})
}

// IsRoot reports whether the stack belongs to the root flow.
func (s Stack) IsRoot() bool {
	return len(s) == 0
}

// Job is one activation of a node.
type Job struct {
	ID      JobID                  `json:"job_id"`
	NodeID  string                 `json:"node_id"`
	Stack   Stack                  `json:"stack,omitempty"`
	Inputs  map[string]interface{} `json:"inputs,omitempty"`
	Status  Status                 `json:"status"`
	Started time.Time              `json:"started,omitempty"`
	Ended   time.Time              `json:"ended,omitempty"`
	Err     string                 `json:"error,omitempty"`
}
