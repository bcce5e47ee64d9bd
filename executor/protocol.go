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

package executor

import (
	"strings"

	"github.com/oomol/oocana/job"
)

// Identifier keys a live executor process: the executor name plus an
// optional package qualifier for executors spawned per package.
type Identifier struct {
	Name string
	Pkg  string
}

// String renders the identifier as a single topic-safe token.
func (id Identifier) String() string {
	if id.Pkg == "" {
		return id.Name
	}
	return id.Name + "-" + strings.Replace(id.Pkg, "/", "_", -1)
}

// Topics of the remote-executor protocol.  Payloads are JSON; unknown
// keys are ignored on receipt.

func TopicInput(id Identifier) string {
	return "executor/" + id.String() + "/input"
}

func TopicReady(id Identifier) string {
	return "executor/" + id.String() + "/ready"
}

func TopicHeartbeat(id Identifier) string {
	return "executor/" + id.String() + "/heartbeat"
}

func TopicOutput(id Identifier, jobID job.JobID) string {
	return "executor/" + id.String() + "/output/" + string(jobID)
}

func TopicLog(id Identifier, jobID job.JobID) string {
	return "executor/" + id.String() + "/log/" + string(jobID)
}

func TopicFinish(id Identifier, jobID job.JobID) string {
	return "executor/" + id.String() + "/finish/" + string(jobID)
}

func TopicCancel(id Identifier, jobID job.JobID) string {
	return "executor/" + id.String() + "/cancel/" + string(jobID)
}

func TopicShutdown(id Identifier) string {
	return "executor/" + id.String() + "/shutdown"
}

// InputMessage is core → executor: run a block.
type InputMessage struct {
	JobID     job.JobID              `json:"job_id"`
	Block     *BlockDescriptor       `json:"block"`
	Inputs    map[string]interface{} `json:"inputs"`
	Env       map[string]string      `json:"env,omitempty"`
	Cwd       string                 `json:"cwd,omitempty"`
	SessionID job.SessionID          `json:"session_id"`
}

// BlockDescriptor is the executor's view of a task block.
type BlockDescriptor struct {
	Identifier string   `json:"identifier"`
	Entry      string   `json:"entry,omitempty"`
	Function   string   `json:"function,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// ReadyMessage is executor → core on startup.
type ReadyMessage struct {
	Pid int `json:"pid"`
}

// HeartbeatMessage is executor → core, every 5 s.
type HeartbeatMessage struct {
	Ts int64 `json:"ts"`
}

// OutputMessage is executor → core, streamed per output handle.
type OutputMessage struct {
	Handle string      `json:"handle"`
	Value  interface{} `json:"value"`
	Done   bool        `json:"done,omitempty"`
}

// LogMessage is executor → core, one line of block output.
type LogMessage struct {
	Stream string `json:"stream"`
	Line   string `json:"line"`
}

// Finish statuses.
const (
	FinishOK      = "ok"
	FinishError   = "error"
	FinishPartial = "partial"
)

// FinishMessage is executor → core at job termination (or at the end
// of a partial phase).
type FinishMessage struct {
	Status        string                 `json:"status"`
	Error         string                 `json:"error,omitempty"`
	ResultHandles map[string]interface{} `json:"result_handles,omitempty"`
}
