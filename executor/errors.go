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

import "strconv"

// SpawnFailed occurs when an executor process can't be started.
type SpawnFailed struct {
	Identifier Identifier
	Err        error
}

func (e *SpawnFailed) Error() string {
	return "spawn of executor " + e.Identifier.String() + " failed: " + e.Err.Error()
}

// SpawnTimeout occurs when a spawned executor never says ready.
type SpawnTimeout struct {
	Identifier Identifier
}

func (e *SpawnTimeout) Error() string {
	return "executor " + e.Identifier.String() + " did not become ready in time"
}

// Died occurs when an executor misses heartbeats; its in-flight jobs
// fail with this error.
type Died struct {
	Identifier Identifier
}

func (e *Died) Error() string {
	return "executor " + e.Identifier.String() + " died"
}

// ShellExit occurs when a shell block's command exits non-zero.
type ShellExit struct {
	Code int
}

func (e *ShellExit) Error() string {
	return "shell command exited with code " + strconv.Itoa(e.Code)
}
