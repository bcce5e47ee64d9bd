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

import "strconv"

// RecursionLimitExceeded occurs when subflow nesting at runtime,
// lazy or not, goes deeper than the configured limit.
type RecursionLimitExceeded struct {
	NodeID string
	Depth  int
}

func (e *RecursionLimitExceeded) Error() string {
	return "node " + e.NodeID + " exceeds runtime recursion depth " + strconv.Itoa(e.Depth)
}

// NoSlotProvider occurs when a slot node has no provider bound
// anywhere on the scope stack.
type NoSlotProvider struct {
	NodeID string
}

func (e *NoSlotProvider) Error() string {
	return "no provider bound for slot node " + e.NodeID
}

// JobTimeout occurs when a node's per-activation timeout fires.
type JobTimeout struct {
	NodeID  string
	Seconds int
}

func (e *JobTimeout) Error() string {
	return "node " + e.NodeID + " timed out after " + strconv.Itoa(e.Seconds) + "s"
}
