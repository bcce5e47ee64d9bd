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

package manifest

// These errors are user errors, not internal errors: something in the
// manifests (or in how they refer to each other) is wrong.

// NotFound occurs when a block reference has no resolvable manifest
// file.
type NotFound struct {
	Ref string
}

func (e *NotFound) Error() string {
	return `no manifest found for "` + e.Ref + `"`
}

// Invalid occurs when a manifest file parses but violates the schema.
type Invalid struct {
	Path   string
	Detail string
}

func (e *Invalid) Error() string {
	return `manifest "` + e.Path + `" invalid: ` + e.Detail
}

// BadReference occurs when wiring names a handle or node-id that
// doesn't exist.
type BadReference struct {
	Ref    string
	Detail string
}

func (e *BadReference) Error() string {
	return `reference "` + e.Ref + `" invalid: ` + e.Detail
}
