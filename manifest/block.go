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

// Block is the capability interface shared by the three block kinds.
// The scheduler only needs identity and the two handle sets; anything
// more specific goes through a type switch.
type Block interface {
	BlockID() string
	InputsDef() InputHandles
	OutputsDef() OutputHandles
}

// ExecutorSpec describes how a task block's code is hosted.
type ExecutorSpec struct {
	Name     string   `yaml:"name"`
	Entry    string   `yaml:"entry"`
	Function string   `yaml:"function"`
	Bin      string   `yaml:"bin"`
	Args     []string `yaml:"args"`
	Spawn    bool     `yaml:"spawn"`
}

// TaskBlock is a reusable computational unit with an executor.
type TaskBlock struct {
	Identifier string
	Executor   *ExecutorSpec
	Inputs     InputHandles
	Outputs    OutputHandles

	// PackagePath is the directory of the enclosing package, used
	// as the executor's working dir.
	PackagePath string
}

func (b *TaskBlock) BlockID() string           { return b.Identifier }
func (b *TaskBlock) InputsDef() InputHandles   { return b.Inputs }
func (b *TaskBlock) OutputsDef() OutputHandles { return b.Outputs }

// SlotBlock is an abstract placeholder within a subflow.  It carries
// only handle definitions; a concrete provider is bound at use-site.
type SlotBlock struct {
	Identifier string
	Inputs     InputHandles
	Outputs    OutputHandles
}

func (b *SlotBlock) BlockID() string           { return b.Identifier }
func (b *SlotBlock) InputsDef() InputHandles   { return b.Inputs }
func (b *SlotBlock) OutputsDef() OutputHandles { return b.Outputs }

// ServiceBlock is a member block of a service manifest.  The scheduler
// treats it as a task block whose executor is shared by all members of
// the service, so resolution produces TaskBlocks directly; this type
// only exists between parsing and resolution.
type ServiceBlock struct {
	Name    string
	Inputs  InputHandles
	Outputs OutputHandles
}
