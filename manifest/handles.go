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

// A Value wraps a literal from a manifest so that "no value at all"
// (a nil *Value) is distinct from an explicit null (a non-nil Value
// with a nil V).  YAML makes this distinction matter: a handle with
// "value:" and no content carries an explicit null.
type Value struct {
	V interface{}
}

// NewValue wraps v.
func NewValue(v interface{}) *Value {
	return &Value{V: v}
}

// InputHandle is a named input port on a block.
type InputHandle struct {
	Handle     string
	Value      *Value
	JSONSchema interface{}
	Nullable   bool
	Required   bool
	Remember   bool
	Additional bool
	Cacheable  bool
}

// HasDefault reports whether this input can be satisfied without any
// upstream: either a literal value is present or the handle is
// nullable (which behaves as an explicit null default).
func (h *InputHandle) HasDefault() bool {
	return h.Value != nil || h.Nullable
}

// rawInputHandle mirrors the manifest wire form of an input handle.
type rawInputHandle struct {
	Handle     string      `yaml:"handle"`
	Value      interface{} `yaml:"value"`
	JSONSchema interface{} `yaml:"json_schema"`
	Nullable   bool        `yaml:"nullable"`
	Required   bool        `yaml:"required"`
	Remember   bool        `yaml:"remember"`
	Additional bool        `yaml:"is_additional"`
	Cacheable  bool        `yaml:"cacheable"`
}

// UnmarshalYAML decodes an input handle, preserving the difference
// between a missing "value" key and an explicit null.  A nullable
// handle with no "value" key gets an explicit null, so it is
// satisfiable without an upstream.
func (h *InputHandle) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawInputHandle
	if err := unmarshal(&raw); err != nil {
		return err
	}
	var keys map[string]interface{}
	if err := unmarshal(&keys); err != nil {
		return err
	}
	h.Handle = raw.Handle
	h.JSONSchema = raw.JSONSchema
	h.Nullable = raw.Nullable
	h.Required = raw.Required
	h.Remember = raw.Remember
	h.Additional = raw.Additional
	h.Cacheable = raw.Cacheable
	if _, have := keys["value"]; have {
		h.Value = NewValue(raw.Value)
	} else if raw.Nullable {
		h.Value = NewValue(nil)
	}
	return nil
}

// OutputHandle is a named output port on a block.
type OutputHandle struct {
	Handle     string      `yaml:"handle"`
	JSONSchema interface{} `yaml:"json_schema"`
	Additional bool        `yaml:"is_additional"`
	Cacheable  bool        `yaml:"cacheable"`
}

// InputHandles keys a handle list by handle name.
type InputHandles map[string]*InputHandle

// OutputHandles keys a handle list by handle name.
type OutputHandles map[string]*OutputHandle

// ToInputHandles indexes the given handles by name.
func ToInputHandles(defs []*InputHandle) InputHandles {
	if defs == nil {
		return nil
	}
	hs := make(InputHandles, len(defs))
	for _, def := range defs {
		hs[def.Handle] = def
	}
	return hs
}

// ToOutputHandles indexes the given handles by name.
func ToOutputHandles(defs []*OutputHandle) OutputHandles {
	if defs == nil {
		return nil
	}
	hs := make(OutputHandles, len(defs))
	for _, def := range defs {
		hs[def.Handle] = def
	}
	return hs
}
