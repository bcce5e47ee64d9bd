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

package util

import "fmt"

// Normalize rewrites a YAML-decoded value into JSON-encodable form:
// map[interface{}]interface{} becomes map[string]interface{},
// recursively.  Values that are already JSON-shaped pass through.
func Normalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			m[fmt.Sprintf("%v", k)] = Normalize(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			m[k] = Normalize(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(vv))
		for i, val := range vv {
			s[i] = Normalize(val)
		}
		return s
	}
	return v
}
