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

// Package config loads process-wide configuration.  Configuration is
// immutable after load: Init once, then hand out the pointer.
package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oomol/oocana/util"

	"github.com/BurntSushi/toml"
	"github.com/titanous/json5"
)

// Error is a configuration problem.  Fatal: the session fails before
// any job runs, with exit code 2.
type Error struct {
	Path   string
	Detail string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Detail
	}
	return "config " + e.Path + ": " + e.Detail
}

// Global is process-wide configuration.
type Global struct {
	StoreDir     string   `toml:"store_dir" json:"store_dir"`
	OocanaDir    string   `toml:"oocana_dir" json:"oocana_dir"`
	EnvFile      string   `toml:"env_file" json:"env_file"`
	BindPathFile string   `toml:"bind_path_file" json:"bind_path_file"`
	SearchPaths  []string `toml:"search_paths" json:"search_paths"`
}

// Extra holds run options that always apply last.
type Extra struct {
	SearchPaths []string `toml:"search_paths" json:"search_paths"`
}

// Run is per-run configuration.
type Run struct {
	Broker          string   `toml:"broker" json:"broker"`
	ExcludePackages []string `toml:"exclude_packages" json:"exclude_packages"`
	Reporter        bool     `toml:"reporter" json:"reporter"`
	Debug           bool     `toml:"debug" json:"debug"`
	Extra           Extra    `toml:"extra" json:"extra"`
}

// Config is the full configuration tree.
type Config struct {
	Global Global `toml:"global" json:"global"`
	Run    Run    `toml:"run" json:"run"`

	// RegistryStoreFile comes only from OOMOL_REGISTRY_STORE_FILE.
	RegistryStoreFile string `toml:"-" json:"-"`
}

const DefaultBroker = "127.0.0.1:47688"

func defaults() *Config {
	return &Config{
		Global: Global{
			StoreDir:  "~/.oomol-studio/oocana",
			OocanaDir: "~/.oocana",
		},
		Run: Run{
			Broker: DefaultBroker,
		},
	}
}

var (
	initOnce sync.Once
	loaded   *Config
	loadErr  error
)

// Init loads configuration once for the process.  An empty path
// probes ~/.oocana/config.{toml,json,json5}.
func Init(path string) (*Config, error) {
	initOnce.Do(func() {
		loaded, loadErr = Load(path)
	})
	return loaded, loadErr
}

// Get returns the configuration loaded by Init, or defaults when
// Init was never called.
func Get() *Config {
	if loaded == nil {
		c := defaults()
		c.expand()
		return c
	}
	return loaded
}

// Load reads, defaults, and expands a configuration.  Unlike Init,
// Load does not memoize.
func Load(path string) (*Config, error) {
	c := defaults()

	if path == "" {
		home := util.ExpandHome("~/.oocana")
		for _, base := range []string{"config.toml", "config.json", "config.json5"} {
			candidate := filepath.Join(home, base)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, &Error{Path: path, Detail: err.Error()}
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(bs, c); err != nil {
				return nil, &Error{Path: path, Detail: err.Error()}
			}
		case ".json":
			if err := json.Unmarshal(bs, c); err != nil {
				return nil, &Error{Path: path, Detail: err.Error()}
			}
		case ".json5":
			if err := json5.Unmarshal(bs, c); err != nil {
				return nil, &Error{Path: path, Detail: err.Error()}
			}
		default:
			return nil, &Error{Path: path, Detail: "unsupported config format"}
		}
	}

	// Environment overrides.
	if v := os.Getenv("OOCANA_ENV_FILE"); v != "" {
		c.Global.EnvFile = v
	}
	if v := os.Getenv("OOCANA_BIND_PATH_FILE"); v != "" {
		c.Global.BindPathFile = v
	}
	c.RegistryStoreFile = os.Getenv("OOMOL_REGISTRY_STORE_FILE")

	c.expand()
	return c, nil
}

func (c *Config) expand() {
	c.Global.StoreDir = util.ExpandHome(c.Global.StoreDir)
	c.Global.OocanaDir = util.ExpandHome(c.Global.OocanaDir)
	c.Global.EnvFile = util.ExpandHome(c.Global.EnvFile)
	c.Global.BindPathFile = util.ExpandHome(c.Global.BindPathFile)
	c.Global.SearchPaths = expandAll(c.Global.SearchPaths)
	c.Run.ExcludePackages = expandAll(c.Run.ExcludePackages)
	c.Run.Extra.SearchPaths = expandAll(c.Run.Extra.SearchPaths)
}

func expandAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = util.ExpandHome(p)
	}
	return out
}

// SearchPaths merges the global search paths, any paths given on the
// command line, and the run extras, which always come last.
func (c *Config) SearchPaths(cli []string) []string {
	var out []string
	out = append(out, c.Global.SearchPaths...)
	out = append(out, cli...)
	out = append(out, c.Run.Extra.SearchPaths...)
	return out
}

// SessionDir is where a session keeps its log, result, and cache
// snapshot.
func (c *Config) SessionDir(sessionID string) string {
	return filepath.Join(c.Global.OocanaDir, "session", sessionID)
}

// CacheDir is where cached output bundles live.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Global.OocanaDir, "cache")
}
