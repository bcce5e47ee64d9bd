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

// Package session owns the per-run resources: ids, directories, the
// bus connection, the reporter, the executor registry, and the flow
// run itself.
package session

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oomol/oocana/bus"
	"github.com/oomol/oocana/cache"
	"github.com/oomol/oocana/config"
	"github.com/oomol/oocana/executor"
	"github.com/oomol/oocana/job"
	"github.com/oomol/oocana/report"
	"github.com/oomol/oocana/resolver"
	"github.com/oomol/oocana/scheduler"
	"github.com/oomol/oocana/util"
)

// Session states.
const (
	StateInit        = "init"
	StateParsing     = "parsing"
	StateRunning     = "running"
	StateTerminating = "terminating"
	StateDone        = "done"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitFailed    = 1
	ExitConfig    = 2
	ExitCancelled = 130
)

// failedMarker flags a session dir preserved for diagnosis; it is
// swept lazily by a later session.
const failedMarker = "failed"

// Options configure a session.
type Options struct {
	SessionID       string
	Config          *config.Config
	Broker          string
	Verbose         bool
	Debug           bool
	UseCache        bool
	SearchPaths     []string
	ExcludePackages []string
}

// Session is the root of ownership for one run.
type Session struct {
	ID      job.SessionID
	Started time.Time
	WorkDir string

	// Dir is ~/.oocana/session/<id>/, holding session.log,
	// result.json, and cache_meta.json.
	Dir string

	Conn     *bus.Conn
	Reporter *report.Reporter
	Registry *executor.Registry
	Resolver *resolver.Resolver
	Cache    *cache.Store

	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  string
	result *scheduler.FlowResult
	done   chan struct{}
}

// New creates the session directory, connects the bus, and builds
// the collaborators.  Call Close when done with it.
func New(opts *Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}

	id := job.SessionID(opts.SessionID)
	if id == "" {
		id = job.NewSessionID()
	}

	sweepFailedSessions(filepath.Join(cfg.Global.OocanaDir, "session"))

	dir := cfg.SessionDir(string(id))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	workDir, err := os.Getwd()
	if err != nil {
		workDir = dir
	}

	broker := opts.Broker
	if broker == "" {
		broker = cfg.Run.Broker
	}
	conn, err := bus.Dial(broker, bus.SessionClientID(string(id)))
	if err != nil {
		return nil, err
	}

	var reporterConn *bus.Conn
	if cfg.Run.Reporter {
		reporterConn = conn
	}
	reporter, err := report.New(id, filepath.Join(dir, "session.log"), reporterConn)
	if err != nil {
		conn.Close(100 * time.Millisecond)
		return nil, err
	}
	reporter.Verbose = opts.Verbose

	var store *cache.Store
	if opts.UseCache {
		store, err = cache.Open(cfg.CacheDir())
		if err != nil {
			reporter.Close()
			conn.Close(100 * time.Millisecond)
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		Started:  time.Now(),
		WorkDir:  workDir,
		Dir:      dir,
		Conn:     conn,
		Reporter: reporter,
		Registry: executor.NewRegistry(id, broker, conn, reporter),
		Resolver: resolver.New(cfg.SearchPaths(opts.SearchPaths), append(opts.ExcludePackages, cfg.Run.ExcludePackages...)),
		Cache:    store,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateInit,
		done:     make(chan struct{}),
	}
	return s, nil
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	util.Logf("session %s -> %s", s.ID, state)
}

// State returns the session lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubmitFlow parses and runs the flow at the given path (a flow dir
// or manifest file) and returns the process exit status.
func (s *Session) SubmitFlow(path string, inputs map[string]interface{}) int {
	defer close(s.done)

	s.setState(StateParsing)
	flow, err := s.Resolver.ResolveRoot(path)
	if err != nil {
		// Manifest errors are fatal: the session fails before any
		// job runs.
		s.Reporter.Emit("session.error", "", "", map[string]interface{}{
			"error": err.Error(),
		})
		s.setState(StateDone)
		s.Reporter.SessionFinished("failed")
		s.preserveForDiagnosis()
		return ExitConfig
	}
	for _, d := range s.Resolver.Diagnostics {
		s.Reporter.Emit("session."+d.Level, "", "", map[string]interface{}{
			"path":    d.Path,
			"message": d.Message,
		})
	}

	s.setState(StateRunning)
	s.Reporter.SessionStarted()

	result := scheduler.Run(s.ctx, &scheduler.Options{
		SessionID: s.ID,
		Reporter:  s.Reporter,
		Registry:  s.Registry,
		Resolver:  s.Resolver,
		Cache:     s.Cache,
		Remember:  scheduler.NewRememberStore(),
		WorkDir:   s.WorkDir,
	}, flow, inputs)

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	s.writeResult(result)
	s.snapshotCache()

	s.setState(StateDone)
	s.Reporter.SessionFinished(result.Status)

	switch result.Status {
	case scheduler.StatusSucceeded:
		return ExitOK
	case scheduler.StatusCancelled:
		return ExitCancelled
	default:
		s.preserveForDiagnosis()
		return ExitFailed
	}
}

// Cancel signals the run to stop.  Never reported as failure.
func (s *Session) Cancel() {
	s.setState(StateTerminating)
	s.cancel()
}

// Wait blocks until SubmitFlow finishes.
func (s *Session) Wait() *scheduler.FlowResult {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Result returns the flow result, or nil while running.
func (s *Session) Result() *scheduler.FlowResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// writeResult persists the final flow output bundle.
func (s *Session) writeResult(result *scheduler.FlowResult) {
	js, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		util.Logf("session %s result marshal: %v", s.ID, err)
		return
	}
	path := filepath.Join(s.Dir, "result.json")
	if err := ioutil.WriteFile(path, js, 0644); err != nil {
		util.Logf("session %s result write: %v", s.ID, err)
	}
}

// snapshotCache writes the cache index snapshot beside the log.
func (s *Session) snapshotCache() {
	if s.Cache == nil {
		return
	}
	path := filepath.Join(s.Dir, "cache_meta.json")
	if err := s.Cache.SnapshotMeta(path); err != nil {
		util.Logf("session %s cache snapshot: %v", s.ID, err)
	}
}

// preserveForDiagnosis marks the session dir so a later session
// sweeps it.
func (s *Session) preserveForDiagnosis() {
	marker := filepath.Join(s.Dir, failedMarker)
	ioutil.WriteFile(marker, []byte(s.Started.Format(time.RFC3339)), 0644)
}

// sweepFailedSessions lazily removes session dirs that a failed run
// left behind.
func sweepFailedSessions(sessionRoot string) {
	entries, err := ioutil.ReadDir(sessionRoot)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(sessionRoot, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, failedMarker)); err == nil {
			os.RemoveAll(dir)
			util.Logf("swept failed session dir %s", dir)
		}
	}
}

// Close releases everything the session owns, on every exit path.
func (s *Session) Close() {
	s.Registry.Shutdown(5 * time.Second)
	s.snapshotCache()
	if s.Cache != nil {
		s.Cache.Close()
	}
	s.Reporter.Close()
	s.Conn.Close(200 * time.Millisecond)
}
