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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/oomol/oocana/job"
)

// ShellRequest is one activation of a shell-typed block.
//
// The block's inputs: "command" (required), "cwd" (optional), and
// "envs", a comma-separated list of K=V pairs.  Values may contain
// "="; commas are separators and cannot be escaped; malformed pairs
// are dropped silently.
type ShellRequest struct {
	SessionID job.SessionID
	JobID     job.JobID
	Command   string
	Cwd       string
	Envs      string

	// OnLog receives stdout/stderr lines as they stream.
	OnLog func(stream, line string)
}

// ShellResult carries the block's two outputs.
type ShellResult struct {
	Stdout string
	Stderr string
}

// ShellRequestFromInputs pulls a ShellRequest out of an input bundle.
func ShellRequestFromInputs(sessionID job.SessionID, jobID job.JobID, inputs map[string]interface{}) (*ShellRequest, error) {
	command, is := inputs["command"].(string)
	if !is || command == "" {
		return nil, fmt.Errorf("shell block needs a string input %q", "command")
	}
	req := &ShellRequest{
		SessionID: sessionID,
		JobID:     jobID,
		Command:   command,
	}
	if cwd, is := inputs["cwd"].(string); is {
		req.Cwd = cwd
	}
	if envs, is := inputs["envs"].(string); is {
		req.Envs = envs
	}
	return req, nil
}

// ParseEnvs splits a comma-separated K=V list.  A pair without "="
// or with an empty key is dropped.
func ParseEnvs(envs string) []string {
	if envs == "" {
		return nil
	}
	var out []string
	for _, pair := range strings.Split(envs, ",") {
		pair = strings.TrimSpace(pair)
		eq := strings.Index(pair, "=")
		if eq <= 0 {
			continue
		}
		out = append(out, pair)
	}
	return out
}

// RunShell executes the request via `sh -c` and accumulates stdout
// and stderr line by line.  The subprocess gets its own process
// group; cancelling ctx kills the whole group.
func RunShell(ctx context.Context, req *ShellRequest) (*ShellResult, error) {
	cmd := exec.Command("sh", "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Env = append(os.Environ(), ParseEnvs(req.Envs)...)
	cmd.Env = append(cmd.Env,
		"OOCANA_SESSION_ID="+string(req.SessionID),
		"OOCANA_JOB_ID="+string(req.JobID),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Negative pid signals the process group.
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		case <-killed:
		}
	}()

	result := &ShellResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	collect := func(stream string, r *bufio.Scanner, into *string) {
		defer wg.Done()
		for r.Scan() {
			line := r.Text()
			if req.OnLog != nil {
				req.OnLog(stream, line)
			}
			mu.Lock()
			*into += line + "\n"
			mu.Unlock()
		}
	}
	wg.Add(2)
	go collect("stdout", bufio.NewScanner(stdout), &result.Stdout)
	go collect("stderr", bufio.NewScanner(stderr), &result.Stderr)
	wg.Wait()

	err = cmd.Wait()
	close(killed)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if err != nil {
		if exit, is := err.(*exec.ExitError); is {
			return result, &ShellExit{Code: exit.ExitCode()}
		}
		return result, err
	}
	return result, nil
}
