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

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oomol/oocana/config"
	"github.com/oomol/oocana/session"
	"github.com/oomol/oocana/tools"
	"github.com/oomol/oocana/util"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		sessionID       string
		verbose         bool
		debug           bool
		useCache        bool
		broker          string
		envFile         string
		bindPathFile    string
		configPath      string
		searchPaths     []string
		excludePackages []string
	)

	cmd := &cobra.Command{
		Use:   "run <flow-dir-or-file>",
		Short: "Run a flow to termination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Init(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "oocana: %s\n", err)
				os.Exit(session.ExitConfig)
			}

			if envFile == "" {
				envFile = cfg.Global.EnvFile
			}
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					fmt.Fprintf(os.Stderr, "oocana: %s\n", err)
					os.Exit(session.ExitConfig)
				}
			}
			if bindPathFile == "" {
				bindPathFile = cfg.Global.BindPathFile
			}
			if bindPathFile != "" {
				// The layer tooling, an external collaborator,
				// reads this.
				os.Setenv("OOCANA_BIND_PATH_FILE", bindPathFile)
			}

			if debug || cfg.Run.Debug {
				util.Logging = true
			}

			s, err := session.New(&session.Options{
				SessionID:       sessionID,
				Config:          cfg,
				Broker:          broker,
				Verbose:         verbose,
				Debug:           debug,
				UseCache:        useCache,
				SearchPaths:     searchPaths,
				ExcludePackages: excludePackages,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "oocana: %s\n", err)
				os.Exit(session.ExitConfig)
			}
			defer s.Close()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				s.Cancel()
			}()

			if debug {
				dumpFlow(s, args[0])
			}

			code := s.SubmitFlow(args[0], nil)
			// os.Exit skips deferred calls.
			s.Close()
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (generated when empty)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "mirror session log to stderr")
	cmd.Flags().BoolVar(&debug, "debug", false, "internal tracing and a flow dump")
	cmd.Flags().BoolVar(&useCache, "use-cache", false, "reuse cached activations at root scope")
	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker host:port")
	cmd.Flags().StringVar(&envFile, "env-file", "", "K=V lines injected into executor environments")
	cmd.Flags().StringVar(&bindPathFile, "bind-path-file", "", "bind path file for the layer tooling")
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file path")
	cmd.Flags().StringSliceVar(&searchPaths, "search-paths", nil, "package search paths")
	cmd.Flags().StringSliceVar(&excludePackages, "exclude-packages", nil, "packages invisible to resolution")

	return cmd
}

// loadEnvFile reads K=V lines into the process environment; spawned
// executors inherit them.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		os.Setenv(line[:eq], line[eq+1:])
	}
	return scanner.Err()
}

// dumpFlow prints an analysis and a Mermaid graph of the parsed flow
// to stderr before running it.
func dumpFlow(s *session.Session, path string) {
	flow, err := s.Resolver.ResolveRoot(path)
	if err != nil {
		return
	}
	if a, err := tools.Analyze(flow); err == nil {
		fmt.Fprintf(os.Stderr, "flow analysis: %s\n", util.JS(a))
	}
	tools.Mermaid(flow, os.Stderr, nil)
}
