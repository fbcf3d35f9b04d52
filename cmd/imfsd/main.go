// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command imfsd is the grate host process entry point: it loads
// configuration, starts the shared 3i call bus, constructs a single
// grate, optionally preloads a host directory tree, forks one target
// cage, and waits. The configured grate worker count is not read. Grounded on open_grate.c's main()
// and the teacher's cmd/root.go cobra wiring.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lind-project/lind-wasm-sub000/grate"
	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/config"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
	"github.com/lind-project/lind-wasm-sub000/internal/metrics"
	"github.com/lind-project/lind-wasm-sub000/threei"
	"github.com/lind-project/lind-wasm-sub000/threei/addrspace"
)

var rootCmd = &cobra.Command{
	Use:   "imfsd <cage-binary> [args...]",
	Short: "Run a grate process hosting an in-memory filesystem for one or more cages.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	if err := config.BindFlags(rootCmd.Flags()); err != nil {
		fmt.Fprintln(os.Stderr, "imfsd: bind flags:", err)
		os.Exit(1)
	}
	rootCmd.Flags().String("config", "", "Path to a YAML config file.")
}

func loadConfig() (config.Config, error) {
	var cfg config.Config
	v := viper.GetViper()
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
	}
	if err := config.Decode(v, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		File:     cfg.Log.File,
		Format:   cfg.Log.Format,
		Severity: severityFrom(cfg.Log.Severity),
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(reg))
			logger.Errorf("imfsd: metrics server exited: %v", http.ListenAndServe(cfg.Metrics.Addr, mux))
		}()
	}

	spaces := addrspace.NewRegistry()
	bus := threei.New(spaces, unimplementedBackend)

	const grateCageID = 1
	g := grate.New(grateCageID, bus, spaces, grate.Config{
		IMFS: imfsConfigFrom(cfg),
	}, m)

	for _, hostPath := range cfg.Preload.Paths {
		if err := g.Preload(hostPath, hostPath); err != nil {
			logger.Warnf("imfsd: preload %s failed: %v", hostPath, err)
		}
	}

	const targetCageID = 2
	if err := g.ForkCage(targetCageID, args[0], args[1:]); err != nil {
		return fmt.Errorf("fork cage: %w", err)
	}

	if err := g.Wait(); err != nil {
		logger.Warnf("imfsd: target cage exited with error: %v", err)
	}

	return nil
}

func imfsConfigFrom(cfg config.Config) imfs.Config {
	return imfs.Config{
		MaxNodes: cfg.NodePool.MaxNodes,
		MaxFDs:   cfg.NodePool.MaxFDs,
	}
}

func unimplementedBackend(call threei.Call) (int64, error) {
	logger.Warnf("imfsd: no handler registered for syscall=%d target_cage=%d", call.SyscallNum, call.TargetCage)
	return -int64(errno.ENOSYS.Value()), nil
}

func severityFrom(s string) logger.Severity {
	switch strings.ToLower(s) {
	case "trace":
		return logger.LevelTrace
	case "debug":
		return logger.LevelDebug
	case "warning", "warn":
		return logger.LevelWarning
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
