// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package config declares this runtime's configuration surface and wires
// it to spf13/cobra flags plus an optional spf13/viper-backed YAML file,
// in the style of gcsfuse's cfg package (BindFlags + Decode via
// mapstructure decode hooks).
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is every knob this runtime reads at startup. Mirrors cfg.Config's
// nested-struct-with-yaml-tags shape.
type Config struct {
	NodePool NodePoolConfig `yaml:"node-pool" mapstructure:"node-pool"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Preload  PreloadConfig  `yaml:"preload" mapstructure:"preload"`
	Grate    GrateConfig    `yaml:"grate" mapstructure:"grate"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

type NodePoolConfig struct {
	MaxNodes int `yaml:"max-nodes" mapstructure:"max-nodes"`
	MaxFDs   int `yaml:"max-fds" mapstructure:"max-fds"`
}

type LogConfig struct {
	File     string `yaml:"file" mapstructure:"file"`
	Format   string `yaml:"format" mapstructure:"format"` // "text" | "json"
	Severity string `yaml:"severity" mapstructure:"severity"`
}

// PreloadConfig lists host paths, each loaded into IMFS under the same
// path, given as a YAML list or a comma-separated --preload.paths flag.
// The PRELOADS environment variable is not read.
type PreloadConfig struct {
	Paths []string `yaml:"paths" mapstructure:"paths"`
}

type GrateConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"` // e.g. ":9090" for /metrics
}

// Severity is a constrained string enum with an UnmarshalText that
// rejects unknown levels. LogConfig.Severity is a plain string, so the
// decode hooks do not apply this validation when a Config is loaded.
type Severity string

const (
	SeverityTrace   Severity = "trace"
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s *Severity) UnmarshalText(text []byte) error {
	v := Severity(strings.ToLower(string(text)))
	switch v {
	case SeverityTrace, SeverityDebug, SeverityInfo, SeverityWarning, SeverityError:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid log severity: %q", text)
	}
}

// BindFlags registers every knob onto flagSet and binds it into viper,
// mirroring cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.Int("node-pool.max-nodes", 1024, "Maximum number of IMFS nodes.")
	flagSet.Int("node-pool.max-fds", 1024, "Maximum file descriptors per cage.")
	flagSet.String("log.file", "", "Log file path; empty means stderr.")
	flagSet.String("log.format", "text", "Log format: text or json.")
	flagSet.String("log.severity", "info", "Minimum log severity.")
	flagSet.StringSlice("preload.paths", nil, "Host paths to preload into IMFS at startup.")
	flagSet.Int("grate.workers", 1, "Grate worker count; imfsd starts a single grate and target cage regardless.")
	flagSet.Bool("metrics.enabled", false, "Serve Prometheus metrics.")
	flagSet.String("metrics.addr", ":9090", "Address to serve /metrics on.")

	return viper.BindPFlags(flagSet)
}

// DecodeHooks returns the mapstructure decode hooks this config needs,
// mirroring cfg/decode_hook.go: a TextUnmarshallerHookFunc composed with
// the standard string-to-slice hook so StringSlice flags and YAML lists
// decode the same way.
func DecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Decode unmarshals viper's current state into cfg, applying DecodeHooks.
func Decode(v *viper.Viper, cfg *Config) error {
	return v.Unmarshal(cfg, viper.DecodeHook(DecodeHooks()))
}
