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

package config

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsRegistersDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	assert.Equal(t, 1024, v.GetInt("node-pool.max-nodes"))
	assert.Equal(t, 1024, v.GetInt("node-pool.max-fds"))
	assert.Equal(t, "text", v.GetString("log.format"))
	assert.Equal(t, "info", v.GetString("log.severity"))
	assert.Equal(t, 1, v.GetInt("grate.workers"))
	assert.False(t, v.GetBool("metrics.enabled"))
	assert.Equal(t, ":9090", v.GetString("metrics.addr"))
}

func TestDecodeFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{
		"--node-pool.max-nodes=2048",
		"--log.severity=warning",
		"--preload.paths=/a,/b",
		"--grate.workers=3",
	}))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	var cfg Config
	require.NoError(t, Decode(v, &cfg))

	assert.Equal(t, 2048, cfg.NodePool.MaxNodes)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Preload.Paths)
	assert.Equal(t, 3, cfg.Grate.Workers)
}

func TestSeverityUnmarshalTextValid(t *testing.T) {
	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("WARNING")))
	assert.Equal(t, SeverityWarning, s)
}

func TestSeverityUnmarshalTextInvalid(t *testing.T) {
	var s Severity
	err := s.UnmarshalText([]byte("bogus"))
	assert.Error(t, err)
}

func TestDecodeFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
node-pool:
  max-nodes: 512
log:
  format: json
  severity: debug
grate:
  workers: 2
`)))

	var cfg Config
	require.NoError(t, Decode(v, &cfg))

	assert.Equal(t, 512, cfg.NodePool.MaxNodes)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2, cfg.Grate.Workers)
}
