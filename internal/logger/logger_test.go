// Copyright 2025 Google LLC
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

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityStringBoundaries(t *testing.T) {
	assert.Equal(t, "TRACE", LevelTrace.String())
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARNING", LevelWarning.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestInitWritesTextLinesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{File: path, Format: "text", Severity: LevelInfo}))

	Infof("hello %s", "world")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "severity=INFO")
	assert.Contains(t, string(content), `message="hello world"`)
}

func TestInitWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{File: path, Format: "json", Severity: LevelInfo}))

	Errorf("boom")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"severity":"ERROR"`)
	assert.Contains(t, string(content), `"message":"boom"`)
}

func TestSeverityFilterSuppressesBelowMinimum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{File: path, Format: "text", Severity: LevelWarning}))

	Debugf("should not appear")
	Warnf("should appear")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "should not appear")
	assert.Contains(t, string(content), "should appear")
}
