package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/adapters/config"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, domain.RecipeFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeRecipe(t, `
version: "1"
name: qaoa
context: src
steps:
  - from: python:3.11
  - run: apt-get update
  - env: {key: PATH, value: /deps/venv/bin:$PATH}
  - copy: {src: ., dest: /app, exclude: ["*.pyc"]}
  - workdir: /app
  - install: requirements.txt
  - install: {manifest: package.json, command: npm ci}
  - copy: main.py /app/main.py
  - run: make test
    workdir: /app/tests
    env: {CI: "1"}
    timeout: 10m
`)

	recipe, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qaoa", recipe.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "src"), recipe.ContextDir)
	require.Len(t, recipe.Instructions, 9)

	ins := recipe.Instructions
	assert.Equal(t, domain.Instruction{Line: 6, Kind: "base", Image: "python:3.11"}, ins[0])
	assert.Equal(t, "run", ins[1].Kind)
	assert.Equal(t, "apt-get update", ins[1].Command)
	assert.Equal(t, "env", ins[2].Kind)
	assert.Equal(t, "PATH", ins[2].Key)
	assert.Equal(t, "/deps/venv/bin:$PATH", ins[2].Value)
	assert.Equal(t, "copy", ins[3].Kind)
	assert.Equal(t, ".", ins[3].Source)
	assert.Equal(t, "/app", ins[3].Destination)
	assert.Equal(t, []string{"*.pyc"}, ins[3].Exclude)
	assert.Equal(t, "workdir", ins[4].Kind)
	assert.Equal(t, "/app", ins[4].Path)
	assert.Equal(t, "install", ins[5].Kind)
	assert.Equal(t, "requirements.txt", ins[5].Manifest)
	assert.Empty(t, ins[5].Command)
	assert.Equal(t, "package.json", ins[6].Manifest)
	assert.Equal(t, "npm ci", ins[6].Command)
	assert.Equal(t, "main.py", ins[7].Source)
	assert.Equal(t, "/app/main.py", ins[7].Destination)
	assert.Equal(t, "run", ins[8].Kind)
	assert.Equal(t, "/app/tests", ins[8].Workdir)
	assert.Equal(t, map[string]string{"CI": "1"}, ins[8].Env)
	assert.Equal(t, 10*time.Minute, ins[8].Timeout)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeRecipe(t, `
steps:
  - from: scratch
`)

	recipe, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(filepath.Dir(path)), recipe.Name)
	assert.Equal(t, filepath.Dir(path), recipe.ContextDir)
}

func TestLoad_AmbiguousStepKind(t *testing.T) {
	path := writeRecipe(t, `
steps:
  - from: scratch
    run: echo hi
  - workdir: /app
    env: {CI: "1"}
  - env: {key: CI, value: "1"}
    workdir: /app
`)

	recipe, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, recipe.Instructions, 3)
	assert.Equal(t, "from+run", recipe.Instructions[0].Kind)
	assert.Equal(t, "workdir+env", recipe.Instructions[1].Kind)
	assert.Equal(t, "env+workdir", recipe.Instructions[2].Kind)
	assert.Empty(t, recipe.Instructions[1].Env)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{"unsupported version", "version: \"2\"\nsteps:\n  - from: scratch\n", domain.ErrUnsupportedVersion.Error()},
		{"empty recipe", "version: \"1\"\n", domain.ErrEmptyRecipe.Error()},
		{"invalid yaml", "steps: [", domain.ErrConfigParseFailed.Error()},
		{"unknown field", "steps:\n  - from: scratch\n    cmd: ls\n", "unknown step field"},
		{"bad timeout", "steps:\n  - run: ls\n    timeout: soon\n", "invalid timeout"},
		{"step not a mapping", "steps:\n  - ls\n", "step must be a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeRecipe(t, tt.content))
			require.Error(t, err)
			require.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, domain.ErrConfigReadFailed.Error())
}

func TestLoader_LoadDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).Times(1)

	path := writeRecipe(t, "steps:\n  - from: scratch\n")

	recipe, err := config.NewLoader(mockLogger).Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, path, recipe.Path)
}
