// Package config provides the recipe loader for strata.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const supportedVersion = "1"

var _ ports.RecipeLoader = (*Loader)(nil)

// Loader implements ports.RecipeLoader for YAML recipe files.
type Loader struct {
	logger ports.Logger
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads the recipe at path, or the default recipe file when path is a directory.
func (l *Loader) Load(path string) (*domain.Recipe, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, domain.RecipeFileName)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	recipe, err := Load(abs)
	if err != nil {
		return nil, err
	}

	l.logger.Debug(fmt.Sprintf("loaded recipe %s (%d steps) from %s", recipe.Name, len(recipe.Instructions), abs))
	return recipe, nil
}

// Load reads a recipe file from the given absolute path.
func Load(path string) (*domain.Recipe, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	var file Recipefile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	if file.Version != "" && file.Version != supportedVersion {
		return nil, zerr.With(domain.ErrUnsupportedVersion, "version", file.Version)
	}
	if len(file.Steps) == 0 {
		return nil, zerr.With(domain.ErrEmptyRecipe, "path", path)
	}

	dir := filepath.Dir(path)

	name := file.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	contextDir := file.Context
	if contextDir == "" {
		contextDir = "."
	}
	if !filepath.IsAbs(contextDir) {
		contextDir = filepath.Join(dir, contextDir)
	}

	instructions := make([]domain.Instruction, len(file.Steps))
	for i, s := range file.Steps {
		instructions[i] = s.Instruction
	}

	return &domain.Recipe{
		Name:         name,
		Path:         path,
		ContextDir:   filepath.Clean(contextDir),
		Instructions: instructions,
	}, nil
}
