package ports

import "go.trai.ch/strata/internal/core/domain"

// RecipeLoader defines the interface for loading a recipe file.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type RecipeLoader interface {
	// Load reads the recipe at path. When path is a directory, the default recipe file
	// inside it is used. Relative context directories are resolved against the recipe file.
	Load(path string) (*domain.Recipe, error)
}
