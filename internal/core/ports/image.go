package ports

import (
	"context"

	"go.trai.ch/strata/internal/core/domain"
)

// ImageSource resolves base image references to filesystem trees.
//
//go:generate go run go.uber.org/mock/mockgen -source=image.go -destination=mocks/mock_image.go -package=mocks
type ImageSource interface {
	// Resolve returns the tree for ref. The same reference must always resolve to the
	// same tree for builds to be reproducible.
	Resolve(ctx context.Context, ref string) (*domain.Tree, error)
}
