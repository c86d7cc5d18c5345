package domain

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// StrataDirName is the name of the project-local metadata directory.
	StrataDirName = ".strata"

	// StoreDirName is the name of the content addressable store directory.
	StoreDirName = "store"

	// BlobsDirName holds file contents addressed by digest.
	BlobsDirName = "blobs"

	// LayersDirName holds one record per committed snapshot.
	LayersDirName = "layers"

	// ImagesDirName is the name of the base image directory.
	ImagesDirName = "images"

	// RecipeFileName is the default recipe file name.
	RecipeFileName = "strata.yaml"

	// StoreDirEnv overrides the store location.
	StoreDirEnv = "STRATA_STORE_DIR"

	// ImagesDirEnv overrides the base image location.
	ImagesDirEnv = "STRATA_IMAGES_DIR"

	// DebugEnv enables debug logging when set to a non-empty value.
	DebugEnv = "STRATA_DEBUG"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStorePath returns the store directory: $STRATA_STORE_DIR, or .strata/store.
func DefaultStorePath() string {
	if dir := os.Getenv(StoreDirEnv); dir != "" {
		return dir
	}
	return filepath.Join(StrataDirName, StoreDirName)
}

// DefaultImagesPath returns the base image directory: $STRATA_IMAGES_DIR, or
// $XDG_DATA_HOME/strata/images.
func DefaultImagesPath() string {
	if dir := os.Getenv(ImagesDirEnv); dir != "" {
		return dir
	}
	return filepath.Join(xdg.DataHome, "strata", ImagesDirName)
}

// BlobsPath returns the blob directory inside a store.
func BlobsPath(store string) string {
	return filepath.Join(store, BlobsDirName)
}

// LayersPath returns the layer record directory inside a store.
func LayersPath(store string) string {
	return filepath.Join(store, LayersDirName)
}
