package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
)

const (
	// BlobNodeID is the unique identifier for the blob store Graft node.
	BlobNodeID graft.ID = "adapter.blob_store"

	// LayerNodeID is the unique identifier for the layer cache Graft node.
	LayerNodeID graft.ID = "adapter.layer_cache"
)

func init() {
	graft.Register(graft.Node[ports.BlobStore]{
		ID:        BlobNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.BlobStore, error) {
			return NewBlobStore(domain.BlobsPath(domain.DefaultStorePath()))
		},
	})

	graft.Register(graft.Node[ports.LayerCache]{
		ID:        LayerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.LayerCache, error) {
			return NewLayerStore(domain.LayersPath(domain.DefaultStorePath()))
		},
	})
}
