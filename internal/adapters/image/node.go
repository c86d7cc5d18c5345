package image

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/strata/internal/adapters/fs"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
)

// NodeID is the unique identifier for the image source Graft node.
const NodeID graft.ID = "adapter.image_source"

func init() {
	graft.Register(graft.Node[ports.ImageSource]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.WorkspaceNodeID},
		Run: func(ctx context.Context) (ports.ImageSource, error) {
			workspace, err := graft.Dep[ports.Workspace](ctx)
			if err != nil {
				return nil, err
			}
			return NewDirectorySource(domain.DefaultImagesPath(), workspace), nil
		},
	})
}
