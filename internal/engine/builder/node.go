package builder

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/strata/internal/adapters/cas"                //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/adapters/image"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/adapters/logger"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/adapters/shell"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/strata/internal/core/ports"
)

// NodeID is the unique identifier for the builder Graft node.
const NodeID graft.ID = "engine.builder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cas.LayerNodeID,
			fs.WorkspaceNodeID,
			fs.HasherNodeID,
			image.NodeID,
			shell.NodeID,
			logger.NodeID,
			progrock.NodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			cache, err := graft.Dep[ports.LayerCache](ctx)
			if err != nil {
				return nil, err
			}

			workspace, err := graft.Dep[ports.Workspace](ctx)
			if err != nil {
				return nil, err
			}

			hasher, err := graft.Dep[ports.TreeHasher](ctx)
			if err != nil {
				return nil, err
			}

			images, err := graft.Dep[ports.ImageSource](ctx)
			if err != nil {
				return nil, err
			}

			runner, err := graft.Dep[ports.CommandRunner](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			return NewBuilder(cache, workspace, images, runner, hasher, log, telemetry), nil
		},
	})
}
