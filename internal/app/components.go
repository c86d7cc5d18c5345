package app

import (
	"go.trai.ch/strata/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/strata/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App       *App
	Logger    ports.Logger
	Telemetry ports.Telemetry
	Progress  *progrock.Recorder
}
