package courses

import "go.uber.org/fx"

// Module provides course domain dependencies.
var Module = fx.Module("courses",
	fx.Provide(NewRepository),
)
