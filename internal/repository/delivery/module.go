package delivery

import "go.uber.org/fx"

// Module provides the delivery slip repository to Fx.
var Module = fx.Provide(NewRepository)
