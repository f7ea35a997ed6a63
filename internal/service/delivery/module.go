package delivery

import "go.uber.org/fx"

// Module provides the delivery slip service to Fx.
var Module = fx.Provide(NewService)
