package dashboard

import "go.uber.org/fx"

// Module provides the dashboard service to Fx.
var Module = fx.Provide(NewService)
