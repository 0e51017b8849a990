package settlement

import "go.uber.org/fx"

// Module exposes the settlement repository via Fx. It needs *gorm.DB from
// the db module.
var Module = fx.Options(
	fx.Provide(NewRepository),
)
