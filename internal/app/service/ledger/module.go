package ledger

import "go.uber.org/fx"

// Module exposes the in-memory ledger via Fx.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewStore, fx.As(new(Ledger)))),
)
