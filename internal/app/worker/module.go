package worker

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/service/settlement"
	"github.com/fatflowers/payflow/pkg/config"
	"github.com/fatflowers/payflow/pkg/types"
)

func newPoller(l Ledger, stage Stage, cfg *config.Config, log *zap.SugaredLogger, reg prometheus.Registerer) *Poller {
	return NewPoller(l, stage, Options{Interval: cfg.Worker.Interval, CallTimeout: cfg.Worker.CallTimeout}, log, reg)
}

func runPoller(lc fx.Lifecycle, p *Poller) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				p.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func asRecorder(r *settlement.Repository) SettlementRecorder { return r }

// Module wires the poller and the stage for role. The settlement role also
// needs *gorm.DB; see app.WorkerModule.
func Module(role types.WorkerRole) fx.Option {
	var stage fx.Option
	switch role {
	case types.WorkerRoleValidation:
		stage = fx.Provide(fx.Annotate(NewValidationStage, fx.As(new(Stage))))
	case types.WorkerRoleFraud:
		stage = fx.Provide(fx.Annotate(NewFraudStage, fx.As(new(Stage))))
	case types.WorkerRoleSettlement:
		stage = fx.Options(
			settlement.Module,
			fx.Provide(asRecorder),
			fx.Provide(fx.Annotate(NewSettlementStage, fx.As(new(Stage)))),
		)
	default:
		return fx.Error(fmt.Errorf("unsupported worker role: %q", role))
	}
	return fx.Options(
		stage,
		fx.Provide(newPoller),
		fx.Invoke(runPoller),
	)
}
