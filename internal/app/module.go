package app

import (
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/payflow/internal/app/api/server"
	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/app/worker"
	"github.com/fatflowers/payflow/internal/platform/db"
	"github.com/fatflowers/payflow/internal/platform/ledgerclient"
	"github.com/fatflowers/payflow/pkg/config"
	"github.com/fatflowers/payflow/pkg/logger"
	"github.com/fatflowers/payflow/pkg/metrics"
	"github.com/fatflowers/payflow/pkg/types"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// APIModule is the ledger process: in-memory store behind the HTTP API.
var APIModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	ledger.Module,
	server.Module,
)

// WorkerModule is one worker process. cfg.Worker.Role picks the stage; only
// the settlement worker opens the database.
func WorkerModule(cfg *config.Config) fx.Option {
	role, err := types.ParseWorkerRole(cfg.Worker.Role)
	if err != nil {
		return fx.Error(fmt.Errorf("worker role: %w", err))
	}
	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		metrics.Module,
		fx.Provide(fx.Annotate(ledgerclient.New, fx.As(new(worker.Ledger)))),
		worker.Module(role),
	}
	if role == types.WorkerRoleSettlement {
		opts = append(opts, db.Module)
	}
	return fx.Options(opts...)
}
