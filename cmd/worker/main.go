// Command worker runs one pipeline stage against the ledger API.
//
//	worker validation|fraud|settlement
//
// The role may also come from worker.role in the config file or
// APP_WORKER_ROLE; the argument wins.
package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app"
	"github.com/fatflowers/payflow/pkg/config"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	cfg, err := config.New()
	if err != nil {
		zap.NewExample().Sugar().Errorf("failed to load config: %v", err)
		exitCode = 1
		return
	}
	if len(os.Args) > 1 {
		cfg.Worker.Role = os.Args[1]
	}

	a := fx.New(app.WorkerModule(cfg))
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to start worker: %v", err)
		exitCode = 1
		return
	}

	<-a.Done()

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop worker: %v", err)
		exitCode = 1
	}
}
