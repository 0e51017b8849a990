package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/metrics"
	"github.com/fatflowers/payflow/pkg/tool"
	"github.com/fatflowers/payflow/pkg/types"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultCallTimeout = 3 * time.Second
)

// ErrCycleInProgress is returned by RunCycle while another cycle of the same
// poller has not finished.
var ErrCycleInProgress = errors.New("polling cycle already in progress")

// Ledger is the part of the ledger a worker needs. It is satisfied by the
// HTTP client and by the in-process store.
type Ledger interface {
	List(ctx context.Context) ([]*models.Payment, error)
	Transition(ctx context.Context, transactionID string, kind types.TransitionKind) (*models.TransitionResult, error)
}

// Stage is one step of the pipeline: which records it owns and what it does
// with each of them.
type Stage interface {
	Name() string
	Match(p *models.Payment) bool
	Process(ctx context.Context, p *models.Payment) error
}

// reconciler is implemented by stages that repair their own state once before
// the first cycle.
type reconciler interface {
	Reconcile(ctx context.Context) error
}

type CycleReport struct {
	Scanned   int
	Matched   int
	Succeeded int
	Failed    int
}

type Options struct {
	Interval    time.Duration
	CallTimeout time.Duration
}

// Poller drives one Stage: on every tick it lists the ledger, keeps the
// records the stage matches and processes them one by one. At most one cycle
// runs at a time; ticks that fire during a cycle are dropped.
type Poller struct {
	ledger      Ledger
	stage       Stage
	interval    time.Duration
	callTimeout time.Duration
	log         *zap.SugaredLogger

	running atomic.Bool
	wg      sync.WaitGroup

	cycles  *prometheus.CounterVec
	skipped prometheus.Counter
}

func NewPoller(l Ledger, stage Stage, opts Options, log *zap.SugaredLogger, reg prometheus.Registerer) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Poller{
		ledger:      l,
		stage:       stage,
		interval:    opts.Interval,
		callTimeout: opts.CallTimeout,
		log:         log.With("worker", stage.Name()),
		cycles:      metrics.CounterVec(reg, metrics.WorkerCycles),
		skipped:     metrics.CounterVec(reg, metrics.WorkerTicksSkipped).WithLabelValues(stage.Name()),
	}
}

// Run polls until ctx is cancelled, then waits for the in-flight cycle.
func (p *Poller) Run(ctx context.Context) {
	p.log.Infow("worker running", "interval", p.interval.String(), "call_timeout", p.callTimeout.String())
	if r, ok := p.stage.(reconciler); ok {
		if err := r.Reconcile(ctx); err != nil {
			p.log.Warnw("reconcile failed", "err", err)
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.log.Infow("worker stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if p.running.Load() {
		p.skipped.Inc()
		p.log.Debugw("previous cycle still running, skipping tick")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		report, err := p.RunCycle(ctx)
		switch {
		case errors.Is(err, ErrCycleInProgress):
		case err != nil:
			p.log.Warnw("cycle aborted", "err", err)
		case report.Matched > 0:
			p.log.Infow("cycle finished", "scanned", report.Scanned, "matched", report.Matched, "succeeded", report.Succeeded, "failed", report.Failed)
		}
	}()
}

// RunCycle performs one scan-and-transition pass. A failure listing the
// ledger aborts the cycle; a failure on a single record is logged and the
// cycle moves on. The record is retried next cycle since its status has not
// advanced.
func (p *Poller) RunCycle(ctx context.Context) (CycleReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Inc()
		return CycleReport{}, ErrCycleInProgress
	}
	defer p.running.Store(false)

	ctx = logctx.WithTraceID(ctx, tool.NewTraceID())
	log := logctx.FromCtx(ctx, p.log)

	var report CycleReport
	listCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	payments, err := p.ledger.List(listCtx)
	cancel()
	if err != nil {
		p.cycles.WithLabelValues(p.stage.Name(), "aborted").Inc()
		return report, fmt.Errorf("list payments: %w", err)
	}
	report.Scanned = len(payments)

	// terminal records never reach a stage
	matched := lo.Filter(payments, func(item *models.Payment, _ int) bool {
		return item != nil && !item.Status.IsTerminal() && p.stage.Match(item)
	})
	report.Matched = len(matched)

	for _, pay := range matched {
		if ctx.Err() != nil {
			break
		}
		if err := p.process(ctx, pay); err != nil {
			report.Failed++
			log.Warnw("record failed", "transaction_id", pay.TransactionID, "status", pay.Status, "err", err)
			continue
		}
		report.Succeeded++
	}

	p.cycles.WithLabelValues(p.stage.Name(), "completed").Inc()
	return report, nil
}

func (p *Poller) process(ctx context.Context, pay *models.Payment) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.stage.Process(callCtx, pay)
}
