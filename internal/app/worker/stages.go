package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/metrics"
	"github.com/fatflowers/payflow/pkg/types"
)

// ValidationStage moves PENDING payments to VALIDATED.
type ValidationStage struct {
	ledger    Ledger
	validated prometheus.Counter
}

func NewValidationStage(l Ledger, reg prometheus.Registerer) *ValidationStage {
	return &ValidationStage{ledger: l, validated: metrics.Counter(reg, metrics.PaymentsValidated)}
}

func (s *ValidationStage) Name() string { return string(types.WorkerRoleValidation) }

func (s *ValidationStage) Match(p *models.Payment) bool {
	return p.Status == types.PaymentStatusPending
}

func (s *ValidationStage) Process(ctx context.Context, p *models.Payment) error {
	res, err := s.ledger.Transition(ctx, p.TransactionID, types.TransitionValidate)
	if err != nil {
		return err
	}
	if res.Applied {
		s.validated.Inc()
	}
	return nil
}

// FraudStage runs the threshold check on VALIDATED payments.
type FraudStage struct {
	ledger  Ledger
	flagged prometheus.Counter
}

func NewFraudStage(l Ledger, reg prometheus.Registerer) *FraudStage {
	return &FraudStage{ledger: l, flagged: metrics.Counter(reg, metrics.PaymentsFlagged)}
}

func (s *FraudStage) Name() string { return string(types.WorkerRoleFraud) }

func (s *FraudStage) Match(p *models.Payment) bool {
	return p.Status == types.PaymentStatusValidated
}

func (s *FraudStage) Process(ctx context.Context, p *models.Payment) error {
	res, err := s.ledger.Transition(ctx, p.TransactionID, types.TransitionFraudCheck)
	if err != nil {
		return err
	}
	if res.Applied && res.Payment.Status == types.PaymentStatusFlagged {
		s.flagged.Inc()
	}
	return nil
}

// SettlementRecorder stores the settlement dedup row. Record must be
// insert-if-absent.
type SettlementRecorder interface {
	Record(ctx context.Context, entry *models.SettlementEntry) (inserted bool, err error)
}

// SettlementStage settles CLEARED payments and records each settlement in the
// dedup table.
type SettlementStage struct {
	ledger   Ledger
	recorder SettlementRecorder
	log      *zap.SugaredLogger
	settled  prometheus.Counter
	now      func() time.Time
}

func NewSettlementStage(l Ledger, recorder SettlementRecorder, log *zap.SugaredLogger, reg prometheus.Registerer) *SettlementStage {
	return &SettlementStage{
		ledger:   l,
		recorder: recorder,
		log:      log.With("worker", string(types.WorkerRoleSettlement)),
		settled:  metrics.Counter(reg, metrics.PaymentsSettled),
		now:      time.Now,
	}
}

func (s *SettlementStage) Name() string { return string(types.WorkerRoleSettlement) }

func (s *SettlementStage) Match(p *models.Payment) bool {
	return p.Status == types.PaymentStatusCleared
}

// Process settles p and writes the dedup row. The counter tracks ledger
// transitions, so it moves even when the row already existed.
func (s *SettlementStage) Process(ctx context.Context, p *models.Payment) error {
	res, err := s.ledger.Transition(ctx, p.TransactionID, types.TransitionSettle)
	if err != nil {
		return err
	}
	if res.Applied {
		s.settled.Inc()
	}
	if res.Payment.Status != types.PaymentStatusSettled {
		return fmt.Errorf("settle returned status %s", res.Payment.Status)
	}
	return s.record(ctx, res.Payment)
}

// Reconcile writes dedup rows for SETTLED payments that have none, covering
// a crash between the ledger transition and the insert.
func (s *SettlementStage) Reconcile(ctx context.Context) error {
	payments, err := s.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	var repaired int
	for _, p := range payments {
		if p == nil || p.Status != types.PaymentStatusSettled {
			continue
		}
		inserted, err := s.recorder.Record(ctx, models.NewSettlementEntry(p, s.now()))
		if err != nil {
			return err
		}
		if inserted {
			repaired++
		}
	}
	if repaired > 0 {
		logctx.FromCtx(ctx, s.log).Infow("reconciled settlements", "inserted", repaired)
	}
	return nil
}

func (s *SettlementStage) record(ctx context.Context, p *models.Payment) error {
	inserted, err := s.recorder.Record(ctx, models.NewSettlementEntry(p, s.now()))
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("payment settled",
		"transaction_id", p.TransactionID,
		"request_id", p.RequestID,
		"amount", p.Amount.String(),
		"dedup_inserted", inserted,
	)
	return nil
}
