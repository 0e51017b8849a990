package worker

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/api/server"
	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/app/service/settlement"
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/internal/platform/db"
	"github.com/fatflowers/payflow/internal/platform/ledgerclient"
	"github.com/fatflowers/payflow/pkg/config"
	"github.com/fatflowers/payflow/pkg/types"
)

type pipeline struct {
	validation *Poller
	fraud      *Poller
	settlement *Poller
	stage      *SettlementStage
	repo       *settlement.Repository
}

func newRepo(t *testing.T) *settlement.Repository {
	t.Helper()
	log := zap.NewNop().Sugar()
	gdb, err := db.Open(log, filepath.Join(t.TempDir(), "settlements.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(log, gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return settlement.NewRepository(gdb, log)
}

func newPipeline(t *testing.T, l Ledger, reg *prometheus.Registry) *pipeline {
	t.Helper()
	log := zap.NewNop().Sugar()
	repo := newRepo(t)
	stage := NewSettlementStage(l, repo, log, reg)
	return &pipeline{
		validation: newTestPoller(l, NewValidationStage(l, reg), reg),
		fraud:      newTestPoller(l, NewFraudStage(l, reg), reg),
		settlement: newTestPoller(l, stage, reg),
		stage:      stage,
		repo:       repo,
	}
}

func (pl *pipeline) runAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []*Poller{pl.validation, pl.fraud, pl.settlement} {
		_, err := p.RunCycle(ctx)
		require.NoError(t, err)
	}
}

func create(t *testing.T, l ledger.Ledger, requestID, amount, method string) *models.Payment {
	t.Helper()
	p, _, err := l.Create(context.Background(), &models.CreatePaymentRequest{
		RequestID:     requestID,
		UserID:        "u1",
		MerchantID:    "m1",
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return p
}

func TestPipeline_InProcess(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := ledger.NewStore(zap.NewNop().Sugar(), reg)
	pl := newPipeline(t, store, reg)
	ctx := context.Background()

	r1 := create(t, store, "r1", "50", "CARD")
	r2 := create(t, store, "r2", "500", "UPI")

	pl.runAll(t)

	got1, err := store.Get(ctx, r1.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusSettled, got1.Status)
	assert.Equal(t, "Payment settled", got1.Message)

	got2, err := store.Get(ctx, r2.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusFlagged, got2.Status)
	assert.Equal(t, "Potential fraud", got2.Message)

	n, err := pl.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entry, err := pl.repo.Get(ctx, r1.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "r1", entry.RequestID)
	assert.True(t, decimal.RequireFromString("50").Equal(entry.Amount))
	assert.True(t, got1.SettledAt.Equal(entry.SettledAt))

	_, err = pl.repo.Get(ctx, r2.TransactionID)
	assert.ErrorIs(t, err, settlement.ErrNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(pl.validation.stage.(*ValidationStage).validated))
	assert.Equal(t, 1.0, testutil.ToFloat64(pl.fraud.stage.(*FraudStage).flagged))
	assert.Equal(t, 1.0, testutil.ToFloat64(pl.stage.settled))

	// a second full pass changes nothing
	pl.runAll(t)
	n, err = pl.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(pl.stage.settled))
}

func TestSettlementStage_DoubleProcessKeepsOneRow(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := ledger.NewStore(zap.NewNop().Sugar(), reg)
	pl := newPipeline(t, store, reg)
	ctx := context.Background()

	p := create(t, store, "r1", "10", "CARD")
	_, err := store.Transition(ctx, p.TransactionID, types.TransitionValidate)
	require.NoError(t, err)
	res, err := store.Transition(ctx, p.TransactionID, types.TransitionFraudCheck)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCleared, res.Payment.Status)

	// two workers that both saw the record as CLEARED
	require.NoError(t, pl.stage.Process(ctx, res.Payment))
	require.NoError(t, pl.stage.Process(ctx, res.Payment))

	n, err := pl.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(pl.stage.settled))
}

func TestSettlementStage_ProcessRejectsUncleared(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := ledger.NewStore(zap.NewNop().Sugar(), reg)
	pl := newPipeline(t, store, reg)
	ctx := context.Background()

	p := create(t, store, "r1", "10", "CARD")
	err := pl.stage.Process(ctx, p)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	n, err := pl.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSettlementStage_ReconcileRecordsMissingRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := ledger.NewStore(zap.NewNop().Sugar(), reg)
	pl := newPipeline(t, store, reg)
	ctx := context.Background()

	// settled directly on the ledger, as if the worker died before its insert
	p := create(t, store, "r1", "20", "CARD")
	for _, k := range []types.TransitionKind{types.TransitionValidate, types.TransitionFraudCheck, types.TransitionSettle} {
		_, err := store.Transition(ctx, p.TransactionID, k)
		require.NoError(t, err)
	}
	create(t, store, "r2", "30", "CARD")

	require.NoError(t, pl.stage.Reconcile(ctx))
	require.NoError(t, pl.stage.Reconcile(ctx))

	rows, err := pl.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, p.TransactionID, rows[0].TransactionID)
}

func TestPipeline_OverHTTP(t *testing.T) {
	log := zap.NewNop().Sugar()
	apiReg := prometheus.NewRegistry()
	store := ledger.NewStore(log, apiReg)
	srv := httptest.NewServer(server.NewRouter(log, &config.Config{Env: config.EnvDev}, store, apiReg))
	t.Cleanup(srv.Close)

	client := ledgerclient.NewWithHTTPClient(srv.URL, srv.Client(), log)
	reg := prometheus.NewRegistry()
	pl := newPipeline(t, client, reg)
	ctx := context.Background()

	r1 := create(t, client, "r1", "50", "CARD")
	r2 := create(t, client, "r2", "500", "UPI")
	replay := create(t, client, "r1", "50", "CARD")
	assert.Equal(t, r1.TransactionID, replay.TransactionID)

	pl.runAll(t)

	got1, err := client.Get(ctx, r1.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusSettled, got1.Status)
	got2, err := client.Get(ctx, r2.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusFlagged, got2.Status)

	n, err := pl.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
