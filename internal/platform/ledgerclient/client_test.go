package ledgerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/api/handlers"
	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/types"
)

func newTestClient(t *testing.T) (*Client, *ledger.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := ledger.NewStore(zap.NewNop().Sugar(), prometheus.NewRegistry())
	r := gin.New()
	handlers.RegisterPaymentRoutes(r, store)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.URL+"/", srv.Client(), zap.NewNop().Sugar()), store
}

func TestClient_CreateIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	req := &models.CreatePaymentRequest{RequestID: "r1", Amount: decimal.NewFromInt(50), PaymentMethod: "CARD"}

	p, created, err := c.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.PaymentStatusPending, p.Status)
	assert.True(t, decimal.NewFromInt(50).Equal(p.Amount))

	again, created, err := c.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.TransactionID, again.TransactionID)

	items, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestClient_CreateRejectsMissingRequestID(t *testing.T) {
	c, _ := newTestClient(t)
	_, _, err := c.Create(context.Background(), &models.CreatePaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ledger.ErrInvalidRequest)
}

func TestClient_ErrorMapping(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = c.Transition(ctx, "missing", types.TransitionValidate)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	p, _, err := c.Create(ctx, &models.CreatePaymentRequest{RequestID: "r1", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = c.Transition(ctx, p.TransactionID, types.TransitionSettle)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestClient_Transitions(t *testing.T) {
	c, store := newTestClient(t)
	ctx := logctx.WithTraceID(context.Background(), "trace-1")

	p, _, err := c.Create(ctx, &models.CreatePaymentRequest{RequestID: "r1", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	res, err := c.Transition(ctx, p.TransactionID, types.TransitionValidate)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, types.PaymentStatusValidated, res.Payment.Status)

	res, err = c.Transition(ctx, p.TransactionID, types.TransitionValidate)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	_, err = c.Transition(ctx, p.TransactionID, types.TransitionFraudCheck)
	require.NoError(t, err)
	res, err = c.Transition(ctx, p.TransactionID, types.TransitionSettle)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusSettled, res.Payment.Status)
	require.NotNil(t, res.Payment.SettledAt)

	got, err := store.Get(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.True(t, got.SettledAt.Equal(*res.Payment.SettledAt))
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewWithHTTPClient(srv.URL, srv.Client(), zap.NewNop().Sugar())

	// plain-text 404 is not an envelope
	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	srv.Close()
	_, err = c.List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":50000,"message":"unexpected error","data":"boom"}`))
	}))
	t.Cleanup(srv.Close)
	c := NewWithHTTPClient(srv.URL, srv.Client(), zap.NewNop().Sugar())

	_, err := c.Get(context.Background(), "tx")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "boom")
}
