package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/response"
	"github.com/fatflowers/payflow/pkg/types"
)

func newRouter(l ledger.Ledger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)
	RegisterPaymentRoutes(r, l)
	return r
}

func newStoreRouter() *gin.Engine {
	return newRouter(ledger.NewStore(zap.NewNop().Sugar(), prometheus.NewRegistry()))
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.APIResponse[json.RawMessage]) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.APIResponse[json.RawMessage]
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	r := newRouter(nil)
	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	for _, want := range []string{
		"GET /",
		"GET /healthz",
		"GET /payments",
		"POST /payments",
		"GET /payments/:transactionId",
		"PUT /payments/:transactionId/:kind",
	} {
		require.True(t, contains(want), want)
	}
}

func TestRoot_IsLive(t *testing.T) {
	w, _ := doJSON(t, newStoreRouter(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Server is live!", w.Body.String())
}

func TestCreatePayment_CreatedThenReplayed(t *testing.T) {
	r := newStoreRouter()
	body := map[string]any{"requestId": "r1", "userId": "u1", "merchantId": "m1", "amount": 50, "currency": "USD", "paymentMethod": "CARD"}

	w, env := doJSON(t, r, http.MethodPost, "/payments", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	var first models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, types.PaymentStatusPending, first.Status)
	assert.Equal(t, "50", first.Amount.String())

	w, env = doJSON(t, r, http.MethodPost, "/payments", body)
	require.Equal(t, http.StatusOK, w.Code)
	var second models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, first.TransactionID, second.TransactionID)
}

func TestCreatePayment_MissingRequestID(t *testing.T) {
	w, env := doJSON(t, newStoreRouter(), http.MethodPost, "/payments", map[string]any{"amount": 10})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestGetPayment_NotFound(t *testing.T) {
	w, env := doJSON(t, newStoreRouter(), http.MethodGet, "/payments/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, response.APIResponseCodeNotFound, env.Code)
}

func TestTransition_SettleBeforeClearedIsRejected(t *testing.T) {
	r := newStoreRouter()
	_, env := doJSON(t, r, http.MethodPost, "/payments", map[string]any{"requestId": "r1", "amount": 50})
	var p models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &p))

	w, env := doJSON(t, r, http.MethodPut, "/payments/"+p.TransactionID+"/settle", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, response.APIResponseCodeInvalidTransition, env.Code)
	require.Contains(t, string(env.Data), "cannot settle unless CLEARED")
}

func TestTransition_ValidateReturnsResult(t *testing.T) {
	r := newStoreRouter()
	_, env := doJSON(t, r, http.MethodPost, "/payments", map[string]any{"requestId": "r1", "amount": 50})
	var p models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &p))

	w, env := doJSON(t, r, http.MethodPut, "/payments/"+p.TransactionID+"/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Applied)
	assert.Equal(t, types.PaymentStatusValidated, res.Payment.Status)

	_, env = doJSON(t, r, http.MethodPut, "/payments/"+p.TransactionID+"/validate", nil)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Applied)
}

func TestTransition_UnknownTransactionOnEveryKind(t *testing.T) {
	r := newStoreRouter()
	for _, kind := range []string{"validate", "fraud", "settle"} {
		w, env := doJSON(t, r, http.MethodPut, "/payments/fabricated/"+kind, nil)
		require.Equal(t, http.StatusNotFound, w.Code, kind)
		require.Equal(t, response.APIResponseCodeNotFound, env.Code, kind)
	}
}

type failingLedger struct{ ledger.Ledger }

func (failingLedger) List(context.Context) ([]*models.Payment, error) {
	return nil, errors.New("boom")
}

func TestListPayments_InternalError(t *testing.T) {
	w, env := doJSON(t, newRouter(failingLedger{}), http.MethodGet, "/payments", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, response.APIResponseCodeError, env.Code)
}

func TestListPayments_EmptyIsArray(t *testing.T) {
	w, env := doJSON(t, newStoreRouter(), http.MethodGet, "/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, string(env.Data))
}

func TestTransition_UnknownKindIsBadRequest(t *testing.T) {
	r := newStoreRouter()
	_, env := doJSON(t, r, http.MethodPost, "/payments", map[string]any{"requestId": "r1", "amount": 50})
	var p models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &p))

	w, env := doJSON(t, r, http.MethodPut, "/payments/"+p.TransactionID+"/refund", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	// kinds are matched case-insensitively
	w, env = doJSON(t, r, http.MethodPut, "/payments/"+p.TransactionID+"/VALIDATE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, types.PaymentStatusValidated, res.Payment.Status)
}

func TestCreatePayment_AmountOutOfRange(t *testing.T) {
	r := newStoreRouter()
	w, env := doJSON(t, r, http.MethodPost, "/payments", json.RawMessage(`{"requestId":"x","amount":1e20000000}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	w, env = doJSON(t, r, http.MethodGet, "/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, string(env.Data))
}
