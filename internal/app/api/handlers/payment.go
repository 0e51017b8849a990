package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/response"
	"github.com/fatflowers/payflow/pkg/types"
)

// @Summary      List payments
// @Description  Returns every payment currently held by the ledger. No server-side filtering.
// @Tags         Payment
// @Produce      json
// @Success      200  {object}  handlers.RespPaymentList
// @Router       /payments [get]
func ApiListPayments(l ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := l.List(c.Request.Context())
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		if items == nil {
			items = []*models.Payment{}
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      Create payment
// @Description  Creates a payment in PENDING. Idempotent on requestId: a replay returns the existing record with 200.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body models.CreatePaymentRequest true "Payment payload"
// @Success      201  {object}  handlers.RespPayment
// @Success      200  {object}  handlers.RespPayment
// @Router       /payments [post]
func ApiCreatePayment(l ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, response.APIResponseCodeBadRequest, err)
			return
		}
		p, created, err := l.Create(c.Request.Context(), &req)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, response.OKT(p))
	}
}

// @Summary      Get payment
// @Tags         Payment
// @Produce      json
// @Param        transactionId path string true "Transaction ID"
// @Success      200  {object}  handlers.RespPayment
// @Failure      404  {object}  handlers.RespError
// @Router       /payments/{transactionId} [get]
func ApiGetPayment(l ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := l.Get(c.Request.Context(), c.Param("transactionId"))
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Transition payment
// @Description  Applies validate, fraud or settle. Calls against a record outside the source state return it unchanged with applied=false; settle outside CLEARED fails.
// @Tags         Payment
// @Produce      json
// @Param        transactionId path string true "Transaction ID"
// @Success      200  {object}  handlers.RespTransition
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Param        kind path string true "Transition" Enums(validate, fraud, settle)
// @Router       /payments/{transactionId}/{kind} [put]
func ApiTransitionPayment(l ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := types.ParseTransitionKind(c.Param("kind"))
		if err != nil {
			writeError(c, response.APIResponseCodeBadRequest, err)
			return
		}
		res, err := l.Transition(c.Request.Context(), c.Param("transactionId"), kind)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func writeLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(c, response.APIResponseCodeNotFound, err)
	case errors.Is(err, ledger.ErrInvalidTransition):
		writeError(c, response.APIResponseCodeInvalidTransition, err)
	case errors.Is(err, ledger.ErrInvalidRequest), errors.Is(err, ledger.ErrUnknownTransition):
		writeError(c, response.APIResponseCodeBadRequest, err)
	default:
		logctx.FromGin(c, zap.S()).Errorw("ledger operation failed", "path", c.FullPath(), "err", err)
		writeError(c, response.APIResponseCodeError, err)
	}
}

func writeError(c *gin.Context, code response.APIResponseCode, err error) {
	c.JSON(code.HTTPStatus(), response.ErrorT[any](code, err.Error()))
}

func RegisterPaymentRoutes(r gin.IRouter, l ledger.Ledger) {
	r.GET("/payments", ApiListPayments(l))
	r.POST("/payments", ApiCreatePayment(l))
	r.GET("/payments/:transactionId", ApiGetPayment(l))
	r.PUT("/payments/:transactionId/:kind", ApiTransitionPayment(l))
}
