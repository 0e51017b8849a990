package handlers

import (
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/response"
)

// Envelope types referenced by the swag annotations. Handlers build responses
// with response.OKT / response.ErrorT directly.

// RespPayment wraps a single payment.
type RespPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Payment           `json:"data"`
}

// RespPaymentList wraps the full payment list.
type RespPaymentList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Payment         `json:"data"`
}

// RespTransition wraps a transition result.
type RespTransition struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.TransitionResult  `json:"data"`
}

// RespError carries the error text in data.
type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    string                   `json:"data"`
}
