package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fatflowers/payflow/internal/app/service/ledger"
	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/config"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/response"
	"github.com/fatflowers/payflow/pkg/types"
)

// ErrUnavailable marks a transient failure talking to the ledger: connection
// errors, timeouts, 5xx responses or bodies that are not a response envelope.
var ErrUnavailable = errors.New("ledger unavailable")

// Client talks to the ledger HTTP API. It implements ledger.Ledger, so
// workers can run against either the remote service or an in-process store.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

var _ ledger.Ledger = (*Client)(nil)

func New(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return NewWithHTTPClient(cfg.Ledger.BaseURL, &http.Client{Timeout: cfg.Ledger.RequestTimeout}, log)
}

func NewWithHTTPClient(baseURL string, hc *http.Client, log *zap.SugaredLogger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, log: log}
}

// Create posts a new payment. The ledger answers 201 for a new record and 200
// when the requestId was already known.
func (c *Client) Create(ctx context.Context, req *models.CreatePaymentRequest) (*models.Payment, bool, error) {
	var p models.Payment
	status, err := c.do(ctx, http.MethodPost, "/payments", req, &p)
	if err != nil {
		return nil, false, err
	}
	return &p, status == http.StatusCreated, nil
}

func (c *Client) List(ctx context.Context) ([]*models.Payment, error) {
	var out []*models.Payment
	if _, err := c.do(ctx, http.MethodGet, "/payments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, transactionID string) (*models.Payment, error) {
	var p models.Payment
	if _, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(transactionID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Transition(ctx context.Context, transactionID string, kind types.TransitionKind) (*models.TransitionResult, error) {
	var res models.TransitionResult
	path := fmt.Sprintf("/payments/%s/%s", url.PathEscape(transactionID), kind)
	if _, err := c.do(ctx, http.MethodPut, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Payment == nil {
		return nil, fmt.Errorf("%w: transition response without payment", ErrUnavailable)
	}
	return &res, nil
}

// do sends one request and decodes the envelope's data into out. It returns
// the HTTP status of successful responses.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		req.Header.Set("X-Request-ID", tid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	var env response.APIResponse[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return 0, fmt.Errorf("%w: %s %s: status %d: decode response: %v", ErrUnavailable, method, path, resp.StatusCode, err)
	}
	if env.Code != response.APIResponseCodeOK {
		err := responseError(env.Code, resp.StatusCode, env.Data)
		logctx.FromCtx(ctx, c.log).Debugw("ledger rejected request", "method", method, "path", path, "code", env.Code, "err", err)
		return 0, err
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return 0, fmt.Errorf("%w: %s %s: decode data: %v", ErrUnavailable, method, path, err)
	}
	return resp.StatusCode, nil
}

// responseError maps an error envelope back onto the ledger's sentinel errors.
func responseError(code response.APIResponseCode, status int, data json.RawMessage) error {
	var detail string
	if err := json.Unmarshal(data, &detail); err != nil || detail == "" {
		detail = fmt.Sprintf("code %d", code)
	}
	switch code {
	case response.APIResponseCodeNotFound:
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, detail)
	case response.APIResponseCodeInvalidTransition:
		return fmt.Errorf("%w: %s", ledger.ErrInvalidTransition, detail)
	case response.APIResponseCodeBadRequest:
		return fmt.Errorf("%w: %s", ledger.ErrInvalidRequest, detail)
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, detail)
	}
	return fmt.Errorf("ledger error (status %d): %s", status, detail)
}
