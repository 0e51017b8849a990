package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	models "github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
	"github.com/fatflowers/payflow/pkg/metrics"
	"github.com/fatflowers/payflow/pkg/tool"
	types "github.com/fatflowers/payflow/pkg/types"
)

// FraudThreshold is the largest amount that clears the fraud check. There is
// no currency scaling.
var FraudThreshold = decimal.NewFromInt(100)

const (
	msgProcessing = "Processing"
	msgValidated  = "Payment validated"
	msgFlagged    = "Potential fraud"
	msgCleared    = "No fraud"
	msgSettled    = "Payment settled"
)

// Store is the in-memory Ledger. A single lock guards the table and is held
// for exactly one operation. Callers only ever receive copies.
type Store struct {
	mu        sync.RWMutex
	byRequest map[string]*models.Payment
	byTx      map[string]*models.Payment
	order     []*models.Payment

	log      *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
	created  prometheus.Counter
	duration prometheus.Histogram
}

func NewStore(log *zap.SugaredLogger, reg prometheus.Registerer) *Store {
	return &Store{
		byRequest: make(map[string]*models.Payment),
		byTx:      make(map[string]*models.Payment),
		log:       log,
		now:       time.Now,
		newID:     tool.GenerateUUIDV7,
		created:   metrics.Counter(reg, metrics.PaymentsCreated),
		duration:  metrics.Histogram(reg, metrics.PaymentProcessDuration),
	}
}

func (s *Store) Create(ctx context.Context, req *models.CreatePaymentRequest) (*models.Payment, bool, error) {
	if req == nil || strings.TrimSpace(req.RequestID) == "" {
		return nil, false, fmt.Errorf("%w: requestId is required", ErrInvalidRequest)
	}
	amount, err := checkAmount(req.Amount)
	if err != nil {
		return nil, false, err
	}
	start := time.Now()

	p, created, err := s.insert(req, amount)
	if err != nil || !created {
		return p, false, err
	}

	s.created.Inc()
	s.duration.Observe(time.Since(start).Seconds())
	logctx.FromCtx(ctx, s.log).Infow("payment created",
		"request_id", p.RequestID,
		"transaction_id", p.TransactionID,
		"amount", p.Amount.String(),
		"payment_method", p.PaymentMethod,
	)
	return p, true, nil
}

// insert adds the record for req unless its requestId is known and returns a
// copy of the stored record.
func (s *Store) insert(req *models.CreatePaymentRequest, amount decimal.Decimal) (*models.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byRequest[req.RequestID]; ok {
		return existing.Clone(), false, nil
	}

	p := &models.Payment{
		RequestID:     req.RequestID,
		TransactionID: s.newID(),
		UserID:        req.UserID,
		MerchantID:    req.MerchantID,
		Amount:        amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Status:        types.PaymentStatusPending,
		Message:       msgProcessing,
		CreatedAt:     s.now().UTC(),
	}
	if _, dup := s.byTx[p.TransactionID]; dup {
		return nil, false, fmt.Errorf("transaction id collision: %s", p.TransactionID)
	}
	s.byRequest[p.RequestID] = p
	s.byTx[p.TransactionID] = p
	s.order = append(s.order, p)
	return p.Clone(), true, nil
}

func (s *Store) List(_ context.Context) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Payment, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, transactionID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byTx[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, transactionID)
	}
	return p.Clone(), nil
}

// Transition applies kind to the payment. Calls that find the record outside
// the expected source state are no-ops, except settle which rejects anything
// that is neither CLEARED nor already SETTLED.
func (s *Store) Transition(ctx context.Context, transactionID string, kind types.TransitionKind) (*models.TransitionResult, error) {
	res, from, err := s.transition(transactionID, kind)
	if err != nil {
		return nil, err
	}

	lg := logctx.FromCtx(ctx, s.log)
	if res.Applied {
		lg.Infow("payment transitioned", "transaction_id", transactionID, "kind", kind, "from", from, "to", res.Payment.Status)
	} else {
		lg.Debugw("transition ignored", "transaction_id", transactionID, "kind", kind, "status", res.Payment.Status)
	}
	return res, nil
}

func (s *Store) transition(transactionID string, kind types.TransitionKind) (*models.TransitionResult, types.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byTx[transactionID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, transactionID)
	}
	from := p.Status
	applied, err := s.apply(p, kind)
	if err != nil {
		return nil, from, err
	}
	return &models.TransitionResult{Payment: p.Clone(), Applied: applied}, from, nil
}

// apply mutates p in place. Callers hold s.mu.
func (s *Store) apply(p *models.Payment, kind types.TransitionKind) (bool, error) {
	switch kind {
	case types.TransitionValidate:
		if p.Status != types.PaymentStatusPending {
			return false, nil
		}
		p.Status, p.Message = types.PaymentStatusValidated, msgValidated
	case types.TransitionFraudCheck:
		if p.Status != types.PaymentStatusValidated {
			return false, nil
		}
		if p.Amount.GreaterThan(FraudThreshold) {
			p.Status, p.Message = types.PaymentStatusFlagged, msgFlagged
		} else {
			p.Status, p.Message = types.PaymentStatusCleared, msgCleared
		}
	case types.TransitionSettle:
		switch p.Status {
		case types.PaymentStatusSettled:
			return false, nil
		case types.PaymentStatusCleared:
			settledAt := s.now().UTC()
			p.Status, p.Message, p.SettledAt = types.PaymentStatusSettled, msgSettled, &settledAt
		default:
			return false, fmt.Errorf("%w: cannot settle unless CLEARED (status %s)", ErrInvalidTransition, p.Status)
		}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownTransition, kind)
	}
	return true, nil
}
