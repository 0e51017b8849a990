package ledger

import (
	"context"
	"errors"

	models "github.com/fatflowers/payflow/internal/models"
	types "github.com/fatflowers/payflow/pkg/types"
)

var (
	// ErrNotFound is returned for an unknown transaction id.
	ErrNotFound = errors.New("payment not found")
	// ErrInvalidTransition is returned when settle is called outside CLEARED.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidRequest rejects a create payload without an idempotency key.
	ErrInvalidRequest = errors.New("invalid payment request")
	// ErrUnknownTransition rejects a transition kind the ledger does not know.
	ErrUnknownTransition = errors.New("unknown transition")
)

// Ledger is the authoritative table of payments and the only component
// allowed to change a payment's status.
type Ledger interface {
	// Create is idempotent on RequestID. created is false when the record
	// already existed; it is then returned unchanged.
	Create(ctx context.Context, req *models.CreatePaymentRequest) (p *models.Payment, created bool, err error)
	// List returns a snapshot of every record.
	List(ctx context.Context) ([]*models.Payment, error)
	Get(ctx context.Context, transactionID string) (*models.Payment, error)
	Transition(ctx context.Context, transactionID string, kind types.TransitionKind) (*models.TransitionResult, error)
}
