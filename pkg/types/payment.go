package types

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusValidated PaymentStatus = "VALIDATED"
	PaymentStatusCleared   PaymentStatus = "CLEARED"
	PaymentStatusFlagged   PaymentStatus = "FLAGGED"
	PaymentStatusSettled   PaymentStatus = "SETTLED"
)

// IsTerminal reports whether no transition can move a payment out of s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSettled || s == PaymentStatusFlagged
}

// TransitionKind names a ledger state-transition operation. The values double
// as the last path segment of the transition endpoints.
type TransitionKind string

const (
	TransitionValidate   TransitionKind = "validate"
	TransitionFraudCheck TransitionKind = "fraud"
	TransitionSettle     TransitionKind = "settle"
)

func ParseTransitionKind(s string) (TransitionKind, error) {
	switch k := TransitionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TransitionValidate, TransitionFraudCheck, TransitionSettle:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transition kind: %q", s)
	}
}

// WorkerRole selects which pipeline stage a worker process runs.
type WorkerRole string

const (
	WorkerRoleValidation WorkerRole = "validation"
	WorkerRoleFraud      WorkerRole = "fraud"
	WorkerRoleSettlement WorkerRole = "settlement"
)

func ParseWorkerRole(s string) (WorkerRole, error) {
	switch r := WorkerRole(strings.ToLower(strings.TrimSpace(s))); r {
	case WorkerRoleValidation, WorkerRoleFraud, WorkerRoleSettlement:
		return r, nil
	default:
		return "", fmt.Errorf("unknown worker role: %q (want validation, fraud or settlement)", s)
	}
}
