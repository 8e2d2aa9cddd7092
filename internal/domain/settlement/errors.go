package settlement

import (
	"fmt"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Settlement-specific domain errors
var (
	ErrInsufficientPaymentCapacity = shared.NewDomainError("INSUFFICIENT_PAYMENT_CAPACITY", "Requested allocation total exceeds the payment's unallocated amount")
	ErrDebtNotSettleable           = shared.NewDomainError("DEBT_NOT_SETTLEABLE", "Debt does not exist, belongs to another tenant or counterparty, or is not in an allocatable state")
	ErrReversalNotAllowed          = shared.NewDomainError("REVERSAL_NOT_ALLOWED", "Payment cannot be reversed because a settled debt was voided out of band")
	ErrAlreadyAllocated            = shared.NewDomainError("ALREADY_ALLOCATED", "Payment already has an allocation against this debt")
)

// NewValidationError creates a validation error with a specific message
func NewValidationError(message string) *shared.DomainError {
	return shared.NewDomainError("VALIDATION_ERROR", message)
}

// NewAmountExceedsPendingError reports an allocation amount larger than the
// debt's pending balance, carrying the offending debt id and current pending
// value so the caller can display them.
func NewAmountExceedsPendingError(debtID uuid.UUID, pending valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(
		"AMOUNT_EXCEEDS_PENDING",
		fmt.Sprintf("Allocation amount exceeds pending balance %s of debt %s", pending.StringFixed(2), debtID),
	).WithDetail("debt_id", debtID.String()).WithDetail("pending_amount", pending.StringFixed(2))
}
