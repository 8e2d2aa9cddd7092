package settlement

import (
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Allocation links one payment to one debt with the portion of the payment
// applied to that debt. The (payment, debt) pair is unique: a payment may not
// allocate to the same debt twice. Allocations have no independent lifecycle;
// they are created by the settlement service's apply operation and hard-deleted
// by its reversal.
type Allocation struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	PaymentID     uuid.UUID
	DebtID        uuid.UUID
	AmountApplied valueobject.Money
	CreatedBy     *uuid.UUID
}

// NewAllocation creates an allocation. Cross-checks against the debt's pending
// balance and the payment's capacity are the settlement service's job; this
// constructor only validates the allocation's own shape.
func NewAllocation(tenantID, paymentID, debtID uuid.UUID, amount valueobject.Money, createdBy *uuid.UUID) (*Allocation, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("tenant ID is required")
	}
	if paymentID == uuid.Nil || debtID == uuid.Nil {
		return nil, NewValidationError("payment ID and debt ID are required")
	}
	if !amount.IsPositive() {
		return nil, NewValidationError("allocation amount must be positive")
	}

	return &Allocation{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		PaymentID:     paymentID,
		DebtID:        debtID,
		AmountApplied: amount,
		CreatedBy:     createdBy,
	}, nil
}
