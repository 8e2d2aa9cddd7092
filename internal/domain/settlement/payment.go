package settlement

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheck        PaymentMethod = "CHECK"
	MethodCard         PaymentMethod = "CARD"
	MethodOnline       PaymentMethod = "ONLINE"
	MethodOther        PaymentMethod = "OTHER"
)

// IsValid returns true if the method is a known value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck, MethodCard, MethodOnline, MethodOther:
		return true
	}
	return false
}

// RequiresReference returns true for methods that mandate an external
// reference string (bank operation number, check number). The set is closed
// and fixed at compile time.
func (m PaymentMethod) RequiresReference() bool {
	return m == MethodBankTransfer || m == MethodCheck
}

// Payment is one money movement: a receipt from a customer (RECEIVABLE role)
// or a disbursement to a supplier (PAYABLE role). Its total amount is
// immutable after creation and it is never deleted, even when fully reversed.
// The unallocated remainder is always recomputed from the allocation records,
// never stored.
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber  string
	Role           PartyRole
	CounterpartyID uuid.UUID
	TotalAmount    valueobject.Money
	Method         PaymentMethod
	Reference      string
	PaymentDate    time.Time
	Note           string
}

// NewPayment creates a new, fully unallocated payment.
func NewPayment(
	tenantID uuid.UUID,
	role PartyRole,
	paymentNumber string,
	counterpartyID uuid.UUID,
	totalAmount valueobject.Money,
	method PaymentMethod,
	reference string,
	paymentDate time.Time,
) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("tenant ID is required")
	}
	if !role.IsValid() {
		return nil, NewValidationError("invalid party role")
	}
	if counterpartyID == uuid.Nil {
		return nil, NewValidationError("counterparty ID is required")
	}
	if !totalAmount.IsPositive() {
		return nil, NewValidationError("total amount must be positive")
	}
	if !method.IsValid() {
		return nil, NewValidationError("invalid payment method")
	}
	if method.RequiresReference() && strings.TrimSpace(reference) == "" {
		return nil, NewValidationError("payment method requires an external reference")
	}

	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentNumber:       paymentNumber,
		Role:                role,
		CounterpartyID:      counterpartyID,
		TotalAmount:         totalAmount,
		Method:              method,
		Reference:           strings.TrimSpace(reference),
		PaymentDate:         paymentDate,
	}, nil
}

// AmountAvailable returns the unallocated remainder given the current sum of
// this payment's allocations.
func (p *Payment) AmountAvailable(allocated valueobject.Money) valueobject.Money {
	return p.TotalAmount.MustSubtract(allocated)
}

// AppendNote appends a line to the payment's free-text note. Used by reversal
// to record the reason without mutating anything else on the payment. Version
// bookkeeping is left to the caller, which saves the payment once per
// operation.
func (p *Payment) AppendNote(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if p.Note == "" {
		p.Note = text
	} else {
		p.Note = p.Note + "\n" + text
	}
	p.UpdatedAt = time.Now()
}
