package settlement

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
)

// TransactionScope provides transactional access to settlement repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll back
// atomically. Apply and reverse run entirely inside one scope so that no
// partial allocation list is ever half-applied.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all settlement repositories
// within a transaction. All repositories returned share the same underlying
// database transaction; in particular, row locks taken by
// DebtRepo().FindByIDsForUpdate are held until the scope completes.
type TransactionalRepositories interface {
	DebtRepo() settlement.DebtRepository
	PaymentRepo() settlement.PaymentRepository
	AllocationRepo() settlement.AllocationRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing with in-memory repositories.
type NoOpTransactionScope struct {
	debtRepo       settlement.DebtRepository
	paymentRepo    settlement.PaymentRepository
	allocationRepo settlement.AllocationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	debtRepo settlement.DebtRepository,
	paymentRepo settlement.PaymentRepository,
	allocationRepo settlement.AllocationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		debtRepo:       debtRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// DebtRepo returns the debt repository.
func (s *NoOpTransactionScope) DebtRepo() settlement.DebtRepository {
	return s.debtRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() settlement.PaymentRepository {
	return s.paymentRepo
}

// AllocationRepo returns the allocation repository.
func (s *NoOpTransactionScope) AllocationRepo() settlement.AllocationRepository {
	return s.allocationRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
