package persistence

import (
	"context"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations; row locks
// taken inside the scope are held until commit or rollback.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appsettlement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all settlement repositories
// within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// DebtRepo returns the debt repository scoped to the current transaction.
func (r *gormTransactionalRepositories) DebtRepo() settlement.DebtRepository {
	return NewGormDebtRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRepo() settlement.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// AllocationRepo returns the allocation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AllocationRepo() settlement.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appsettlement.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appsettlement.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
