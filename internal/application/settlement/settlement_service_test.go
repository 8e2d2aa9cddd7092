package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/cache"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type serviceFixture struct {
	stores   *memStores
	scope    *memTransactionScope
	svc      *SettlementService
	tenantID uuid.UUID
	actor    uuid.UUID
}

func newServiceFixture(t *testing.T, opts ...Option) *serviceFixture {
	t.Helper()
	stores := newMemStores()
	scope := newMemTransactionScope(stores)
	svc := NewSettlementService(scope, scope.debts, scope.payments, scope.allocations, zap.NewNop(), opts...)
	return &serviceFixture{
		stores:   stores,
		scope:    scope,
		svc:      svc,
		tenantID: uuid.New(),
		actor:    uuid.New(),
	}
}

func (f *serviceFixture) createDebt(t *testing.T, counterpartyID uuid.UUID, amount string, dueIn time.Duration) *DebtResponse {
	t.Helper()
	resp, err := f.svc.CreateDebt(context.Background(), f.tenantID, CreateDebtRequest{
		Role:                 settlement.RoleReceivable,
		CounterpartyID:       counterpartyID,
		SourceDocumentID:     uuid.New(),
		SourceDocumentNumber: "INV-2026-100",
		DocumentDate:         time.Now().Add(-30 * 24 * time.Hour),
		DueDate:              time.Now().Add(dueIn),
		OriginalAmount:       decimal.RequireFromString(amount),
	}, f.actor)
	require.NoError(t, err)
	return resp
}

func (f *serviceFixture) createPayment(t *testing.T, counterpartyID uuid.UUID, amount string) *PaymentResponse {
	t.Helper()
	resp, err := f.svc.CreatePayment(context.Background(), f.tenantID, CreatePaymentRequest{
		Role:           settlement.RoleReceivable,
		CounterpartyID: counterpartyID,
		TotalAmount:    decimal.RequireFromString(amount),
		Method:         settlement.MethodCash,
		PaymentDate:    time.Now(),
	}, f.actor)
	require.NoError(t, err)
	return resp
}

// ============================================
// CreateDebt Tests
// ============================================

func TestSettlementService_CreateDebt(t *testing.T) {
	ctx := context.Background()

	t.Run("creates debt with generated number", func(t *testing.T) {
		f := newServiceFixture(t)
		resp := f.createDebt(t, uuid.New(), "1000.00", 30*24*time.Hour)

		assert.Contains(t, resp.DebtNumber, "AR-")
		assert.Equal(t, settlement.DebtStatusPending, resp.Status)
		assert.Equal(t, "1000.00", resp.OriginalAmount)
		assert.Equal(t, "0.00", resp.SettledAmount)
		assert.Equal(t, "1000.00", resp.PendingAmount)
		assert.Equal(t, "PEN", resp.Currency)
		assert.Equal(t, 1, resp.Version)
	})

	t.Run("rejects second debt for same source document", func(t *testing.T) {
		f := newServiceFixture(t)
		req := CreateDebtRequest{
			Role:                 settlement.RoleReceivable,
			CounterpartyID:       uuid.New(),
			SourceDocumentID:     uuid.New(),
			SourceDocumentNumber: "INV-2026-200",
			DocumentDate:         time.Now().Add(-24 * time.Hour),
			DueDate:              time.Now().Add(30 * 24 * time.Hour),
			OriginalAmount:       decimal.RequireFromString("250.00"),
		}
		_, err := f.svc.CreateDebt(ctx, f.tenantID, req, f.actor)
		require.NoError(t, err)

		_, err = f.svc.CreateDebt(ctx, f.tenantID, req, f.actor)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.CreateDebt(ctx, f.tenantID, CreateDebtRequest{
			Role:             settlement.RoleReceivable,
			CounterpartyID:   uuid.New(),
			SourceDocumentID: uuid.New(),
			DocumentDate:     time.Now().Add(-24 * time.Hour),
			DueDate:          time.Now().Add(30 * 24 * time.Hour),
			OriginalAmount:   decimal.RequireFromString("-10.00"),
		}, f.actor)
		assert.Error(t, err)
	})
}

// ============================================
// CreatePayment Tests
// ============================================

func TestSettlementService_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates fully unallocated payment", func(t *testing.T) {
		f := newServiceFixture(t)
		resp := f.createPayment(t, uuid.New(), "800.00")

		assert.Contains(t, resp.PaymentNumber, "RC-")
		assert.Equal(t, "800.00", resp.TotalAmount)
		assert.Equal(t, "0.00", resp.AmountAllocated)
		assert.Equal(t, "800.00", resp.AmountAvailable)
		assert.Empty(t, resp.Allocations)
	})

	t.Run("rejects bank transfer without reference", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.CreatePayment(ctx, f.tenantID, CreatePaymentRequest{
			Role:           settlement.RoleReceivable,
			CounterpartyID: uuid.New(),
			TotalAmount:    decimal.RequireFromString("100.00"),
			Method:         settlement.MethodBankTransfer,
			PaymentDate:    time.Now(),
		}, f.actor)
		assert.Error(t, err)
	})
}

// ============================================
// ApplyPayment Tests
// ============================================

func TestSettlementService_ApplyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("applies across multiple debts atomically", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		d1 := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
		d2 := f.createDebt(t, counterparty, "300.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "800.00")

		resp, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID: payment.ID,
			Allocations: []AllocationRequest{
				{DebtID: d1.ID, Amount: decimal.RequireFromString("500.00")},
				{DebtID: d2.ID, Amount: decimal.RequireFromString("300.00")},
			},
		}, f.actor)
		require.NoError(t, err)

		assert.Equal(t, "800.00", resp.Payment.AmountAllocated)
		assert.Equal(t, "0.00", resp.Payment.AmountAvailable)
		assert.Len(t, resp.Payment.Allocations, 2)
		require.Len(t, resp.Debts, 2)

		byID := make(map[uuid.UUID]DebtResponse)
		for _, d := range resp.Debts {
			byID[d.ID] = d
		}
		assert.Equal(t, settlement.DebtStatusPartiallySettled, byID[d1.ID].Status)
		assert.Equal(t, "500.00", byID[d1.ID].PendingAmount)
		assert.Equal(t, settlement.DebtStatusSettled, byID[d2.ID].Status)
		assert.Equal(t, "0.00", byID[d2.ID].PendingAmount)

		// Persisted state matches the response.
		stored, err := f.svc.GetDebt(ctx, f.tenantID, d1.ID)
		require.NoError(t, err)
		assert.Equal(t, "500.00", stored.SettledAmount)
	})

	t.Run("validates the allocation list before touching anything", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "100.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "100.00")

		cases := []struct {
			name        string
			allocations []AllocationRequest
		}{
			{"empty list", nil},
			{"nil debt ID", []AllocationRequest{{DebtID: uuid.Nil, Amount: decimal.RequireFromString("10.00")}}},
			{"zero amount", []AllocationRequest{{DebtID: debt.ID, Amount: decimal.Zero}}},
			{"negative amount", []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("-5.00")}}},
			{"duplicate debt", []AllocationRequest{
				{DebtID: debt.ID, Amount: decimal.RequireFromString("10.00")},
				{DebtID: debt.ID, Amount: decimal.RequireFromString("20.00")},
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
					PaymentID:   payment.ID,
					Allocations: tc.allocations,
				}, f.actor)
				var domainErr *shared.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
			})
		}
	})

	t.Run("rejects allocation total beyond payment capacity", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "800.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("900.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrInsufficientPaymentCapacity)
	})

	t.Run("rolls back every pair when one exceeds pending", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		d1 := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
		d2 := f.createDebt(t, counterparty, "300.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "2000.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID: payment.ID,
			Allocations: []AllocationRequest{
				{DebtID: d1.ID, Amount: decimal.RequireFromString("500.00")},
				{DebtID: d2.ID, Amount: decimal.RequireFromString("400.00")},
			},
		}, f.actor)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "AMOUNT_EXCEEDS_PENDING", domainErr.Code)

		// Neither debt moved, no allocation survived, payment untouched.
		for _, id := range []uuid.UUID{d1.ID, d2.ID} {
			stored, err := f.svc.GetDebt(ctx, f.tenantID, id)
			require.NoError(t, err)
			assert.Equal(t, "0.00", stored.SettledAmount)
			assert.Equal(t, settlement.DebtStatusPending, stored.Status)
		}
		storedPayment, err := f.svc.GetPayment(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "0.00", storedPayment.AmountAllocated)
		assert.Empty(t, storedPayment.Allocations)
	})

	t.Run("rejects debt from another counterparty", func(t *testing.T) {
		f := newServiceFixture(t)
		debt := f.createDebt(t, uuid.New(), "100.00", 30*24*time.Hour)
		payment := f.createPayment(t, uuid.New(), "100.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("50.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrDebtNotSettleable)
	})

	t.Run("rejects role mismatch", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "100.00", 30*24*time.Hour)

		payable, err := f.svc.CreatePayment(ctx, f.tenantID, CreatePaymentRequest{
			Role:           settlement.RolePayable,
			CounterpartyID: counterparty,
			TotalAmount:    decimal.RequireFromString("100.00"),
			Method:         settlement.MethodCash,
			PaymentDate:    time.Now(),
		}, f.actor)
		require.NoError(t, err)

		_, err = f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payable.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("50.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrDebtNotSettleable)
	})

	t.Run("rejects unknown debt", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		payment := f.createPayment(t, counterparty, "100.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: uuid.New(), Amount: decimal.RequireFromString("50.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrDebtNotSettleable)
	})

	t.Run("rejects voided debt", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "100.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "100.00")

		_, err := f.svc.VoidDebt(ctx, f.tenantID, debt.ID, f.actor, "cancelled")
		require.NoError(t, err)

		_, err = f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("50.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrDebtNotSettleable)
	})

	t.Run("rejects second allocation against the same pair", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "800.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("200.00")}},
		}, f.actor)
		require.NoError(t, err)

		_, err = f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("100.00")}},
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrAlreadyAllocated)
	})
}

// ============================================
// Idempotency Tests
// ============================================

func TestSettlementService_ApplyPayment_Idempotency(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	f := newServiceFixture(t, WithIdempotencyStore(store, shared.IdempotencyConfig{
		TTL:     time.Minute,
		Enabled: true,
	}))
	counterparty := uuid.New()
	debt := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
	payment := f.createPayment(t, counterparty, "800.00")

	req := ApplyPaymentRequest{
		PaymentID:      payment.ID,
		Allocations:    []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("500.00")}},
		IdempotencyKey: "apply-" + payment.ID.String(),
	}

	first, err := f.svc.ApplyPayment(ctx, f.tenantID, req, f.actor)
	require.NoError(t, err)
	assert.Len(t, first.Debts, 1)

	// Retry with the same key replays the current payment state instead of
	// allocating twice.
	second, err := f.svc.ApplyPayment(ctx, f.tenantID, req, f.actor)
	require.NoError(t, err)
	assert.Empty(t, second.Debts)
	assert.Equal(t, "500.00", second.Payment.AmountAllocated)
	assert.Len(t, second.Payment.Allocations, 1)

	stored, err := f.svc.GetDebt(ctx, f.tenantID, debt.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", stored.SettledAmount)
}

// ============================================
// ReversePayment Tests
// ============================================

func TestSettlementService_ReversePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("restores debts and deletes allocations", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		d1 := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
		d2 := f.createDebt(t, counterparty, "300.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "800.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID: payment.ID,
			Allocations: []AllocationRequest{
				{DebtID: d1.ID, Amount: decimal.RequireFromString("500.00")},
				{DebtID: d2.ID, Amount: decimal.RequireFromString("300.00")},
			},
		}, f.actor)
		require.NoError(t, err)

		resp, err := f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{
			PaymentID: payment.ID,
			Reason:    "posted to wrong customer",
		}, f.actor)
		require.NoError(t, err)

		assert.Equal(t, "0.00", resp.Payment.AmountAllocated)
		assert.Equal(t, "800.00", resp.Payment.AmountAvailable)
		assert.Contains(t, resp.Payment.Note, "posted to wrong customer")
		require.Len(t, resp.Debts, 2)

		// The fully settled debt reopens, the partial one returns to pending.
		for _, id := range []uuid.UUID{d1.ID, d2.ID} {
			stored, err := f.svc.GetDebt(ctx, f.tenantID, id)
			require.NoError(t, err)
			assert.Equal(t, "0.00", stored.SettledAmount)
			assert.Equal(t, settlement.DebtStatusPending, stored.Status)
		}
		storedPayment, err := f.svc.GetPayment(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Empty(t, storedPayment.Allocations)
	})

	t.Run("reversing an unallocated payment is a no-op", func(t *testing.T) {
		f := newServiceFixture(t)
		payment := f.createPayment(t, uuid.New(), "100.00")

		resp, err := f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{
			PaymentID: payment.ID,
			Reason:    "nothing to undo",
		}, f.actor)
		require.NoError(t, err)
		assert.Empty(t, resp.Debts)
		assert.Equal(t, "0.00", resp.Payment.AmountAllocated)
	})

	t.Run("reversing twice is idempotent", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "500.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "500.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("500.00")}},
		}, f.actor)
		require.NoError(t, err)

		_, err = f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{PaymentID: payment.ID, Reason: "first"}, f.actor)
		require.NoError(t, err)

		resp, err := f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{PaymentID: payment.ID, Reason: "second"}, f.actor)
		require.NoError(t, err)
		assert.Empty(t, resp.Debts)

		stored, err := f.svc.GetDebt(ctx, f.tenantID, debt.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.DebtStatusPending, stored.Status)
	})

	t.Run("blocked when a settled debt was voided out of band", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "500.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "500.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("200.00")}},
		}, f.actor)
		require.NoError(t, err)

		// Simulate a direct datastore intervention that voided the debt.
		f.stores.debts[debt.ID].Status = settlement.DebtStatusVoid

		_, err = f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{
			PaymentID: payment.ID,
			Reason:    "undo",
		}, f.actor)
		assert.ErrorIs(t, err, settlement.ErrReversalNotAllowed)

		// Rollback kept the allocation intact.
		storedPayment, err := f.svc.GetPayment(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Len(t, storedPayment.Allocations, 1)
	})
}

// ============================================
// VoidDebt Tests
// ============================================

func TestSettlementService_VoidDebt(t *testing.T) {
	ctx := context.Background()

	t.Run("voids a pending debt", func(t *testing.T) {
		f := newServiceFixture(t)
		debt := f.createDebt(t, uuid.New(), "100.00", 30*24*time.Hour)

		resp, err := f.svc.VoidDebt(ctx, f.tenantID, debt.ID, f.actor, "duplicate invoice")
		require.NoError(t, err)
		assert.Equal(t, settlement.DebtStatusVoid, resp.Status)
		assert.Equal(t, "duplicate invoice", resp.VoidReason)
	})

	t.Run("voiding twice is a no-op success", func(t *testing.T) {
		f := newServiceFixture(t)
		debt := f.createDebt(t, uuid.New(), "100.00", 30*24*time.Hour)

		first, err := f.svc.VoidDebt(ctx, f.tenantID, debt.ID, f.actor, "original reason")
		require.NoError(t, err)

		second, err := f.svc.VoidDebt(ctx, f.tenantID, debt.ID, f.actor, "different reason")
		require.NoError(t, err)
		assert.Equal(t, "original reason", second.VoidReason)
		assert.Equal(t, first.Version, second.Version)
	})

	t.Run("fails once anything is settled against the debt", func(t *testing.T) {
		f := newServiceFixture(t)
		counterparty := uuid.New()
		debt := f.createDebt(t, counterparty, "500.00", 30*24*time.Hour)
		payment := f.createPayment(t, counterparty, "500.00")

		_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
			PaymentID:   payment.ID,
			Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("100.00")}},
		}, f.actor)
		require.NoError(t, err)

		_, err = f.svc.VoidDebt(ctx, f.tenantID, debt.ID, f.actor, "too late")
		assert.Error(t, err)
	})

	t.Run("fails for unknown debt", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.VoidDebt(ctx, f.tenantID, uuid.New(), f.actor, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

// ============================================
// Actor Audit Tests
// ============================================

func TestSettlementService_ActorStamping(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	counterparty := uuid.New()
	debt := f.createDebt(t, counterparty, "500.00", 30*24*time.Hour)
	payment := f.createPayment(t, counterparty, "500.00")

	_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
		PaymentID:   payment.ID,
		Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("200.00")}},
	}, f.actor)
	require.NoError(t, err)

	// Apply stamps the acting user on both mutated rows.
	storedDebt := f.stores.debts[debt.ID]
	require.NotNil(t, storedDebt.UpdatedBy)
	assert.Equal(t, f.actor, *storedDebt.UpdatedBy)
	storedPayment := f.stores.payments[payment.ID]
	require.NotNil(t, storedPayment.UpdatedBy)
	assert.Equal(t, f.actor, *storedPayment.UpdatedBy)

	// A reversal by a different user restamps them.
	reverser := uuid.New()
	_, err = f.svc.ReversePayment(ctx, f.tenantID, ReversePaymentRequest{
		PaymentID: payment.ID,
		Reason:    "posted in error",
	}, reverser)
	require.NoError(t, err)
	assert.Equal(t, reverser, *f.stores.debts[debt.ID].UpdatedBy)
	assert.Equal(t, reverser, *f.stores.payments[payment.ID].UpdatedBy)

	// So does a void.
	voider := uuid.New()
	_, err = f.svc.VoidDebt(ctx, f.tenantID, debt.ID, voider, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, voider, *f.stores.debts[debt.ID].UpdatedBy)
}

func TestSettlementService_AuditLogCarriesActor(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	stores := newMemStores()
	scope := newMemTransactionScope(stores)
	svc := NewSettlementService(scope, scope.debts, scope.payments, scope.allocations, zap.New(core))

	tenantID := uuid.New()
	actor := uuid.New()
	counterparty := uuid.New()

	// The request context carries the forwarded identity; audit entries pick
	// it up alongside the explicit actor field.
	ctx, _ := logger.WithUserID(context.Background(), zap.NewNop(), actor.String())

	debt, err := svc.CreateDebt(ctx, tenantID, CreateDebtRequest{
		Role:             settlement.RoleReceivable,
		CounterpartyID:   counterparty,
		SourceDocumentID: uuid.New(),
		DocumentDate:     time.Now().Add(-30 * 24 * time.Hour),
		DueDate:          time.Now().Add(30 * 24 * time.Hour),
		OriginalAmount:   decimal.RequireFromString("100.00"),
	}, actor)
	require.NoError(t, err)

	payment, err := svc.CreatePayment(ctx, tenantID, CreatePaymentRequest{
		Role:           settlement.RoleReceivable,
		CounterpartyID: counterparty,
		TotalAmount:    decimal.RequireFromString("100.00"),
		Method:         settlement.MethodCash,
		PaymentDate:    time.Now(),
	}, actor)
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, tenantID, ApplyPaymentRequest{
		PaymentID:   payment.ID,
		Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("100.00")}},
	}, actor)
	require.NoError(t, err)

	byEventType := make(map[string]map[string]any)
	for _, entry := range recorded.All() {
		if entry.Message != "domain event" {
			continue
		}
		fields := entry.ContextMap()
		eventType, _ := fields["event_type"].(string)
		byEventType[eventType] = fields
	}

	for _, eventType := range []string{
		settlement.EventTypeDebtCreated,
		settlement.EventTypePaymentApplied,
		settlement.EventTypeDebtSettled,
	} {
		fields, ok := byEventType[eventType]
		require.True(t, ok, "missing audit entry for %s", eventType)
		assert.Equal(t, actor.String(), fields["actor"])
		assert.Equal(t, actor.String(), fields["user_id"])
		assert.Equal(t, tenantID.String(), fields["tenant_id"])
	}
}

// ============================================
// Overdue Sweep Tests
// ============================================

func TestSettlementService_MarkOverdueSweep(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	counterparty := uuid.New()

	f.createDebt(t, counterparty, "100.00", -48*time.Hour)
	f.createDebt(t, counterparty, "200.00", -24*time.Hour)
	f.createDebt(t, counterparty, "300.00", 30*24*time.Hour)

	resp, err := f.svc.MarkOverdueSweep(ctx, f.tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Affected)

	// Second run over the same data affects nothing.
	resp, err = f.svc.MarkOverdueSweep(ctx, f.tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Affected)

	overdue := settlement.DebtStatusOverdue
	debts, total, err := f.svc.ListDebts(ctx, f.tenantID, settlement.DebtFilter{Status: &overdue})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, debts, 2)
}

func TestSettlementService_SweepAllTenants(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	counterparty := uuid.New()

	f.createDebt(t, counterparty, "100.00", -24*time.Hour)

	otherTenant := uuid.New()
	_, err := f.svc.CreateDebt(ctx, otherTenant, CreateDebtRequest{
		Role:             settlement.RoleReceivable,
		CounterpartyID:   uuid.New(),
		SourceDocumentID: uuid.New(),
		DocumentDate:     time.Now().Add(-72 * time.Hour),
		DueDate:          time.Now().Add(-24 * time.Hour),
		OriginalAmount:   decimal.RequireFromString("50.00"),
	}, f.actor)
	require.NoError(t, err)

	resp, err := f.svc.SweepAllTenants(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Tenants)
	assert.Equal(t, int64(2), resp.Affected)
}

func TestSettlementService_SweepAllTenants_SkipsFailingTenant(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	f.createDebt(t, uuid.New(), "100.00", -24*time.Hour)

	otherTenant := uuid.New()
	_, err := f.svc.CreateDebt(ctx, otherTenant, CreateDebtRequest{
		Role:             settlement.RoleReceivable,
		CounterpartyID:   uuid.New(),
		SourceDocumentID: uuid.New(),
		DocumentDate:     time.Now().Add(-72 * time.Hour),
		DueDate:          time.Now().Add(-24 * time.Hour),
		OriginalAmount:   decimal.RequireFromString("50.00"),
	}, f.actor)
	require.NoError(t, err)

	f.scope.debts.sweepErr = map[uuid.UUID]error{
		f.tenantID: errors.New("connection reset"),
	}

	resp, err := f.svc.SweepAllTenants(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Tenants)
	assert.Equal(t, int64(1), resp.Affected)
}

// ============================================
// Query Tests
// ============================================

func TestSettlementService_GetDebtSummary(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	counterparty := uuid.New()

	f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
	d2 := f.createDebt(t, counterparty, "400.00", 30*24*time.Hour)
	voided := f.createDebt(t, counterparty, "250.00", 30*24*time.Hour)

	payment := f.createPayment(t, counterparty, "400.00")
	_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
		PaymentID:   payment.ID,
		Allocations: []AllocationRequest{{DebtID: d2.ID, Amount: decimal.RequireFromString("400.00")}},
	}, f.actor)
	require.NoError(t, err)

	_, err = f.svc.VoidDebt(ctx, f.tenantID, voided.ID, f.actor, "cancelled")
	require.NoError(t, err)

	summary, err := f.svc.GetDebtSummary(ctx, f.tenantID, settlement.RoleReceivable)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.CountsByStatus[settlement.DebtStatusPending])
	assert.Equal(t, int64(1), summary.CountsByStatus[settlement.DebtStatusSettled])
	assert.Equal(t, int64(1), summary.CountsByStatus[settlement.DebtStatusVoid])
	assert.Equal(t, "1000.00", summary.TotalPending)
}

func TestSettlementService_GetPayment(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	counterparty := uuid.New()
	debt := f.createDebt(t, counterparty, "1000.00", 30*24*time.Hour)
	payment := f.createPayment(t, counterparty, "800.00")

	_, err := f.svc.ApplyPayment(ctx, f.tenantID, ApplyPaymentRequest{
		PaymentID:   payment.ID,
		Allocations: []AllocationRequest{{DebtID: debt.ID, Amount: decimal.RequireFromString("300.00")}},
	}, f.actor)
	require.NoError(t, err)

	resp, err := f.svc.GetPayment(ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", resp.AmountAllocated)
	assert.Equal(t, "500.00", resp.AmountAvailable)
	require.Len(t, resp.Allocations, 1)
	assert.Equal(t, debt.ID, resp.Allocations[0].DebtID)

	t.Run("not found for other tenant", func(t *testing.T) {
		_, err := f.svc.GetPayment(ctx, uuid.New(), payment.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
