package settlement

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateDebtRequest is the input for registering a new debt
type CreateDebtRequest struct {
	Role                 settlement.PartyRole
	CounterpartyID       uuid.UUID
	SourceDocumentID     uuid.UUID
	SourceDocumentNumber string
	DocumentDate         time.Time
	DueDate              time.Time
	OriginalAmount       decimal.Decimal
	Currency             string
}

// CreatePaymentRequest is the input for registering a new payment
type CreatePaymentRequest struct {
	Role           settlement.PartyRole
	CounterpartyID uuid.UUID
	TotalAmount    decimal.Decimal
	Currency       string
	Method         settlement.PaymentMethod
	Reference      string
	PaymentDate    time.Time
}

// AllocationRequest is one (debt, amount) pair supplied by the caller
type AllocationRequest struct {
	DebtID uuid.UUID
	Amount decimal.Decimal
}

// ApplyPaymentRequest is the input for the apply operation
type ApplyPaymentRequest struct {
	PaymentID      uuid.UUID
	Allocations    []AllocationRequest
	IdempotencyKey string
}

// ReversePaymentRequest is the input for the reverse operation
type ReversePaymentRequest struct {
	PaymentID      uuid.UUID
	Reason         string
	IdempotencyKey string
}

// DebtResponse is the service-level view of a debt
type DebtResponse struct {
	ID                   uuid.UUID             `json:"id"`
	DebtNumber           string                `json:"debt_number"`
	Role                 settlement.PartyRole  `json:"role"`
	CounterpartyID       uuid.UUID             `json:"counterparty_id"`
	SourceDocumentID     uuid.UUID             `json:"source_document_id"`
	SourceDocumentNumber string                `json:"source_document_number"`
	DocumentDate         time.Time             `json:"document_date"`
	DueDate              time.Time             `json:"due_date"`
	OriginalAmount       string                `json:"original_amount"`
	SettledAmount        string                `json:"settled_amount"`
	PendingAmount        string                `json:"pending_amount"`
	Currency             string                `json:"currency"`
	Status               settlement.DebtStatus `json:"status"`
	VoidReason           string                `json:"void_reason,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	Version              int                   `json:"version"`
}

// AllocationResponse is the service-level view of an allocation
type AllocationResponse struct {
	ID            uuid.UUID `json:"id"`
	DebtID        uuid.UUID `json:"debt_id"`
	AmountApplied string    `json:"amount_applied"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaymentResponse is the service-level view of a payment with its allocations
type PaymentResponse struct {
	ID              uuid.UUID                `json:"id"`
	PaymentNumber   string                   `json:"payment_number"`
	Role            settlement.PartyRole     `json:"role"`
	CounterpartyID  uuid.UUID                `json:"counterparty_id"`
	TotalAmount     string                   `json:"total_amount"`
	AmountAllocated string                   `json:"amount_allocated"`
	AmountAvailable string                   `json:"amount_available"`
	Currency        string                   `json:"currency"`
	Method          settlement.PaymentMethod `json:"method"`
	Reference       string                   `json:"reference,omitempty"`
	PaymentDate     time.Time                `json:"payment_date"`
	Note            string                   `json:"note,omitempty"`
	Allocations     []AllocationResponse     `json:"allocations"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
	Version         int                      `json:"version"`
}

// ApplyPaymentResponse returns the refreshed payment plus the new pending
// balance and state of every debt touched, for caller confirmation display
type ApplyPaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Debts   []DebtResponse  `json:"debts"`
}

// ReversePaymentResponse returns the reversed payment plus the restored debts
type ReversePaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Debts   []DebtResponse  `json:"debts"`
}

// SweepResponse reports how many debts a sweep transitioned to OVERDUE
type SweepResponse struct {
	Affected int64 `json:"affected"`
}

// SweepAllTenantsResponse reports a cross-tenant sweep run
type SweepAllTenantsResponse struct {
	Tenants  int   `json:"tenants"`
	Affected int64 `json:"affected"`
}

// DebtSummaryResponse aggregates pending totals for reporting collaborators
type DebtSummaryResponse struct {
	CountsByStatus map[settlement.DebtStatus]int64 `json:"counts_by_status"`
	TotalPending   string                          `json:"total_pending"`
}

// SettlementService orchestrates the settlement engine: it validates, locks,
// mutates debts, maintains allocations and recomputes debt state, all inside a
// single transaction scope per operation. It is the only component allowed to
// write a debt's settled amount or status.
type SettlementService struct {
	txScope        TransactionScope
	debtRepo       settlement.DebtRepository
	paymentRepo    settlement.PaymentRepository
	allocationRepo settlement.AllocationRepository
	idempotency    shared.IdempotencyStore
	idemCfg        shared.IdempotencyConfig
	logger         *zap.Logger
}

// Option configures a SettlementService
type Option func(*SettlementService)

// WithIdempotencyStore enables idempotency-key handling for apply and reverse
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) Option {
	return func(s *SettlementService) {
		s.idempotency = store
		s.idemCfg = cfg
	}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	txScope TransactionScope,
	debtRepo settlement.DebtRepository,
	paymentRepo settlement.PaymentRepository,
	allocationRepo settlement.AllocationRepository,
	logger *zap.Logger,
	opts ...Option,
) *SettlementService {
	s := &SettlementService{
		txScope:        txScope,
		debtRepo:       debtRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
		idemCfg:        shared.DefaultIdempotencyConfig(),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDebt registers a new debt for an originating document. Exactly one
// debt may exist per source document (1:1).
func (s *SettlementService) CreateDebt(ctx context.Context, tenantID uuid.UUID, req CreateDebtRequest, actor uuid.UUID) (*DebtResponse, error) {
	exists, err := s.debtRepo.ExistsBySourceDocument(ctx, tenantID, req.Role, req.SourceDocumentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrAlreadyExists
	}

	amount, err := valueobject.NewMoney(req.OriginalAmount, currencyOrDefault(req.Currency))
	if err != nil {
		return nil, settlement.NewValidationError(err.Error())
	}

	number, err := s.debtRepo.GenerateDebtNumber(ctx, tenantID, req.Role)
	if err != nil {
		return nil, err
	}

	debt, err := settlement.NewDebt(
		tenantID,
		req.Role,
		number,
		req.CounterpartyID,
		req.SourceDocumentID,
		req.SourceDocumentNumber,
		req.DocumentDate,
		req.DueDate,
		amount,
	)
	if err != nil {
		return nil, err
	}
	if actor != uuid.Nil {
		debt.SetCreatedBy(actor)
	}

	if err := s.debtRepo.Save(ctx, debt); err != nil {
		return nil, err
	}

	s.logEvents(ctx, actor, debt.GetDomainEvents())
	debt.ClearDomainEvents()

	resp := toDebtResponse(debt)
	return &resp, nil
}

// CreatePayment registers a new, fully unallocated payment.
func (s *SettlementService) CreatePayment(ctx context.Context, tenantID uuid.UUID, req CreatePaymentRequest, actor uuid.UUID) (*PaymentResponse, error) {
	amount, err := valueobject.NewMoney(req.TotalAmount, currencyOrDefault(req.Currency))
	if err != nil {
		return nil, settlement.NewValidationError(err.Error())
	}

	number, err := s.paymentRepo.GeneratePaymentNumber(ctx, tenantID, req.Role)
	if err != nil {
		return nil, err
	}

	payment, err := settlement.NewPayment(
		tenantID,
		req.Role,
		number,
		req.CounterpartyID,
		amount,
		req.Method,
		req.Reference,
		req.PaymentDate,
	)
	if err != nil {
		return nil, err
	}
	if actor != uuid.Nil {
		payment.SetCreatedBy(actor)
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("payment created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("total_amount", payment.TotalAmount.StringFixed(2)),
	)

	resp := toPaymentResponse(payment, valueobject.Zero(payment.TotalAmount.Currency()), nil)
	return &resp, nil
}

// ApplyPayment distributes a payment across the given debts. The operation is
// all-or-nothing: every pair is validated against the payment's unallocated
// capacity and the debt's pending balance, debts are row-locked in ascending
// id order, the pending checks are re-evaluated after locking, and on any
// failure the whole transaction rolls back.
func (s *SettlementService) ApplyPayment(ctx context.Context, tenantID uuid.UUID, req ApplyPaymentRequest, actor uuid.UUID) (*ApplyPaymentResponse, error) {
	if len(req.Allocations) == 0 {
		return nil, settlement.NewValidationError("at least one allocation is required")
	}
	seen := make(map[uuid.UUID]bool, len(req.Allocations))
	for _, a := range req.Allocations {
		if a.DebtID == uuid.Nil {
			return nil, settlement.NewValidationError("allocation debt ID is required")
		}
		if !a.Amount.IsPositive() {
			return nil, settlement.NewValidationError("allocation amount must be positive")
		}
		if seen[a.DebtID] {
			return nil, settlement.NewValidationError("duplicate debt in allocation list")
		}
		seen[a.DebtID] = true
	}

	if done, err := s.alreadyProcessed(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if done {
		payment, err := s.GetPayment(ctx, tenantID, req.PaymentID)
		if err != nil {
			return nil, err
		}
		return &ApplyPaymentResponse{Payment: *payment}, nil
	}

	// Deterministic ascending debt-id order, regardless of caller order. This
	// is the engine's sole deadlock-avoidance mechanism.
	pairs := make([]AllocationRequest, len(req.Allocations))
	copy(pairs, req.Allocations)
	sortAllocationsByDebtID(pairs)

	var resp ApplyPaymentResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, tenantID, req.PaymentID)
		if err != nil {
			return err
		}
		currency := payment.TotalAmount.Currency()

		allocatedDec, err := repos.AllocationRepo().SumByPayment(ctx, tenantID, payment.ID)
		if err != nil {
			return err
		}
		allocated := valueobject.MustNewMoney(allocatedDec, currency)

		requested := valueobject.Zero(currency)
		for _, pair := range pairs {
			requested = requested.MustAdd(valueobject.MustNewMoney(pair.Amount, currency))
		}
		if exceeds, err := requested.GreaterThan(payment.AmountAvailable(allocated)); err != nil {
			return settlement.NewValidationError(err.Error())
		} else if exceeds {
			return settlement.ErrInsufficientPaymentCapacity
		}

		ids := make([]uuid.UUID, len(pairs))
		for i, pair := range pairs {
			ids[i] = pair.DebtID
		}
		debts, err := repos.DebtRepo().FindByIDsForUpdate(ctx, tenantID, ids)
		if err != nil {
			return err
		}
		if len(debts) != len(ids) {
			return settlement.ErrDebtNotSettleable
		}
		byID := make(map[uuid.UUID]*settlement.Debt, len(debts))
		for _, d := range debts {
			byID[d.ID] = d
		}

		now := time.Now()
		for _, pair := range pairs {
			debt := byID[pair.DebtID]
			if debt.Role != payment.Role || debt.CounterpartyID != payment.CounterpartyID {
				return settlement.ErrDebtNotSettleable
			}
			if !debt.CanSettle() {
				return settlement.ErrDebtNotSettleable
			}
			if exists, err := repos.AllocationRepo().ExistsForPair(ctx, tenantID, payment.ID, debt.ID); err != nil {
				return err
			} else if exists {
				return settlement.ErrAlreadyAllocated
			}

			amount := valueobject.MustNewMoney(pair.Amount, currency)
			// Pending-balance check runs inside ApplySettlement against the
			// freshly locked row, not against any value read before locking.
			if err := debt.ApplySettlement(amount, now); err != nil {
				return err
			}
			if actor != uuid.Nil {
				debt.SetUpdatedBy(actor)
			}

			var createdBy *uuid.UUID
			if actor != uuid.Nil {
				createdBy = &actor
			}
			alloc, err := settlement.NewAllocation(tenantID, payment.ID, debt.ID, amount, createdBy)
			if err != nil {
				return err
			}
			if err := repos.AllocationRepo().Create(ctx, alloc); err != nil {
				return err
			}
			if err := repos.DebtRepo().SaveWithLock(ctx, debt); err != nil {
				return err
			}
		}

		payment.AddDomainEvent(settlement.NewPaymentAppliedEvent(payment, len(pairs), requested))
		if actor != uuid.Nil {
			payment.SetUpdatedBy(actor)
		}
		// Version bump fences concurrent applies that raced past the row lock
		// on stores without pessimistic locking.
		payment.IncrementVersion()
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}

		allocs, err := repos.AllocationRepo().FindByPayment(ctx, tenantID, payment.ID)
		if err != nil {
			return err
		}
		total := valueobject.Zero(currency)
		for _, a := range allocs {
			total = total.MustAdd(a.AmountApplied)
		}

		resp.Payment = toPaymentResponse(payment, total, allocs)
		resp.Debts = make([]DebtResponse, 0, len(pairs))
		for _, pair := range pairs {
			resp.Debts = append(resp.Debts, toDebtResponse(byID[pair.DebtID]))
		}

		s.logEvents(ctx, actor, payment.GetDomainEvents())
		for _, d := range debts {
			s.logEvents(ctx, actor, d.GetDomainEvents())
			d.ClearDomainEvents()
		}
		payment.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, req.IdempotencyKey)
	return &resp, nil
}

// ReversePayment undoes every allocation of a payment, restoring each touched
// debt's settled amount and state to its pre-application values and deleting
// the allocation rows. Idempotent: reversing a payment with no allocations
// succeeds with no effect. A debt voided out of band since allocation blocks
// the reversal instead of being silently resurrected.
func (s *SettlementService) ReversePayment(ctx context.Context, tenantID uuid.UUID, req ReversePaymentRequest, actor uuid.UUID) (*ReversePaymentResponse, error) {
	if done, err := s.alreadyProcessed(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if done {
		payment, err := s.GetPayment(ctx, tenantID, req.PaymentID)
		if err != nil {
			return nil, err
		}
		return &ReversePaymentResponse{Payment: *payment}, nil
	}

	var resp ReversePaymentResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, tenantID, req.PaymentID)
		if err != nil {
			return err
		}
		currency := payment.TotalAmount.Currency()

		allocs, err := repos.AllocationRepo().FindByPayment(ctx, tenantID, payment.ID)
		if err != nil {
			return err
		}
		if len(allocs) == 0 {
			resp.Payment = toPaymentResponse(payment, valueobject.Zero(currency), nil)
			return nil
		}

		// Same ascending debt-id lock order as apply.
		sortAllocations(allocs)
		ids := make([]uuid.UUID, len(allocs))
		for i, a := range allocs {
			ids[i] = a.DebtID
		}
		debts, err := repos.DebtRepo().FindByIDsForUpdate(ctx, tenantID, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*settlement.Debt, len(debts))
		for _, d := range debts {
			byID[d.ID] = d
		}

		now := time.Now()
		for _, alloc := range allocs {
			debt, ok := byID[alloc.DebtID]
			if !ok {
				return shared.ErrNotFound
			}
			if err := debt.ReverseSettlement(alloc.AmountApplied, now); err != nil {
				return err
			}
			if actor != uuid.Nil {
				debt.SetUpdatedBy(actor)
			}
			if err := repos.DebtRepo().SaveWithLock(ctx, debt); err != nil {
				return err
			}
			if err := repos.AllocationRepo().Delete(ctx, tenantID, alloc.ID); err != nil {
				return err
			}
		}

		payment.AppendNote(req.Reason)
		payment.AddDomainEvent(settlement.NewPaymentReversedEvent(payment, len(allocs), req.Reason))
		if actor != uuid.Nil {
			payment.SetUpdatedBy(actor)
		}
		payment.IncrementVersion()
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}

		resp.Payment = toPaymentResponse(payment, valueobject.Zero(currency), nil)
		resp.Debts = make([]DebtResponse, 0, len(allocs))
		for _, alloc := range allocs {
			resp.Debts = append(resp.Debts, toDebtResponse(byID[alloc.DebtID]))
		}

		s.logEvents(ctx, actor, payment.GetDomainEvents())
		payment.ClearDomainEvents()
		logger.WithLogger(ctx, s.logger).Info("payment reversed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("payment_number", payment.PaymentNumber),
			zap.Int("allocations_removed", len(allocs)),
			zap.String("actor", actor.String()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, req.IdempotencyKey)
	return &resp, nil
}

// VoidDebt marks a debt as VOID. Fails if anything has been settled against
// it; voiding an already-void debt is a no-op success.
func (s *SettlementService) VoidDebt(ctx context.Context, tenantID, debtID uuid.UUID, actor uuid.UUID, reason string) (*DebtResponse, error) {
	var resp DebtResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		debt, err := repos.DebtRepo().FindByIDForTenant(ctx, tenantID, debtID)
		if err != nil {
			return err
		}
		if debt.Status == settlement.DebtStatusVoid {
			resp = toDebtResponse(debt)
			return nil
		}
		if err := debt.Void(reason); err != nil {
			return err
		}
		if actor != uuid.Nil {
			debt.SetUpdatedBy(actor)
		}
		if err := repos.DebtRepo().SaveWithLock(ctx, debt); err != nil {
			return err
		}
		s.logEvents(ctx, actor, debt.GetDomainEvents())
		debt.ClearDomainEvents()
		logger.WithLogger(ctx, s.logger).Info("debt voided",
			zap.String("tenant_id", tenantID.String()),
			zap.String("debt_number", debt.DebtNumber),
			zap.String("actor", actor.String()),
		)
		resp = toDebtResponse(debt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkOverdueSweep bulk-transitions every open debt past due as of asOf to
// OVERDUE. Safe to run repeatedly and concurrently with live settlement
// traffic; the second run over the same data affects zero rows.
func (s *SettlementService) MarkOverdueSweep(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*SweepResponse, error) {
	affected, err := s.debtRepo.MarkOverdueSweep(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		logger.WithLogger(ctx, s.logger).Info("overdue sweep completed",
			zap.String("tenant_id", tenantID.String()),
			zap.Time("as_of", asOf),
			zap.Int64("affected", affected),
		)
	}
	return &SweepResponse{Affected: affected}, nil
}

// SweepAllTenants runs the overdue sweep for every tenant that holds debts.
// A failing tenant does not abort the run; its error is logged and the sweep
// moves on, since the next run will cover it anyway.
func (s *SettlementService) SweepAllTenants(ctx context.Context, asOf time.Time) (*SweepAllTenantsResponse, error) {
	tenantIDs, err := s.debtRepo.ListTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepAllTenantsResponse{Tenants: len(tenantIDs)}
	for _, tenantID := range tenantIDs {
		affected, err := s.debtRepo.MarkOverdueSweep(ctx, tenantID, asOf)
		if err != nil {
			s.logger.Error("overdue sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Affected += affected
	}
	return result, nil
}

// GetDebt returns one debt
func (s *SettlementService) GetDebt(ctx context.Context, tenantID, debtID uuid.UUID) (*DebtResponse, error) {
	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		return nil, err
	}
	resp := toDebtResponse(debt)
	return &resp, nil
}

// ListDebts returns debts matching the filter with the total count
func (s *SettlementService) ListDebts(ctx context.Context, tenantID uuid.UUID, filter settlement.DebtFilter) ([]DebtResponse, int64, error) {
	debts, total, err := s.debtRepo.FindByFilter(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]DebtResponse, 0, len(debts))
	for _, d := range debts {
		responses = append(responses, toDebtResponse(d))
	}
	return responses, total, nil
}

// GetPayment returns one payment with its allocations and recomputed
// available amount
func (s *SettlementService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	allocs, err := s.allocationRepo.FindByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	total := valueobject.Zero(payment.TotalAmount.Currency())
	for _, a := range allocs {
		total = total.MustAdd(a.AmountApplied)
	}
	resp := toPaymentResponse(payment, total, allocs)
	return &resp, nil
}

// ListPayments returns payments matching the filter with the total count
func (s *SettlementService) ListPayments(ctx context.Context, tenantID uuid.UUID, filter settlement.PaymentFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.paymentRepo.FindByFilter(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		allocated, err := s.allocationRepo.SumByPayment(ctx, tenantID, p.ID)
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, toPaymentResponse(p, valueobject.MustNewMoney(allocated, p.TotalAmount.Currency()), nil))
	}
	return responses, total, nil
}

// GetDebtSummary aggregates status counts and the total pending balance for
// one side of the ledger
func (s *SettlementService) GetDebtSummary(ctx context.Context, tenantID uuid.UUID, role settlement.PartyRole) (*DebtSummaryResponse, error) {
	counts, err := s.debtRepo.CountByStatus(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	pending, err := s.debtRepo.SumPendingForTenant(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	return &DebtSummaryResponse{
		CountsByStatus: counts,
		TotalPending:   pending.StringFixed(2),
	}, nil
}

func (s *SettlementService) alreadyProcessed(ctx context.Context, key string) (bool, error) {
	if key == "" || s.idempotency == nil || !s.idemCfg.Enabled {
		return false, nil
	}
	return s.idempotency.IsProcessed(ctx, key)
}

func (s *SettlementService) markProcessed(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil || !s.idemCfg.Enabled {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, key, s.idemCfg.TTL); err != nil {
		s.logger.Warn("failed to record idempotency key", zap.Error(err))
	}
}

// logEvents emits every pending domain event as a structured audit log entry.
// Entries carry the acting user plus whatever request identity the context
// holds (request_id, tenant_id, user_id from the HTTP layer).
func (s *SettlementService) logEvents(ctx context.Context, actor uuid.UUID, events []shared.DomainEvent) {
	log := logger.WithLogger(ctx, s.logger)
	for _, e := range events {
		fields := []zap.Field{
			zap.String("event_type", e.EventType()),
			zap.String("aggregate_type", e.AggregateType()),
			zap.String("aggregate_id", e.AggregateID().String()),
			zap.String("tenant_id", e.TenantID().String()),
		}
		if actor != uuid.Nil {
			fields = append(fields, zap.String("actor", actor.String()))
		}
		log.Info("domain event", fields...)
	}
}

func currencyOrDefault(c string) valueobject.Currency {
	if c == "" {
		return valueobject.DefaultCurrency
	}
	return valueobject.Currency(c)
}

func sortAllocationsByDebtID(pairs []AllocationRequest) {
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].DebtID[:], pairs[j].DebtID[:]) < 0
	})
}

func sortAllocations(allocs []*settlement.Allocation) {
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].DebtID[:], allocs[j].DebtID[:]) < 0
	})
}

func toDebtResponse(d *settlement.Debt) DebtResponse {
	return DebtResponse{
		ID:                   d.ID,
		DebtNumber:           d.DebtNumber,
		Role:                 d.Role,
		CounterpartyID:       d.CounterpartyID,
		SourceDocumentID:     d.SourceDocumentID,
		SourceDocumentNumber: d.SourceDocumentNumber,
		DocumentDate:         d.DocumentDate,
		DueDate:              d.DueDate,
		OriginalAmount:       d.OriginalAmount.StringFixed(2),
		SettledAmount:        d.SettledAmount.StringFixed(2),
		PendingAmount:        d.PendingAmount().StringFixed(2),
		Currency:             string(d.OriginalAmount.Currency()),
		Status:               d.Status,
		VoidReason:           d.VoidReason,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		Version:              d.Version,
	}
}

func toPaymentResponse(p *settlement.Payment, allocated valueobject.Money, allocs []*settlement.Allocation) PaymentResponse {
	allocResponses := make([]AllocationResponse, 0, len(allocs))
	for _, a := range allocs {
		allocResponses = append(allocResponses, AllocationResponse{
			ID:            a.ID,
			DebtID:        a.DebtID,
			AmountApplied: a.AmountApplied.StringFixed(2),
			CreatedAt:     a.CreatedAt,
		})
	}
	return PaymentResponse{
		ID:              p.ID,
		PaymentNumber:   p.PaymentNumber,
		Role:            p.Role,
		CounterpartyID:  p.CounterpartyID,
		TotalAmount:     p.TotalAmount.StringFixed(2),
		AmountAllocated: allocated.StringFixed(2),
		AmountAvailable: p.AmountAvailable(allocated).StringFixed(2),
		Currency:        string(p.TotalAmount.Currency()),
		Method:          p.Method,
		Reference:       p.Reference,
		PaymentDate:     p.PaymentDate,
		Note:            p.Note,
		Allocations:     allocResponses,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}
