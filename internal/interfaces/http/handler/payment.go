package handler

import (
	"time"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment and allocation API endpoints
type PaymentHandler struct {
	BaseHandler
	service *appsettlement.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(service *appsettlement.SettlementService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CreatePaymentRequest represents a request to register a new payment
type CreatePaymentRequest struct {
	Role           string    `json:"role" binding:"required,oneof=RECEIVABLE PAYABLE"`
	CounterpartyID string    `json:"counterparty_id" binding:"required,uuid"`
	TotalAmount    string    `json:"total_amount" binding:"required,money"`
	Currency       string    `json:"currency" binding:"omitempty,len=3"`
	Method         string    `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHECK CARD ONLINE OTHER"`
	Reference      string    `json:"reference" binding:"max=128"`
	PaymentDate    time.Time `json:"payment_date" binding:"required"`
}

// AllocationRequest is one (debt, amount) pair in an apply request
type AllocationRequest struct {
	DebtID string `json:"debt_id" binding:"required,uuid"`
	Amount string `json:"amount" binding:"required,money"`
}

// ApplyPaymentRequest represents a request to allocate a payment across debts
type ApplyPaymentRequest struct {
	Allocations []AllocationRequest `json:"allocations" binding:"required,min=1,dive"`
}

// ReversePaymentRequest represents a request to reverse all of a payment's allocations
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// PaymentListFilter represents payment list query parameters
type PaymentListFilter struct {
	Role           string `form:"role" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Method         string `form:"method" binding:"omitempty,oneof=CASH BANK_TRANSFER CHECK CARD ONLINE OTHER"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size" binding:"omitempty,max=100"`
}

// Create registers a new, fully unallocated payment
func (h *PaymentHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor, _ := getUserID(c)

	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}
	amount, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		h.BadRequest(c, "Invalid total amount")
		return
	}

	appReq := appsettlement.CreatePaymentRequest{
		Role:           settlement.PartyRole(req.Role),
		CounterpartyID: counterpartyID,
		TotalAmount:    amount,
		Currency:       req.Currency,
		Method:         settlement.PaymentMethod(req.Method),
		Reference:      req.Reference,
		PaymentDate:    req.PaymentDate,
	}

	payment, err := h.service.CreatePayment(c.Request.Context(), tenantID, appReq, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, payment)
}

// GetByID retrieves a payment with its allocations
func (h *PaymentHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, payment)
}

// List retrieves a paginated list of payments with optional filtering
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query PaymentListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	filter := settlement.PaymentFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Role != "" {
		role := settlement.PartyRole(query.Role)
		filter.Role = &role
	}
	if query.Method != "" {
		method := settlement.PaymentMethod(query.Method)
		filter.Method = &method
	}
	if query.CounterpartyID != "" {
		id, err := uuid.Parse(query.CounterpartyID)
		if err != nil {
			h.BadRequest(c, "Invalid counterparty ID format")
			return
		}
		filter.CounterpartyID = &id
	}

	payments, total, err := h.service.ListPayments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, payments, total, query.Page, query.PageSize)
}

// Apply allocates a payment across one or more debts atomically. Supplying the
// same X-Idempotency-Key again returns the payment's current state without
// re-applying.
func (h *PaymentHandler) Apply(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor, _ := getUserID(c)

	allocations := make([]appsettlement.AllocationRequest, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		debtID, err := uuid.Parse(a.DebtID)
		if err != nil {
			h.BadRequest(c, "Invalid debt ID format in allocations")
			return
		}
		amount, err := decimal.NewFromString(a.Amount)
		if err != nil {
			h.BadRequest(c, "Invalid allocation amount")
			return
		}
		allocations = append(allocations, appsettlement.AllocationRequest{
			DebtID: debtID,
			Amount: amount,
		})
	}

	appReq := appsettlement.ApplyPaymentRequest{
		PaymentID:      paymentID,
		Allocations:    allocations,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	}

	result, err := h.service.ApplyPayment(c.Request.Context(), tenantID, appReq, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reverse removes all of a payment's allocations and restores the affected
// debts. Reversing an unallocated payment succeeds as a no-op.
func (h *PaymentHandler) Reverse(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor, _ := getUserID(c)

	appReq := appsettlement.ReversePaymentRequest{
		PaymentID:      paymentID,
		Reason:         req.Reason,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	}

	result, err := h.service.ReversePayment(c.Request.Context(), tenantID, appReq, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
