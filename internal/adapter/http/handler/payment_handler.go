package handler

import (
	"fmt"

	"smartpay/internal/adapter/http/dto"
	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"
	"smartpay/pkg/money"
	"smartpay/pkg/response"

	"github.com/gin-gonic/gin"
)

const topupReason = "Admin top-up"

// PaymentHandler handles the money-moving endpoints.
type PaymentHandler struct {
	provisioning ports.ProvisioningService
	ledger       ports.LedgerService
	exponent     int32
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(provisioning ports.ProvisioningService, ledger ports.LedgerService, exponent int32) *PaymentHandler {
	return &PaymentHandler{provisioning: provisioning, ledger: ledger, exponent: exponent}
}

// Topup handles POST /api/v1/topup.
func (h *PaymentHandler) Topup(c *gin.Context) {
	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := money.PositiveToMinor(req.Amount.String(), h.exponent)
	if err != nil {
		response.Error(c, apperror.Validation("amount: "+err.Error()))
		return
	}

	if _, err := h.provisioning.EnsureWallet(c.Request.Context(), req.UID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledger.ApplyMutation(c.Request.Context(), ports.MutationRequest{
		CardUID: req.UID,
		Amount:  amount,
		Type:    domain.TransactionTypeTopup,
		Reason:  topupReason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toMutationResponse(result))
}

// Pay handles POST /api/v1/pay. A payment the balance cannot cover is still
// recorded and answered with 402 and the amounts involved.
func (h *PaymentHandler) Pay(c *gin.Context) {
	var req dto.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	total, err := money.PositiveToMinor(req.TotalAmount.String(), h.exponent)
	if err != nil {
		response.Error(c, apperror.Validation("total_amount: "+err.Error()))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := h.provisioning.EnsureWallet(c.Request.Context(), req.UID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledger.ApplyMutation(c.Request.Context(), ports.MutationRequest{
		CardUID: req.UID,
		Amount:  -total,
		Type:    domain.TransactionTypePayment,
		Reason:  fmt.Sprintf("Product: %s, Qty: %d", req.ProductID, req.Quantity),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Declined {
		response.ErrorWithDetails(c,
			apperror.ErrInsufficientBalance(result.Amount, result.PreviousBalance),
			dto.DeclineDetails{
				Required:      result.Amount,
				Available:     result.PreviousBalance,
				TransactionID: result.TransactionID.String(),
			})
		return
	}

	response.Created(c, toMutationResponse(result))
}

func toMutationResponse(r *domain.MutationResult) dto.MutationResponse {
	status := "approved"
	if r.Declined {
		status = "declined"
	}
	return dto.MutationResponse{
		UID:             r.CardUID,
		Type:            string(r.Type),
		Amount:          r.Amount,
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
		Status:          status,
		Reason:          r.Reason,
		TransactionID:   r.TransactionID.String(),
		Timestamp:       r.CommittedAt,
	}
}
