package handler

import (
	"strconv"

	"smartpay/internal/adapter/http/dto"
	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"
	"smartpay/pkg/money"
	"smartpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// CardHandler serves card provisioning, balances and history.
type CardHandler struct {
	provisioning ports.ProvisioningService
	ledger       ports.LedgerService
	exponent     int32
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(provisioning ports.ProvisioningService, ledger ports.LedgerService, exponent int32) *CardHandler {
	return &CardHandler{provisioning: provisioning, ledger: ledger, exponent: exponent}
}

// GetBalance handles GET /api/v1/balance/:uid. Unknown cards are provisioned
// with a zero balance first.
func (h *CardHandler) GetBalance(c *gin.Context) {
	uid, ok := cardUIDParam(c)
	if !ok {
		return
	}

	if _, err := h.provisioning.EnsureWallet(c.Request.Context(), uid); err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.ledger.GetBalance(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		UID:     uid,
		Balance: balance,
		Display: money.FromMinor(balance, h.exponent),
	})
}

// Provision handles POST /api/v1/cards/:uid. Repeating it is harmless.
func (h *CardHandler) Provision(c *gin.Context) {
	uid, ok := cardUIDParam(c)
	if !ok {
		return
	}

	wallet, err := h.provisioning.EnsureWallet(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CardResponse{
		UID:       wallet.CardUID,
		Balance:   wallet.Balance,
		CreatedAt: wallet.CreatedAt,
	})
}

// ListTransactions handles GET /api/v1/transactions/:uid?limit=N.
func (h *CardHandler) ListTransactions(c *gin.Context) {
	uid, ok := cardUIDParam(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, apperror.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	txns, err := h.ledger.GetHistory(c.Request.Context(), uid, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	response.OK(c, dto.TransactionListResponse{UID: uid, Items: items, Count: len(items)})
}

func cardUIDParam(c *gin.Context) (string, bool) {
	uid := c.Param("uid")
	if !dto.ValidCardUID(uid) {
		response.Error(c, apperror.Validation("invalid card uid"))
		return "", false
	}
	return uid, true
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:              t.ID.String(),
		Type:            string(t.Type),
		Amount:          t.Amount,
		PreviousBalance: t.PreviousBalance,
		NewBalance:      t.NewBalance,
		Status:          string(t.Status),
		Reason:          t.Reason,
		CreatedAt:       t.CreatedAt,
	}
}
