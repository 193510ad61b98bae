package handler

import (
	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	maxIdempotencyKeyLen = 128
)

// TransferHandler handles internal transfers.
type TransferHandler struct {
	accountSvc  ports.AccountService
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(accountSvc ports.AccountService, transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{accountSvc: accountSvc, transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/accounts/:id/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	acc, ok := ownedAccount(c, h.accountSvc)
	if !ok {
		return
	}

	idemKey := c.GetHeader(HeaderIdempotencyKey)
	if len(idemKey) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderAccountID: acc.ID,
		RecipientAlias:  req.RecipientAlias,
		Amount:          amount,
		Note:            req.Note,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.TransferID.String())
	response.Created(c, dto.TransferResponse{
		TransferID: result.TransferID.String(),
		Debit:      dto.FromEntry(result.Debit),
		Credit:     dto.FromEntry(result.Credit),
	})
}
