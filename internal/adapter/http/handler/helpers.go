package handler

import (
	"errors"
	"io"

	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/adapter/http/middleware"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"
	"nusd-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// bindJSON decodes and validates the body, writing the error response on failure.
// Alias and address rule violations keep their own error codes.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case dto.TagAlias:
				return apperror.ErrInvalidAlias()
			case dto.TagTronAddress:
				return apperror.ErrInvalidAddress()
			}
		}
	}
	if errors.Is(err, io.EOF) {
		return apperror.Validation("request body is required")
	}
	return apperror.Validation(err.Error())
}

// currentUser returns the caller set by JWTAuth. It writes AUTH_003 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// uuidParam parses a path parameter, answering 404 for malformed ids.
func uuidParam(c *gin.Context, name, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

// ownedAccount resolves :id to an account the caller owns.
func ownedAccount(c *gin.Context, accountSvc ports.AccountService) (*domain.Account, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	accountID, ok := uuidParam(c, "id", "account")
	if !ok {
		return nil, false
	}
	acc, err := accountSvc.GetOwnedAccount(c.Request.Context(), userID, accountID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return acc, true
}

// parseAmount converts a wire decimal into base units. Positivity is left to
// the services so zero and negative amounts share their error path.
func parseAmount(s string) (int64, error) {
	amount, err := domain.ParseAmount(s)
	if err != nil {
		return 0, apperror.ErrInvalidAmount()
	}
	return amount, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// bindPage reads ?page and ?page_size.
func bindPage(c *gin.Context) (int, int, bool) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return 0, 0, false
	}
	page, pageSize := normalizePage(q.Page, q.PageSize)
	return page, pageSize, true
}

// entryList writes a page of ledger entries.
func entryList(c *gin.Context, entries []domain.LedgerEntry, total int64, page, pageSize int) {
	response.OK(c, dto.NewListResponse(dto.FromEntries(entries), total, page, pageSize))
}
