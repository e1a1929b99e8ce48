// Package handler holds the gin handlers of the leasepay API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/shared"
	"github.com/leasepay/backend/internal/infrastructure/auth"
	"github.com/leasepay/backend/internal/infrastructure/logger"
	"github.com/leasepay/backend/internal/interfaces/http/dto"
	"github.com/leasepay/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const maxPageSize = 100

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Paginated sends a 200 response with pagination meta
func Paginated[T any](c *gin.Context, page *shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 ERR_INVALID_INPUT response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeInvalidInput, message)
}

// Forbidden sends a 403 response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeForbidden, message)
}

// ValidationError sends a 400 response listing the invalid fields of err
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	details := middleware.ValidationDetails(err)
	if details == nil {
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
		return
	}
	c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed", middleware.GetRequestID(c), details))
}

// HandleError converts err to an error response. Domain errors keep their
// message; anything else is logged and reported as ERR_INTERNAL. Persistence
// failures are logged with their cause and reported without it.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		logger.WithLogger(c.Request.Context(), logger.FromContext(c.Request.Context())).
			Error("Unhandled error", zap.Error(err), zap.String("path", c.FullPath()))
		h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.FromDomainCode(domainErr.Code)
	if dto.GetHTTPStatus(code) >= http.StatusInternalServerError {
		logger.WithLogger(c.Request.Context(), logger.FromContext(c.Request.Context())).
			Error("Request failed", zap.Error(err), zap.String("code", domainErr.Code), zap.String("path", c.FullPath()))
	}
	h.Error(c, code, domainErr.Message)
}

// principal returns the authenticated caller. Routes behind the JWT
// middleware always have one; a missing principal aborts with 401.
func (h *BaseHandler) principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Error(c, dto.ErrCodeUnauthorized, "Authentication required")
	}
	return p, ok
}

// uuidParam parses the path parameter name, answering 400 when malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the request body, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		h.ValidationError(c, err)
		return false
	}
	return true
}

// pageFilter reads page and page_size from the query string
func (h *BaseHandler) pageFilter(c *gin.Context) (shared.Filter, bool) {
	filter := shared.DefaultFilter()
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			h.BadRequest(c, "page must be a positive integer")
			return filter, false
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			h.BadRequest(c, "page_size must be between 1 and 100")
			return filter, false
		}
		filter.PageSize = size
	}
	return filter, true
}
