package middleware

import (
	"context"

	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware tags every request with an id for the audit trail
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// TenantContextMiddleware copies the tenant and user identity established by
// the authentication layer into the request context. JWT validation itself
// happens upstream of this service.
func TenantContextMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	if tenantID := c.GetHeader(types.HeaderTenantID); tenantID != "" {
		ctx = types.SetTenantID(ctx, tenantID)
	}
	if userID := c.GetHeader(types.HeaderUserID); userID != "" {
		ctx = types.SetUserID(ctx, userID)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
