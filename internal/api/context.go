package api

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"estatechain/server/internal/models"
)

const (
	HeaderAccount   = "X-Account"
	HeaderRequestID = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestID tags every request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// requestContext builds the acting identity from the X-Account header or an
// "account" form field. A missing account is left for the workflow to reject.
func requestContext(c *gin.Context) (models.RequestContext, error) {
	rc := models.RequestContext{RequestID: c.GetString(requestIDKey)}
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}

	account := strings.TrimSpace(c.GetHeader(HeaderAccount))
	if account == "" {
		account = strings.TrimSpace(c.PostForm("account"))
	}
	if account == "" {
		return rc, nil
	}
	if !common.IsHexAddress(account) {
		return rc, models.NewValidationError("account", "%q is not a hex address", account)
	}
	rc.Account = common.HexToAddress(account)
	return rc, nil
}
