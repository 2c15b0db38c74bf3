package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/gallery"
	"novatok-explorer/internal/storage"
)

// Error codes returned in the "code" field.
const (
	codeInvalidRequest   = "invalid_request"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeDemoMode         = "demo_mode"
	codeNoWallet         = "no_wallet"
	codeWrongNetwork     = "wrong_network"
	codeUserRejected     = "user_rejected"
	codeReverted         = "reverted"
	codeTimeout          = "timeout"
	codeInternal         = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	TxHash string `json:"txHash,omitempty"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

// classify maps service errors onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, gallery.ErrInvalidRequest):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, gallery.ErrDemoMode):
		return http.StatusServiceUnavailable, codeDemoMode
	case errors.Is(err, gallery.ErrNoWallet):
		return http.StatusServiceUnavailable, codeNoWallet
	case errors.Is(err, gallery.ErrWrongNetwork):
		return http.StatusConflict, codeWrongNetwork
	case errors.Is(err, erc721.ErrUserRejected):
		return http.StatusConflict, codeUserRejected
	case errors.Is(err, erc721.ErrReverted):
		return http.StatusUnprocessableEntity, codeReverted
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// fail writes err as a JSON error. Internal errors are logged by the
// access log via c.Error and are not echoed to the client.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(c, status, code, msg)
}
