package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/service"
	"loyalty/scanhub/pkg/response"
)

type ScanHandler struct {
	dispatcher *service.Dispatcher
}

func NewScanHandler(dispatcher *service.Dispatcher) *ScanHandler {
	return &ScanHandler{dispatcher: dispatcher}
}

type ScanOptions struct {
	SourceAddress string `json:"source_address"`
	CustomerRef   *int64 `json:"customer_ref,omitempty"`
	ProgramRef    *int64 `json:"program_ref,omitempty"`
	PromoRef      *int64 `json:"promo_ref,omitempty"`
}

type ScanRequest struct {
	CodeType string            `json:"code_type" binding:"required"`
	Payload  model.CodePayload `json:"payload" binding:"required"`
	Options  ScanOptions       `json:"options"`
}

// Scan processes one physical scan event.
func (h *ScanHandler) Scan(c *gin.Context) {
	businessID, err := getBusinessIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid scanner context")
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	source := req.Options.SourceAddress
	if source == "" {
		source = c.ClientIP()
	}

	result := h.dispatcher.Dispatch(c.Request.Context(), service.DispatchParams{
		CodeType:          model.CodeType(req.CodeType),
		ScannerBusinessID: businessID,
		RawPayload:        req.Payload,
		SourceAddress:     source,
		CustomerRef:       req.Options.CustomerRef,
		ProgramRef:        req.Options.ProgramRef,
		PromoRef:          req.Options.PromoRef,
	})

	c.JSON(statusForResult(result), response.APIResponse{
		Code:      codeForResult(result),
		Message:   result.Message,
		ErrorCode: result.ErrorCode,
		Data:      result,
	})
}

func statusForResult(result *service.ScanResult) int {
	switch result.State {
	case service.StateSuccess:
		return http.StatusOK
	case service.StateRateLimited:
		return http.StatusTooManyRequests
	case service.StateInvalid:
		switch result.ErrorCode {
		case service.CodeSignatureMismatch, service.CodeSignatureStale:
			return http.StatusForbidden
		case service.CodeExpired, service.CodeEntityInactive:
			return http.StatusGone
		default:
			return http.StatusBadRequest
		}
	default: // failed
		if result.ErrorCode == service.CodeStoreUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	}
}

func codeForResult(result *service.ScanResult) int {
	if result.State == service.StateSuccess {
		return 0
	}
	return statusForResult(result)
}
