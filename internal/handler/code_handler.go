package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/service"
	"loyalty/scanhub/pkg/response"
)

type CodeHandler struct {
	issuer   *service.Issuer
	rotation *service.RotationManager
}

func NewCodeHandler(issuer *service.Issuer, rotation *service.RotationManager) *CodeHandler {
	return &CodeHandler{issuer: issuer, rotation: rotation}
}

type IssueCodeRequest struct {
	OwnerID    int64             `json:"owner_id" binding:"required"`
	BusinessID *int64            `json:"business_id,omitempty"`
	CodeType   string            `json:"code_type" binding:"required"`
	Payload    model.CodePayload `json:"payload"`
	ImageRef   string            `json:"image_ref,omitempty"`
	IsPrimary  bool              `json:"is_primary"`
	Expiry     *time.Time        `json:"expiry,omitempty"`
}

// Issue creates a new signed code record.
func (h *CodeHandler) Issue(c *gin.Context) {
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	record, err := h.issuer.Issue(c.Request.Context(), service.IssueParams{
		OwnerID:    req.OwnerID,
		BusinessID: req.BusinessID,
		CodeType:   model.CodeType(req.CodeType),
		Payload:    req.Payload,
		ImageRef:   req.ImageRef,
		IsPrimary:  req.IsPrimary,
		Expiry:     req.Expiry,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, record)
}

// Get fetches a code by its opaque unique id.
func (h *CodeHandler) Get(c *gin.Context) {
	record, err := h.issuer.GetByUniqueID(c.Request.Context(), c.Param("unique_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, record)
}

// Rotate retires a code and issues its replacement.
func (h *CodeHandler) Rotate(c *gin.Context) {
	codeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || codeID <= 0 {
		response.BadRequest(c, "invalid code id")
		return
	}

	replacement, err := h.rotation.Rotate(c.Request.Context(), codeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, replacement)
}

type RevokeCodeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Revoke terminates an active code.
func (h *CodeHandler) Revoke(c *gin.Context) {
	codeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || codeID <= 0 {
		response.BadRequest(c, "invalid code id")
		return
	}

	var req RevokeCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.issuer.Revoke(c.Request.Context(), codeID, req.Reason); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"code_id": codeID, "status": model.CodeStatusRevoked})
}

func writeServiceError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		response.InternalError(c, "internal error")
		return
	}

	var status int
	switch e.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
		if e.Code == service.CodeNotFound {
			status = http.StatusNotFound
		}
	case service.KindSecurity:
		status = http.StatusForbidden
	case service.KindExpiration:
		status = http.StatusGone
	case service.KindBusinessLogic:
		status = http.StatusUnprocessableEntity
	case service.KindRateLimit:
		status = http.StatusTooManyRequests
	case service.KindTransientStore:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	response.ClassifiedError(c, status, e.Code, e.Message)
}
